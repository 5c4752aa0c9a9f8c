package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the intake pipeline: uploads, dedup hits, model calls and translation outcomes.
type Metrics struct {
	UploadsTotal        *prometheus.CounterVec
	DuplicatesTotal     prometheus.Counter
	ExtractionDuration  prometheus.Histogram
	ExtractionFailures  *prometheus.CounterVec
	TranslationsTotal   *prometheus.CounterVec
	TemplateFillsTotal  *prometheus.CounterVec
	ValidationWarnings  prometheus.Counter
	TranslationDuration prometheus.Histogram
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_uploads_total",
			Help: "Total number of passport uploads by outcome",
		}, []string{"outcome"}),
		DuplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "passport_duplicate_uploads_total",
			Help: "Uploads answered from an existing record without extraction",
		}),
		ExtractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "passport_extraction_duration_seconds",
			Help:    "Duration of extraction model calls",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		}),
		ExtractionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_extraction_failures_total",
			Help: "Extraction failures by stage",
		}, []string{"stage"}),
		TranslationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_translations_total",
			Help: "Payload translations by outcome",
		}, []string{"outcome"}),
		TemplateFillsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "passport_template_fills_total",
			Help: "Template fills by template id",
		}, []string{"template"}),
		ValidationWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "passport_validation_warnings_total",
			Help: "Advisory validation warnings raised after extraction",
		}),
		TranslationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "passport_translation_duration_seconds",
			Help:    "Duration of payload translation calls",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}),
	}
}

// IncrementUpload records an upload outcome such as "created", "duplicate" or "rejected".
func (m *Metrics) IncrementUpload(outcome string) {
	m.UploadsTotal.WithLabelValues(outcome).Inc()
}

// IncrementDuplicate records a dedup hit.
func (m *Metrics) IncrementDuplicate() {
	m.DuplicatesTotal.Inc()
}

// ObserveExtraction records the duration of an extraction call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveExtraction(start time.Time) {
	m.ExtractionDuration.Observe(time.Since(start).Seconds())
}

// IncrementExtractionFailure records a failed extraction at stage "transport" or "parse".
func (m *Metrics) IncrementExtractionFailure(stage string) {
	m.ExtractionFailures.WithLabelValues(stage).Inc()
}

// ObserveTranslation records a translation call and its outcome ("ok" or "fallback").
func (m *Metrics) ObserveTranslation(start time.Time, outcome string) {
	m.TranslationDuration.Observe(time.Since(start).Seconds())
	m.TranslationsTotal.WithLabelValues(outcome).Inc()
}

// IncrementTemplateFill records a successful template fill.
func (m *Metrics) IncrementTemplateFill(templateID string) {
	m.TemplateFillsTotal.WithLabelValues(templateID).Inc()
}

// AddValidationWarnings records n advisory warnings.
func (m *Metrics) AddValidationWarnings(n int) {
	m.ValidationWarnings.Add(float64(n))
}

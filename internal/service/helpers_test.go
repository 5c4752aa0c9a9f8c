package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/passport_api/internal/cache"
	"github.com/GTDGit/passport_api/internal/config"
	"github.com/GTDGit/passport_api/internal/llm"
	"github.com/GTDGit/passport_api/internal/metrics"
	"github.com/GTDGit/passport_api/internal/models"
	"github.com/GTDGit/passport_api/internal/repository"
)

const (
	titleExtraction = "Passport Web Service"
	titleTranslate  = "Passport Translator"
	titleFields     = "Passport Template Translator"
)

// fakeCompleter answers model requests by title and records every call.
type fakeCompleter struct {
	mu        sync.Mutex
	calls     []llm.Request
	responses map[string]string
	errs      map[string]error
	gates     map[string]*completionGate
}

// completionGate holds calls for one title until release is closed.
type completionGate struct {
	entered chan struct{}
	release chan struct{}
}

func newFakeCompleter() *fakeCompleter {
	return &fakeCompleter{responses: map[string]string{}, errs: map[string]error{}, gates: map[string]*completionGate{}}
}

func (f *fakeCompleter) Complete(_ context.Context, r llm.Request) (string, error) {
	f.mu.Lock()
	gate := f.gates[r.Title]
	f.mu.Unlock()
	if gate != nil {
		select {
		case gate.entered <- struct{}{}:
		default:
		}
		<-gate.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r)
	if err, ok := f.errs[r.Title]; ok {
		return "", err
	}
	if resp, ok := f.responses[r.Title]; ok {
		return resp, nil
	}
	return "", errors.New("no fake response for " + r.Title)
}

func (f *fakeCompleter) set(title, response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[title] = response
	delete(f.errs, title)
}

func (f *fakeCompleter) block(title string) *completionGate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &completionGate{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f.gates[title] = g
	return g
}

func (f *fakeCompleter) fail(title string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[title] = err
}

func (f *fakeCompleter) count(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Title == title {
			n++
		}
	}
	return n
}

func (f *fakeCompleter) last(title string) llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Title == title {
			return f.calls[i]
		}
	}
	return llm.Request{}
}

func testMetrics() *metrics.Metrics {
	return metrics.NewWithRegisterer(prometheus.NewRegistry())
}

const testTemplate = `<passport><number>{documentNumber}</number><surname>{surname}</surname>` +
	`<given>{givenNames}</given><born>{birthDate}</born><note>{unknownField}</note></passport>`

type testEnv struct {
	completer *fakeCompleter
	repo      *repository.MemoryPassportRepository
	snapshots *cache.FileSnapshotStore
	service   *PassportService
	templates *TemplateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	m := testMetrics()
	completer := newFakeCompleter()
	repo := repository.NewMemoryPassportRepository()
	snapshots, err := cache.NewFileSnapshotStore(t.TempDir())
	require.NoError(t, err)

	extractor := NewExtractionService(completer, &config.LLMConfig{MaxTokens: 16000}, m)
	translator := NewTranslationService(completer, &config.TranslationConfig{Language: "Russian", MaxTokens: 4000}, m)
	registry := NewTemplateRegistry(TemplateSource{
		Descriptor: models.TemplateDescriptor{ID: "UZB", Name: "Uzbekistan passport page", Country: "UZ"},
		Content:    testTemplate,
	})
	templates := NewTemplateService(registry, translator, m)

	svc := NewPassportService(repo, snapshots, extractor, translator, templates, nil, m, 50*1024*1024)
	t.Cleanup(svc.Wait)

	return &testEnv{
		completer: completer,
		repo:      repo,
		snapshots: snapshots,
		service:   svc,
		templates: templates,
	}
}

func pdfBytes(body string) []byte {
	return []byte("%PDF-1.4\n" + body)
}

const extractionAnswer = "```json\n" + `{
  "biographical_page": {
    "full_name": {"en": "DOE JOHN", "ru": "ДОУ ДЖОН"},
    "passport_number": "FA0123456",
    "date_of_birth": "01.01.1990",
    "gender": "M"
  },
  "mrz": {"mrz_line1": "P<UZBDOE<<JOHN", "mrz_line2": "FA0123456"},
  "visas": [{"country": "ITALY", "issue_date": "01.02.2020", "expiry_date": "01.03.2020"}],
  "stamps": [{"country": "TURKEY", "date": "05.02.2020", "type": "entry"}]
}` + "\n```"

const translationAnswer = `{
  "biographical_page": {
    "full_name": "ДОУ ДЖОН",
    "passport_number": "FA0123456",
    "date_of_birth": "01.01.1990",
    "gender": "М"
  },
  "mrz": {"mrz_line1": "SHOULD BE IGNORED"},
  "visas": [{"country": "ИТАЛИЯ", "issue_date": "01.02.2020", "expiry_date": "01.03.2020"}],
  "stamps": [{"country": "ТУРЦИЯ", "date": "05.02.2020", "type": "въезд"}]
}`

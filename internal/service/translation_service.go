package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/passport_api/internal/config"
	"github.com/GTDGit/passport_api/internal/llm"
	"github.com/GTDGit/passport_api/internal/metrics"
	"github.com/GTDGit/passport_api/internal/models"
	"github.com/GTDGit/passport_api/internal/normalize"
)

const fieldTranslationMaxTokens = 2000

func payloadTranslationPrompt(language string) string {
	return fmt.Sprintf(`You are a sworn translator producing a complete notarized %[1]s translation of a passport.
Values may be written in any language or script; detect each one and translate it.

Rules:
1. Translate or transliterate every value into %[1]s. Values already in %[1]s stay as they are.
2. Personal names and place names are transliterated, not translated.
3. Page markers such as "[Page 4: Visa]" are kept and translated, in their original order.
4. MRZ lines are copied unchanged.
5. Dates are written as DD.MM.YYYY.
6. The visas and stamps arrays keep every element of the input, in the same order.
7. JSON keys stay unchanged. Answer with JSON only, no markdown fences and no commentary.

Check that the number of visas and stamps matches the input before answering.`, language)
}

func fieldTranslationPrompt(language string) string {
	return fmt.Sprintf("You translate JSON values to %s while keeping the same structure and keys.", language)
}

// TranslationService translates payloads and template fields through the model endpoint.
type TranslationService struct {
	client  Completer
	cfg     *config.TranslationConfig
	metrics *metrics.Metrics
}

// NewTranslationService creates a new TranslationService
func NewTranslationService(client Completer, cfg *config.TranslationConfig, m *metrics.Metrics) *TranslationService {
	return &TranslationService{client: client, cfg: cfg, metrics: m}
}

// TranslatePayload returns a translated copy of p with the same sections, keys and array lengths.
// Any failure, including a structural mismatch, is reported as *TranslationError.
func (s *TranslationService) TranslatePayload(ctx context.Context, p *models.Payload) (*models.Payload, error) {
	start := time.Now()
	out, err := s.translatePayload(ctx, p)
	if err != nil {
		s.metrics.ObserveTranslation(start, "fallback")
		return nil, &TranslationError{Err: err}
	}
	s.metrics.ObserveTranslation(start, "ok")
	return out, nil
}

func (s *TranslationService) translatePayload(ctx context.Context, p *models.Payload) (*models.Payload, error) {
	if p == nil {
		return nil, errors.New("nil payload")
	}
	src, err := p.Clone()
	if err != nil {
		return nil, fmt.Errorf("copy payload: %w", err)
	}
	pages := src.Pages
	src.Pages = nil

	body, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	text, err := s.client.Complete(ctx, llm.Request{
		Title: "Passport Translator",
		Messages: []llm.Message{
			{Role: "system", Content: payloadTranslationPrompt(s.cfg.Language)},
			{Role: "user", Content: string(body)},
		},
		Temperature: 0,
		MaxTokens:   s.cfg.MaxTokens,
		Timeout:     s.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	translated, err := normalize.Decode([]byte(llm.ExtractJSON(text)))
	if err != nil {
		return nil, fmt.Errorf("parse translation: %w", err)
	}
	if err := sameStructure(src, translated); err != nil {
		return nil, err
	}

	// MRZ is machine data and is never translated.
	translated.MRZ = src.MRZ
	translated.Pages = pages
	return translated, nil
}

// sameStructure checks that every source key survived and that array lengths match.
func sameStructure(src, dst *models.Payload) error {
	if err := sameKeys(models.SectionBiographical, src.BiographicalPage, dst.BiographicalPage); err != nil {
		return err
	}
	if len(src.Visas) != len(dst.Visas) {
		return fmt.Errorf("visa count changed: %d -> %d", len(src.Visas), len(dst.Visas))
	}
	if len(src.Stamps) != len(dst.Stamps) {
		return fmt.Errorf("stamp count changed: %d -> %d", len(src.Stamps), len(dst.Stamps))
	}
	for i := range src.Visas {
		if err := sameKeys(fmt.Sprintf("%s[%d]", models.SectionVisas, i), src.Visas[i], dst.Visas[i]); err != nil {
			return err
		}
	}
	for i := range src.Stamps {
		if err := sameKeys(fmt.Sprintf("%s[%d]", models.SectionStamps, i), src.Stamps[i], dst.Stamps[i]); err != nil {
			return err
		}
	}
	return nil
}

func sameKeys(where string, src, dst models.Section) error {
	var missing []string
	for k := range src {
		if _, ok := dst[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: keys missing after translation: %s", where, strings.Join(missing, ", "))
	}
	return nil
}

// TranslateFields translates the values of a canonical field set. Keys absent from
// the answer, or answered with a non-string, keep their source value.
func (s *TranslationService) TranslateFields(ctx context.Context, fields models.CanonicalFields) (models.CanonicalFields, error) {
	if len(fields) == 0 {
		return fields, nil
	}
	start := time.Now()

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, &TranslationError{Err: err}
	}

	text, err := s.client.Complete(ctx, llm.Request{
		Title: "Passport Template Translator",
		Messages: []llm.Message{
			{Role: "system", Content: fieldTranslationPrompt(s.cfg.Language)},
			{Role: "user", Content: fmt.Sprintf(
				"Translate all values in the following JSON to %s. Keep the same keys and return only JSON without comments or code fences:\n%s",
				s.cfg.Language, body)},
		},
		Temperature: 0,
		MaxTokens:   fieldTranslationMaxTokens,
		Timeout:     s.cfg.Timeout,
	})
	if err != nil {
		s.metrics.ObserveTranslation(start, "fallback")
		return nil, &TranslationError{Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(llm.ExtractJSON(text))))
	dec.UseNumber()
	var answer map[string]any
	if err := dec.Decode(&answer); err != nil {
		s.metrics.ObserveTranslation(start, "fallback")
		return nil, &TranslationError{Err: fmt.Errorf("parse translation: %w", err)}
	}

	out := make(models.CanonicalFields, len(fields))
	for k, v := range fields {
		out[k] = v
		if tv, ok := answer[k].(string); ok {
			out[k] = tv
		}
	}

	s.metrics.ObserveTranslation(start, "ok")
	log.Debug().Int("fields", len(out)).Msg("Template fields translated")
	return out, nil
}

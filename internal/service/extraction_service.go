package service

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/passport_api/internal/config"
	"github.com/GTDGit/passport_api/internal/document"
	"github.com/GTDGit/passport_api/internal/llm"
	"github.com/GTDGit/passport_api/internal/metrics"
	"github.com/GTDGit/passport_api/internal/models"
	"github.com/GTDGit/passport_api/internal/normalize"
)

// Completer sends one chat completion request and returns the answer text.
type Completer interface {
	Complete(ctx context.Context, r llm.Request) (string, error)
}

const extractionPrompt = `Read every page of this passport scan and return its contents as one JSON object.
Visa stickers, residence permits, work permits and border stamps matter as much as the data page.

Sections and fields:

biographical_page (object):
  full_name: all spellings of the holder's name in one string, variants separated by " / "
  surname, given_names, patronymic: only when printed as separate fields
  date_of_birth: DD.MM.YYYY
  place_of_birth
  gender: a single letter, M or F
  nationality: the country name (e.g. "GERMANY"), never the demonym
  passport_number
  issue_date: DD.MM.YYYY
  expiry_date: DD.MM.YYYY
  issuing_authority

mrz (object):
  mrz_line1, mrz_line2: the two machine readable lines exactly as printed

visas (array, one object per visa, residence permit or work permit):
  page_number: integer page of the document where the item appears
  country: issuing country, or host country for a residence permit
  visa_type: e.g. "VISA", "RESIDENCE PERMIT", "WORK PERMIT"
  visa_subtype: category or type code such as "C", "D" or "Tier 4"
  visa_number: the sticker number, usually printed in red or black near the top
  place_of_issue: issuing city or authority code
  issue_date, expiry_date: DD.MM.YYYY when legible
  entries_allowed: e.g. "01", "02", "MULT"; "MULTIPLE" for a residence permit without this field
  stay_duration: e.g. "90 DAYS"; "UNTIL EXPIRY" for a residence permit without this field
  remarks: any annotation or handwritten note
  mrz_line1, mrz_line2: machine readable lines of the sticker, if present
  full_text: the complete text of the sticker area (required)

stamps (array, one object per stamp):
  page_number: integer
  country
  date: DD.MM.YYYY
  type: "entry" or "exit"

Rules:
- Every field value is a string or a number. Do not nest objects or arrays inside a field.
- Use an empty string for a field that is not present.
- Answer with the JSON object only, no markdown and no commentary.

{"biographical_page": {...}, "mrz": {...}, "visas": [...], "stamps": [...]}`

// ExtractionService turns a passport PDF into a normalized payload via the extraction model.
type ExtractionService struct {
	client  Completer
	cfg     *config.LLMConfig
	metrics *metrics.Metrics
}

// NewExtractionService creates a new ExtractionService
func NewExtractionService(client Completer, cfg *config.LLMConfig, m *metrics.Metrics) *ExtractionService {
	return &ExtractionService{client: client, cfg: cfg, metrics: m}
}

// Extract sends the document to the model and normalizes the answer.
// Nothing is persisted here.
func (s *ExtractionService) Extract(ctx context.Context, pdf []byte) (*models.Payload, error) {
	dataURL := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf)

	start := time.Now()
	text, err := s.client.Complete(ctx, llm.Request{
		Title: "Passport Web Service",
		Messages: []llm.Message{{
			Role: "user",
			Content: []llm.ContentPart{
				{Type: "text", Text: extractionPrompt},
				{Type: "file", File: &llm.FilePart{Filename: "passport.pdf", FileData: dataURL}},
			},
		}},
		Temperature: 0,
		MaxTokens:   s.cfg.MaxTokens,
		Plugins:     []llm.Plugin{{ID: "file-parser", PDF: map[string]any{"engine": "native"}}},
		Timeout:     s.cfg.ExtractionTimeout,
	})
	s.metrics.ObserveExtraction(start)
	if err != nil {
		s.metrics.IncrementExtractionFailure("transport")
		return nil, &ExtractionTransportError{Err: err}
	}

	payload, err := normalize.Decode([]byte(llm.ExtractJSON(text)))
	if err != nil {
		s.metrics.IncrementExtractionFailure("parse")
		log.Warn().Err(err).Int("raw_len", len(text)).Msg("Extraction response is not a JSON object")
		return nil, &ExtractionParseError{Raw: text, Err: err}
	}

	pages, err := document.PageNumbers(pdf)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count PDF pages")
	}
	payload.Pages = make([]models.PageRef, 0, len(pages))
	for _, n := range pages {
		payload.Pages = append(payload.Pages, models.PageRef{PageNumber: n})
	}

	log.Info().
		Int("visas", len(payload.Visas)).
		Int("stamps", len(payload.Stamps)).
		Int("pages", len(payload.Pages)).
		Dur("elapsed", time.Since(start)).
		Msg("Passport data extracted")

	return payload, nil
}

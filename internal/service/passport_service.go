package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/passport_api/internal/document"
	"github.com/GTDGit/passport_api/internal/metrics"
	"github.com/GTDGit/passport_api/internal/models"
	"github.com/GTDGit/passport_api/internal/normalize"
	"github.com/GTDGit/passport_api/internal/sse"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// PassportStore persists passport records. Lookups return nil, nil when nothing matches.
type PassportStore interface {
	// Create inserts rec unless a record with the same file hash exists. It returns the
	// stored record and whether this call created it.
	Create(ctx context.Context, rec *models.PassportRecord) (*models.PassportRecord, bool, error)
	GetByID(ctx context.Context, id int64) (*models.PassportRecord, error)
	GetByFileHash(ctx context.Context, hash string) (*models.PassportRecord, error)
	List(ctx context.Context, offset, limit int) ([]*models.PassportRecord, int, error)
	UpdateData(ctx context.Context, id int64, data *models.Payload) (*models.PassportRecord, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// SnapshotStore keeps the original and translated JSON copies of a record payload.
// Reads return nil, nil for an empty slot.
type SnapshotStore interface {
	WriteOriginal(ctx context.Context, id int64, p *models.Payload) error
	WriteTranslated(ctx context.Context, id int64, p *models.Payload) error
	ReadOriginal(ctx context.Context, id int64) (*models.Payload, error)
	ReadTranslated(ctx context.Context, id int64) (*models.Payload, error)
	InvalidateTranslated(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// PayloadExtractor turns document bytes into a normalized payload.
type PayloadExtractor interface {
	Extract(ctx context.Context, pdf []byte) (*models.Payload, error)
}

// PayloadTranslator translates a whole payload.
type PayloadTranslator interface {
	TranslatePayload(ctx context.Context, p *models.Payload) (*models.Payload, error)
}

// Archiver stores the uploaded document under its fingerprint.
type Archiver interface {
	Archive(ctx context.Context, fingerprint string, data []byte) error
}

// ProcessResult is the upload response: the stored payload plus record metadata.
type ProcessResult struct {
	*models.Payload
	RecordID  int64    `json:"record_id"`
	Duplicate bool     `json:"duplicate"`
	Warnings  []string `json:"warnings,omitempty"`
}

// PassportDetail is a single record with its current payload.
type PassportDetail struct {
	models.PassportSummary
	UpdatedAt time.Time       `json:"updated_at"`
	Snapshot  bool            `json:"snapshot"`
	Data      *models.Payload `json:"data"`
}

// FillRequest selects the payload for a template fill: a stored record or inline data.
type FillRequest struct {
	RecordID  *int64          `json:"record_id"`
	Data      json.RawMessage `json:"data"`
	Translate *bool           `json:"translate"`
}

// PassportService runs the intake pipeline and owns record lifecycle.
type PassportService struct {
	store      PassportStore
	snapshots  SnapshotStore
	extractor  PayloadExtractor
	translator PayloadTranslator
	templates  *TemplateService
	archiver   Archiver
	metrics    *metrics.Metrics
	maxUpload  int64
	notifier   sse.RecordNotifier

	wg sync.WaitGroup
}

// NewPassportService creates a new PassportService. archiver may be nil.
func NewPassportService(
	store PassportStore,
	snapshots SnapshotStore,
	extractor PayloadExtractor,
	translator PayloadTranslator,
	templates *TemplateService,
	archiver Archiver,
	m *metrics.Metrics,
	maxUpload int64,
) *PassportService {
	return &PassportService{
		store:      store,
		snapshots:  snapshots,
		extractor:  extractor,
		translator: translator,
		templates:  templates,
		archiver:   archiver,
		metrics:    m,
		maxUpload:  maxUpload,
		notifier:   sse.NopNotifier{},
	}
}

// SetNotifier sets the record event notifier used to push changes to operators.
func (s *PassportService) SetNotifier(n sse.RecordNotifier) {
	if n == nil {
		n = sse.NopNotifier{}
	}
	s.notifier = n
}

// Fingerprint is the hex SHA-256 of the document bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ProcessPassport validates the upload, answers duplicates from the store, and otherwise
// extracts, persists and snapshots the document. Translation runs after the record is durable.
func (s *PassportService) ProcessPassport(ctx context.Context, filename string, data []byte) (*ProcessResult, error) {
	if err := document.CheckUpload(filename, data, s.maxUpload); err != nil {
		s.metrics.IncrementUpload("rejected")
		return nil, &ValidationError{Message: err.Error()}
	}

	hash := Fingerprint(data)
	existing, err := s.store.GetByFileHash(ctx, hash)
	if err != nil {
		return nil, &PersistenceError{Op: "find record by hash", Err: err}
	}
	if existing != nil {
		log.Info().Int64("record_id", existing.ID).Str("hash", hash[:8]).Msg("File already processed, returning existing record")
		return s.duplicate(existing), nil
	}

	payload, err := s.extractor.Extract(ctx, data)
	if err != nil {
		s.metrics.IncrementUpload("failed")
		return nil, err
	}

	warnings := ValidatePayload(payload)
	for _, w := range warnings {
		log.Warn().Str("hash", hash[:8]).Str("warning", w).Msg("Validation warning")
	}
	s.metrics.AddValidationWarnings(len(warnings))

	rec, created, err := s.store.Create(ctx, &models.PassportRecord{
		Filename:       filename,
		FullName:       models.NullableString(payload.FullName()),
		PassportNumber: models.NullableString(payload.PassportNumber()),
		FileHash:       hash,
		Data:           payload,
	})
	if err != nil {
		s.metrics.IncrementUpload("failed")
		return nil, &PersistenceError{Op: "create record", Err: err}
	}
	if !created {
		log.Info().Int64("record_id", rec.ID).Str("hash", hash[:8]).Msg("Concurrent upload created the record first")
		return s.duplicate(rec), nil
	}

	snap := snapshotOf(payload)
	if err := s.snapshots.WriteOriginal(ctx, rec.ID, snap); err != nil {
		log.Error().Err(err).Int64("record_id", rec.ID).Msg("Failed to write original snapshot")
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, hash, data); err != nil {
			log.Error().Err(err).Int64("record_id", rec.ID).Msg("Failed to archive upload")
		}
	}

	s.notifier.NotifyRecordCreated(rec)
	s.translateInBackground(ctx, rec.ID, snap)

	s.metrics.IncrementUpload("created")
	log.Info().Int64("record_id", rec.ID).Str("filename", filename).Int("warnings", len(warnings)).Msg("Passport processed")

	return &ProcessResult{Payload: snap, RecordID: rec.ID, Warnings: warnings}, nil
}

func (s *PassportService) duplicate(rec *models.PassportRecord) *ProcessResult {
	s.metrics.IncrementUpload("duplicate")
	s.metrics.IncrementDuplicate()
	data := rec.Data
	if data == nil {
		data = normalize.Payload(nil)
	}
	return &ProcessResult{Payload: data, RecordID: rec.ID, Duplicate: true}
}

// translateInBackground translates a new record without holding up the response.
// The job outlives the request context; Wait drains pending jobs.
func (s *PassportService) translateInBackground(ctx context.Context, id int64, p *models.Payload) {
	if s.translator == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, err := s.translateAndCache(bg, id, p)
		if errors.Is(err, errSourceChanged) {
			log.Info().Int64("record_id", id).Msg("Record changed during automatic translation, result discarded")
			return
		}
		if err != nil {
			log.Warn().Err(err).Int64("record_id", id).Msg("Automatic translation failed, report will translate on demand")
			return
		}
		log.Info().Int64("record_id", id).Msg("Translation completed and cached")
	}()
}

// errSourceChanged reports a translation whose source was edited or deleted while it ran.
var errSourceChanged = errors.New("record changed during translation")

// translateAndCache translates p and caches the result for record id. The result is
// only kept while p is still the record's current payload: an edit or delete that
// lands during the model call discards it.
func (s *PassportService) translateAndCache(ctx context.Context, id int64, p *models.Payload) (*models.Payload, error) {
	translated, err := s.translator.TranslatePayload(ctx, p)
	if err != nil {
		return nil, err
	}
	if !s.isCurrent(ctx, id, p) {
		return nil, errSourceChanged
	}
	if err := s.snapshots.WriteTranslated(ctx, id, translated); err != nil {
		log.Error().Err(err).Int64("record_id", id).Msg("Failed to write translated snapshot")
		return translated, nil
	}
	// An edit may have slipped in between the check and the write.
	if !s.isCurrent(ctx, id, p) {
		if err := s.snapshots.InvalidateTranslated(ctx, id); err != nil {
			log.Error().Err(err).Int64("record_id", id).Msg("Failed to drop stale translated snapshot")
		}
		return nil, errSourceChanged
	}
	s.notifier.NotifyRecordTranslated(id)
	return translated, nil
}

// isCurrent reports whether p still matches the stored payload of record id.
func (s *PassportService) isCurrent(ctx context.Context, id int64, p *models.Payload) bool {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil || rec == nil {
		return false
	}
	current, _ := s.currentPayload(ctx, rec)
	return samePayload(current, p)
}

// samePayload compares the snapshot form of two payloads.
func samePayload(a, b *models.Payload) bool {
	if a == nil || b == nil {
		return a == b
	}
	ea, errA := json.Marshal(snapshotOf(a))
	eb, errB := json.Marshal(snapshotOf(b))
	return errA == nil && errB == nil && bytes.Equal(ea, eb)
}

// Wait blocks until every background translation has finished.
func (s *PassportService) Wait() {
	s.wg.Wait()
}

// GetPassport returns the record with its original snapshot, or the stored payload when no snapshot exists.
func (s *PassportService) GetPassport(ctx context.Context, id int64) (*PassportDetail, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	data, fromSnapshot := s.currentPayload(ctx, rec)
	return &PassportDetail{
		PassportSummary: rec.Summary(),
		UpdatedAt:       rec.UpdatedAt,
		Snapshot:        fromSnapshot,
		Data:            data,
	}, nil
}

func (s *PassportService) getRecord(ctx context.Context, id int64) (*models.PassportRecord, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get record", Err: err}
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

func (s *PassportService) currentPayload(ctx context.Context, rec *models.PassportRecord) (*models.Payload, bool) {
	snap, err := s.snapshots.ReadOriginal(ctx, rec.ID)
	if err != nil {
		log.Warn().Err(err).Int64("record_id", rec.ID).Msg("Failed to read original snapshot, using stored payload")
	}
	if snap != nil {
		return snap, true
	}
	if rec.Data != nil {
		return rec.Data, false
	}
	return normalize.Payload(nil), false
}

// ListPassports returns one page of records, newest first.
func (s *PassportService) ListPassports(ctx context.Context, page, limit int) (*models.PassportPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	items, total, err := s.store.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list records", Err: err}
	}
	return &models.PassportPage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: (total + limit - 1) / limit,
	}, nil
}

// UpdatePassport replaces the record payload with the normalized edit, overwrites the
// original snapshot and invalidates the translated one.
func (s *PassportService) UpdatePassport(ctx context.Context, id int64, raw json.RawMessage) (*models.Payload, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Message: "Missing data payload"}
	}
	edited, err := normalize.Decode(raw)
	if err != nil {
		if errors.Is(err, normalize.ErrNotObject) {
			return nil, &ValidationError{Message: "Data must be an object"}
		}
		return nil, validationErrorf("Invalid data payload: %v", err)
	}

	current, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(edited.Pages) == 0 && current.Data != nil {
		edited.Pages = current.Data.Pages
	}

	// Drop the translation first so no reader pairs it with the new payload.
	if err := s.snapshots.InvalidateTranslated(ctx, id); err != nil {
		return nil, &PersistenceError{Op: "invalidate translated snapshot", Err: err}
	}

	rec, err := s.store.UpdateData(ctx, id, edited)
	if err != nil {
		return nil, &PersistenceError{Op: "update record", Err: err}
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}

	snap := snapshotOf(edited)
	if err := s.snapshots.WriteOriginal(ctx, id, snap); err != nil {
		s.rollbackEdit(ctx, current)
		return nil, &PersistenceError{Op: "write original snapshot", Err: err}
	}
	// A background translation of the old payload may have been cached meanwhile.
	if err := s.snapshots.InvalidateTranslated(ctx, id); err != nil {
		log.Error().Err(err).Int64("record_id", id).Msg("Failed to invalidate translated snapshot after edit")
	}

	s.notifier.NotifyRecordUpdated(rec)
	log.Info().Int64("record_id", id).Msg("Passport record updated, translation cache cleared")
	return snap, nil
}

// rollbackEdit restores the record row to prev after its snapshot could not be written.
// If the row cannot be restored the snapshots are dropped so reads fall back to the row.
func (s *PassportService) rollbackEdit(ctx context.Context, prev *models.PassportRecord) {
	if prev.Data != nil {
		_, err := s.store.UpdateData(ctx, prev.ID, prev.Data)
		if err == nil {
			log.Warn().Int64("record_id", prev.ID).Msg("Edit rolled back after snapshot write failure")
			return
		}
		log.Error().Err(err).Int64("record_id", prev.ID).Msg("Failed to roll back edit")
	}
	if err := s.snapshots.Delete(ctx, prev.ID); err != nil {
		log.Error().Err(err).Int64("record_id", prev.ID).Msg("Failed to drop snapshots after edit failure")
	}
}

// DeletePassport removes the record and both of its snapshots.
func (s *PassportService) DeletePassport(ctx context.Context, id int64) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return &PersistenceError{Op: "delete record", Err: err}
	}
	if !deleted {
		return ErrRecordNotFound
	}
	if err := s.snapshots.Delete(ctx, id); err != nil {
		return &PersistenceError{Op: "delete snapshots", Err: err}
	}
	s.notifier.NotifyRecordDeleted(id)
	log.Info().Int64("record_id", id).Msg("Passport record deleted")
	return nil
}

// TranslatedSnapshot returns the translated payload for the report. A missing translation is
// computed and cached; if translation fails the untranslated payload is returned with false.
func (s *PassportService) TranslatedSnapshot(ctx context.Context, id int64) (*models.Payload, bool, error) {
	rec, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, false, err
	}

	cached, err := s.snapshots.ReadTranslated(ctx, id)
	if err != nil {
		log.Warn().Err(err).Int64("record_id", id).Msg("Failed to read translated snapshot")
	}
	if cached != nil {
		return cached, true, nil
	}

	original, _ := s.currentPayload(ctx, rec)
	if s.translator == nil {
		return original, false, nil
	}
	translated, err := s.translateAndCache(ctx, id, original)
	if err != nil {
		log.Warn().Err(err).Int64("record_id", id).Msg("Translation failed, using original")
		return original, false, nil
	}
	return translated, true, nil
}

// FillTemplate renders a template from a stored record or from inline data.
// Translation is on unless the request disables it.
func (s *PassportService) FillTemplate(ctx context.Context, templateID string, req FillRequest) (*models.FilledTemplate, error) {
	if _, ok := s.templates.registry.Get(templateID); !ok {
		return nil, ErrUnknownTemplate
	}

	var payload *models.Payload
	switch {
	case req.RecordID != nil:
		rec, err := s.getRecord(ctx, *req.RecordID)
		if err != nil {
			return nil, err
		}
		payload, _ = s.currentPayload(ctx, rec)
	case len(req.Data) > 0 && string(req.Data) != "null":
		p, err := normalize.Decode(req.Data)
		if err != nil {
			return nil, &ValidationError{Message: "Provide record_id or data"}
		}
		payload = p
	default:
		return nil, &ValidationError{Message: "Provide record_id or data"}
	}

	translate := req.Translate == nil || *req.Translate
	return s.templates.Fill(ctx, templateID, payload, translate)
}

// BackfillTranslations translates recent records whose translated snapshot is missing.
// It returns how many translations were cached.
func (s *PassportService) BackfillTranslations(ctx context.Context, batch int) (int, error) {
	if s.translator == nil {
		return 0, nil
	}
	recs, _, err := s.store.List(ctx, 0, batch)
	if err != nil {
		return 0, &PersistenceError{Op: "list records", Err: err}
	}

	done := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		cached, err := s.snapshots.ReadTranslated(ctx, rec.ID)
		if err != nil {
			log.Warn().Err(err).Int64("record_id", rec.ID).Msg("Failed to read translated snapshot")
			continue
		}
		if cached != nil {
			continue
		}
		original, _ := s.currentPayload(ctx, rec)
		if _, err := s.translateAndCache(ctx, rec.ID, original); err != nil {
			log.Warn().Err(err).Int64("record_id", rec.ID).Msg("Backfill translation failed")
			continue
		}
		done++
	}
	return done, nil
}

// snapshotOf is the payload as cached in snapshots: everything except page bookkeeping.
func snapshotOf(p *models.Payload) *models.Payload {
	snap := *p
	snap.Pages = nil
	snap.EnsureDefaults()
	return &snap
}

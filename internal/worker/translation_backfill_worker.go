package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// TranslationBackfiller translates records whose translated snapshot is missing.
type TranslationBackfiller interface {
	BackfillTranslations(ctx context.Context, batch int) (int, error)
}

// TranslationBackfillWorker periodically fills in translations that the
// fire-and-forget job after upload did not manage to cache.
type TranslationBackfillWorker struct {
	backfiller TranslationBackfiller
	interval   time.Duration
	batch      int
}

// NewTranslationBackfillWorker constructs a TranslationBackfillWorker.
func NewTranslationBackfillWorker(backfiller TranslationBackfiller, interval time.Duration, batch int) *TranslationBackfillWorker {
	if batch <= 0 {
		batch = 20
	}
	return &TranslationBackfillWorker{
		backfiller: backfiller,
		interval:   interval,
		batch:      batch,
	}
}

// Start begins the periodic backfill loop until context is canceled.
func (w *TranslationBackfillWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Int("batch", w.batch).Msg("Starting translation backfill worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Translation backfill worker stopped")
			return
		}
	}
}

func (w *TranslationBackfillWorker) run(ctx context.Context) {
	n, err := w.backfiller.BackfillTranslations(ctx, w.batch)
	if err != nil {
		log.Error().Err(err).Int("translated", n).Msg("Translation backfill failed")
		return
	}
	if n > 0 {
		log.Info().Int("translated", n).Msg("Translation backfill completed")
	}
}

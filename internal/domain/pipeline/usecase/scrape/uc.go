// Package scrape ingests adapter records into raw listings.
package scrape

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	pkgerrors "github.com/TheAVengineer/CarScout-AI/pkg/errors"
)

const maxPagesPerTick = 10

// UseCase drives one scheduler tick for one source
type UseCase struct {
	sources  deps.SourceRepository
	raws     deps.RawListingRepository
	adapters deps.AdapterRegistry
	enqueuer deps.Enqueuer
	tx       deps.Tx
	cfg      *config.PipelineConfig
	logger   zerolog.Logger
}

// NewUseCase creates the scrape use case
func NewUseCase(
	sources deps.SourceRepository,
	raws deps.RawListingRepository,
	adapters deps.AdapterRegistry,
	enqueuer deps.Enqueuer,
	tx deps.Tx,
	cfg *config.PipelineConfig,
	logger zerolog.Logger,
) *UseCase {
	return &UseCase{
		sources:  sources,
		raws:     raws,
		adapters: adapters,
		enqueuer: enqueuer,
		tx:       tx,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProcessTick ingests the recent records of a source. Replayed ticks are
// no-ops; a replay after a partial run re-upserts idempotently.
func (u *UseCase) ProcessTick(ctx context.Context, task *dto.ScrapeTask) (dto.Result, error) {
	done, err := u.sources.TickExists(ctx, task.SourceID, task.TickBucket)
	if err != nil {
		return dto.ResultRetry, err
	}
	if done {
		u.logger.Debug().
			Str("source_id", task.SourceID.String()).
			Int64("bucket", task.TickBucket).
			Msg("Tick already processed, skipping")
		return dto.ResultSkip, nil
	}

	source, err := u.sources.GetByID(ctx, task.SourceID)
	if err != nil {
		if pkgerrors.IsNotFoundError(err) {
			return dto.ResultSkip, err
		}
		return dto.ResultRetry, err
	}
	if !source.Enabled {
		return dto.ResultSkip, nil
	}

	adapter, ok := u.adapters.Adapter(source.Name)
	if !ok {
		u.logger.Warn().Str("source", source.Name).Msg("No adapter registered")
		return dto.ResultSkip, nil
	}

	workers := u.cfg.PerSourceConcurrency
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var (
		cursor   string
		total    int
		failures int32
		wg       sync.WaitGroup
	)
	for page := 0; page < maxPagesPerTick; page++ {
		records, next, err := adapter.ListRecent(ctx, cursor)
		if err != nil {
			u.logger.Error().Err(err).Str("source", source.Name).Msg("Adapter listing failed")
			atomic.AddInt32(&failures, 1)
			break
		}

		for i := range records {
			rec := records[i]
			total++
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				if err := u.ingestRecord(ctx, task, &rec); err != nil {
					atomic.AddInt32(&failures, 1)
					u.logger.Error().Err(err).
						Str("source", source.Name).
						Str("site_ad_id", rec.SiteAdID).
						Msg("Failed to ingest record")
				}
			}()
		}

		if next == "" {
			break
		}
		cursor = next
	}
	wg.Wait()

	failed := int(atomic.LoadInt32(&failures))
	if total > 0 && float64(failed)/float64(total) > u.cfg.SourceErrorThreshold {
		until := time.Now().UTC().Add(u.cfg.SourcePauseFor)
		u.logger.Warn().
			Str("source", source.Name).
			Int("failures", failed).
			Int("total", total).
			Time("until", until).
			Msg("Source error budget exceeded, pausing")
		if err := u.sources.Pause(ctx, source.ID, until); err != nil {
			u.logger.Error().Err(err).Msg("Failed to pause source")
		}
	}

	if total > 0 && failed == total {
		// nothing landed; let the queue retry this tick
		return dto.ResultRetry, pkgerrors.NewUnavailableError("all records failed")
	}

	if err := u.sources.RecordTick(ctx, task.SourceID, task.TickBucket); err != nil && !pkgerrors.IsConflictError(err) {
		return dto.ResultRetry, err
	}

	u.logger.Info().
		Str("source", source.Name).
		Int64("bucket", task.TickBucket).
		Int("records", total).
		Int("failures", failed).
		Msg("Tick processed")
	return dto.ResultDone, nil
}

// ingestRecord upserts the raw listing and enqueues parse atomically
func (u *UseCase) ingestRecord(ctx context.Context, task *dto.ScrapeTask, rec *dto.AdapterRecord) error {
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now().UTC()
	}

	return u.tx.Do(ctx, func(ctx context.Context) error {
		raw, changed, created, err := u.raws.Upsert(ctx, task.SourceID, rec)
		if err != nil {
			return err
		}

		// re-observation without content change needs no parse
		if !changed && !created {
			return nil
		}

		return u.enqueuer.Enqueue(ctx, consts.TopicParse, raw.ID.String(), &dto.ListingTask{RawID: raw.ID})
	})
}

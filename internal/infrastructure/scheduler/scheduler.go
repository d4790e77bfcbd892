// Package scheduler emits scrape ticks and sweeps due alert matches.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/TheAVengineer/CarScout-AI/config"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/alert/usecase/notify"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/consts"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/deps"
	"github.com/TheAVengineer/CarScout-AI/internal/domain/pipeline/dto"
	kafkainfra "github.com/TheAVengineer/CarScout-AI/internal/infrastructure/kafka"
)

// tickScanEvery bounds how late a source tick can fire relative to its
// crawl interval
const tickScanEvery = "@every 30s"

// Scheduler drives time-based work: per-source scrape ticks and the
// alert-dispatch sweep. Tick buckets are coarse (interval-sized), so
// re-emitting a bucket is harmless; the scrape stage replays idempotently.
type Scheduler struct {
	sources  deps.SourceRepository
	producer *kafkainfra.Producer
	notifyUC *notify.UseCase
	cfg      *config.AlertsConfig
	cron     *cron.Cron
	logger   zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates the scheduler
func New(
	sources deps.SourceRepository,
	producer *kafkainfra.Producer,
	notifyUC *notify.UseCase,
	cfg *config.AlertsConfig,
	logger zerolog.Logger,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sources:  sources,
		producer: producer,
		notifyUC: notifyUC,
		cfg:      cfg,
		cron:     cron.New(),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the cron entries and starts the loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(tickScanEvery, s.emitTicks); err != nil {
		return err
	}

	dispatchSpec := "@every " + s.cfg.DispatchEvery.String()
	if _, err := s.cron.AddFunc(dispatchSpec, s.dispatchAlerts); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().Msg("Scheduler started")
	return nil
}

// emitTicks enqueues the current tick bucket for every enabled source
func (s *Scheduler) emitTicks() {
	sources, err := s.sources.ListEnabled(s.ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list sources")
		return
	}

	now := time.Now().UTC().Unix()
	for _, source := range sources {
		interval := int64(source.CrawlInterval)
		if interval <= 0 {
			interval = 120
		}

		task := dto.ScrapeTask{
			SourceID:   source.ID,
			TickBucket: now / interval,
		}
		payload, err := kafkainfra.NewEnvelope(&task)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to build tick envelope")
			continue
		}
		if err := s.producer.Publish(s.ctx, consts.TopicScrape, source.ID.String(), payload); err != nil {
			s.logger.Error().Err(err).
				Str("source", source.Name).
				Msg("Failed to publish scrape tick")
		}
	}
}

// dispatchAlerts moves due alert matches onto the notification queue
func (s *Scheduler) dispatchAlerts() {
	if err := s.notifyUC.DispatchDue(s.ctx); err != nil {
		s.logger.Error().Err(err).Msg("Alert dispatch sweep failed")
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.cancel()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

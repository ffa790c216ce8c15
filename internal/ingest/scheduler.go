package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/DeividasMat/deal-website-sub000/internal/dedup"
	"github.com/DeividasMat/deal-website-sub000/internal/globaltime"
	"github.com/DeividasMat/deal-website-sub000/internal/logging"
)

// Runner is the coordinator surface driven by the scheduler.
type Runner interface {
	Run(ctx context.Context, targetDate time.Time) (RunSummary, error)
	Sweep(ctx context.Context) (dedup.SweepResult, error)
}

type SchedulerOptions struct {
	// A non-positive interval disables that schedule.
	IngestEvery time.Duration
	SweepEvery  time.Duration
	RunOnStart  bool
}

// Scheduler triggers ingestion for the current UTC day and standalone
// sweeps on fixed intervals. Ticks that find the coordinator busy are
// skipped, not queued.
type Scheduler struct {
	runner Runner
	opts   SchedulerOptions
	logger zerolog.Logger
}

func NewScheduler(runner Runner, logger zerolog.Logger, opts SchedulerOptions) *Scheduler {
	return &Scheduler{
		runner: runner,
		opts:   opts,
		logger: logging.Component(logger, "scheduler"),
	}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	ingestC, stopIngest := tickerChannel(s.opts.IngestEvery)
	defer stopIngest()
	sweepC, stopSweep := tickerChannel(s.opts.SweepEvery)
	defer stopSweep()

	s.logger.Info().
		Dur("ingest_every", s.opts.IngestEvery).
		Dur("sweep_every", s.opts.SweepEvery).
		Msg("scheduler started")

	if s.opts.RunOnStart && ingestC != nil {
		s.ingest(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ingestC:
			s.ingest(ctx)
		case <-sweepC:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) ingest(ctx context.Context) {
	summary, err := s.runner.Run(ctx, globaltime.Today())
	switch {
	case errors.Is(err, ErrBusy):
		s.logger.Info().Msg("scheduled ingestion skipped; coordinator busy")
	case err != nil:
		s.logger.Error().Err(err).Msg("scheduled ingestion failed")
	default:
		s.logger.Info().Str("run_uuid", summary.RunUUID).Int("inserted", summary.Inserted).Msg("scheduled ingestion finished")
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	result, err := s.runner.Sweep(ctx)
	switch {
	case errors.Is(err, ErrBusy):
		s.logger.Info().Msg("scheduled sweep skipped; coordinator busy")
	case err != nil:
		s.logger.Error().Err(err).Msg("scheduled sweep failed")
	default:
		s.logger.Info().Int("deleted", result.Deleted).Msg("scheduled sweep finished")
	}
}

// tickerChannel returns a nil channel, which never fires, for a disabled
// schedule.
func tickerChannel(every time.Duration) (<-chan time.Time, func()) {
	if every <= 0 {
		return nil, func() {}
	}
	ticker := time.NewTicker(every)
	return ticker.C, ticker.Stop
}

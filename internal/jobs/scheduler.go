package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type PlacementSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type TokenPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic hygiene sweeps. They only tidy rows the
// request-time checks already treat as dead; correctness never waits on a
// tick.
type Scheduler struct {
	cron       *cron.Cron
	placements PlacementSweeper
	tokens     TokenPurger
	log        zerolog.Logger
}

func NewScheduler(placements PlacementSweeper, tokens TokenPurger, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:       c,
		placements: placements,
		tokens:     tokens,
		log:        log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 * * * *", s.sweepPlacements); err != nil { // hourly
		return err
	}
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.purgeTokens); err != nil { // daily
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for in-flight jobs, up to a short grace
// period.
func (s *Scheduler) Stop() {
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("timed out waiting for running jobs")
	}
}

func (s *Scheduler) sweepPlacements() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.placements.SweepExpired(ctx, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("sweep expired placement requests failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("expired", n).Msg("placement requests swept")
	}
}

func (s *Scheduler) purgeTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.tokens.PurgeExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("purge expired child tokens failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("purged", n).Msg("child access tokens purged")
	}
}

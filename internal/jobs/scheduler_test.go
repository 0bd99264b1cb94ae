package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls int
}

func (s *countingSweeper) SweepExpired(_ context.Context, _ time.Time) (int64, error) {
	s.calls++
	return 3, nil
}

type countingPurger struct {
	calls int
}

func (p *countingPurger) PurgeExpired(_ context.Context) (int64, error) {
	p.calls++
	return 1, nil
}

func TestScheduledJobsInvokeTheirStores(t *testing.T) {
	sweeper := &countingSweeper{}
	purger := &countingPurger{}
	s := NewScheduler(sweeper, purger, zerolog.Nop())

	s.sweepPlacements()
	s.purgeTokens()

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 1, purger.calls)
}

func TestStartRegistersEntries(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, &countingPurger{}, zerolog.Nop())
	assert.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()
}

func TestStopReturnsOnceJobsFinish(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, &countingPurger{}, zerolog.Nop())
	assert.NoError(t, s.Start())

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return with no jobs in flight")
	}
}

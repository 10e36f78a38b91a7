package pipeline

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock abstracts time for the scheduler
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NextDeadline returns the deadline following a tick that was due at deadline
// and finished at now. Period boundaries that passed while the tick ran are
// dropped and counted in skipped; the result is always after now, so at most
// one tick is ever outstanding
func NextDeadline(deadline, now time.Time, period time.Duration) (next time.Time, skipped uint64) {
	next = deadline.Add(period)
	if now.Before(next) {
		return next, 0
	}

	late := now.Sub(deadline) / period
	return deadline.Add((late + 1) * period), uint64(late)
}

// Scheduler invokes a function at a fixed rate on the calling goroutine
type Scheduler struct {
	period time.Duration
	clock  Clock

	ticks    atomic.Uint64
	skipped  atomic.Uint64
	overruns atomic.Uint64
}

// NewScheduler creates a scheduler running rate times per second
func NewScheduler(rate float64, clock Clock) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	return &Scheduler{
		period: time.Duration(float64(time.Second) / rate),
		clock:  clock,
	}
}

// Period returns the nominal tick period
func (s *Scheduler) Period() time.Duration { return s.period }

// Ticks returns how many times fn ran
func (s *Scheduler) Ticks() uint64 { return s.ticks.Load() }

// Skipped returns how many period boundaries were dropped after overruns
func (s *Scheduler) Skipped() uint64 { return s.skipped.Load() }

// Overruns returns how many ticks ran past the following boundary
func (s *Scheduler) Overruns() uint64 { return s.overruns.Load() }

// Run calls fn at every deadline until ctx is cancelled, returning ctx.Err()
// The first call happens immediately
func (s *Scheduler) Run(ctx context.Context, fn func(now time.Time)) error {
	deadline := s.clock.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if wait := deadline.Sub(s.clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.clock.After(wait):
			}
		}

		fn(s.clock.Now())
		s.ticks.Add(1)

		next, skipped := NextDeadline(deadline, s.clock.Now(), s.period)
		if skipped > 0 {
			s.skipped.Add(skipped)
			s.overruns.Add(1)
		}
		deadline = next
	}
}

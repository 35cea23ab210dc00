package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// midnightGrace delays the midnight check so it lands after the day boundary.
const midnightGrace = time.Second

// RolloverChecker runs an idempotent day rollover check.
type RolloverChecker interface {
	CheckRollover(ctx context.Context, trigger Trigger) (bool, error)
}

// RolloverScheduler triggers rollover checks periodically and at local midnight,
// independent of the tick loop.
type RolloverScheduler struct {
	checker  RolloverChecker
	interval time.Duration
	location *time.Location
	clock    Clock
	logger   zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

// NewRolloverScheduler creates a new rollover scheduler
func NewRolloverScheduler(checker RolloverChecker, interval time.Duration, location *time.Location, clock Clock, logger zerolog.Logger) *RolloverScheduler {
	if interval <= 0 {
		interval = DefaultRolloverCheckInterval
	}
	if location == nil {
		location = time.Local
	}
	if clock == nil {
		clock = RealClock{}
	}

	return &RolloverScheduler{
		checker:  checker,
		interval: interval,
		location: location,
		clock:    clock,
		logger:   logger.With().Str("component", "rollover-scheduler").Logger(),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the rollover scheduler
func (rs *RolloverScheduler) Start() {
	if !rs.started.CompareAndSwap(false, true) {
		return
	}
	go rs.run()
	rs.logger.Info().
		Dur("interval", rs.interval).
		Str("location", rs.location.String()).
		Msg("Rollover scheduler started")
}

// Stop stops the rollover scheduler and waits for the loop to exit.
func (rs *RolloverScheduler) Stop() {
	rs.stopOnce.Do(func() {
		close(rs.stopChan)
		if rs.started.Load() {
			<-rs.done
		}
		rs.logger.Info().Msg("Rollover scheduler stopped")
	})
}

// run is the main scheduler loop
func (rs *RolloverScheduler) run() {
	defer close(rs.done)

	for {
		next := rs.nextCheck(rs.clock.Now())
		wait := next.Sub(rs.clock.Now())
		if wait < 0 {
			wait = 0
		}

		rs.logger.Debug().
			Time("next_check", next).
			Dur("wait_duration", wait).
			Msg("Scheduled next rollover check")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			rs.performCheck()
		case <-rs.stopChan:
			timer.Stop()
			return
		}
	}
}

// nextCheck returns the earlier of now plus the interval and just after the
// next local midnight.
func (rs *RolloverScheduler) nextCheck(now time.Time) time.Time {
	local := now.In(rs.location)
	midnight := DayOf(local).Start(rs.location).AddDate(0, 0, 1).Add(midnightGrace)

	periodic := now.Add(rs.interval)
	if midnight.Before(periodic) {
		return midnight
	}
	return periodic
}

// performCheck runs one rollover check
func (rs *RolloverScheduler) performCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rolled, err := rs.checker.CheckRollover(ctx, TriggerPeriodic)
	if err != nil {
		rs.logger.Error().Err(err).Msg("Periodic rollover check failed")
		return
	}
	if rolled {
		rs.logger.Info().Msg("Periodic rollover check finalized the previous day")
	}
}

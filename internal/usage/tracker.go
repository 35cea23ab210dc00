package usage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/timekeeper/internal/metrics"
	"github.com/goodtune/timekeeper/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultRolloverCheckInterval is the period of the coarse rollover check.
const DefaultRolloverCheckInterval = time.Hour

// ErrNotLoaded is returned by operations that need persisted state before Load has run.
var ErrNotLoaded = errors.New("usage: tracker state not loaded")

// Config holds tracker configuration
type Config struct {
	TickInterval          time.Duration
	IdleThreshold         time.Duration
	RolloverCheckInterval time.Duration
	NotificationTTL       time.Duration
	Mode                  Mode
	Goal                  GoalPolicy
	DefaultGoal           time.Duration
	ClampOnLoad           bool
	Location              *time.Location
}

// Tracker owns the session state and serialises every operation on it.
type Tracker struct {
	store       storage.Store
	cfg         Config
	clock       Clock
	notifier    Notifier
	accumulator Accumulator
	logger      zerolog.Logger

	mu     sync.Mutex
	state  SessionState
	window ActivityWindow
	watch  goalWatch
	loaded bool

	// lastSignal is the last activity signal; legacy ticks also move window.LastActivity.
	lastSignal time.Time

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTracker creates a new usage tracker. A nil clock uses RealClock and a nil
// notifier discards notifications.
func NewTracker(store storage.Store, cfg Config, clock Clock, notifier Notifier, logger zerolog.Logger) *Tracker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = DefaultIdleThreshold
	}
	if cfg.RolloverCheckInterval <= 0 {
		cfg.RolloverCheckInterval = DefaultRolloverCheckInterval
	}
	if cfg.NotificationTTL < 0 {
		cfg.NotificationTTL = 0
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeBounded
	}
	if cfg.Goal == (GoalPolicy{}) {
		cfg.Goal = DefaultGoalPolicy()
	}
	if cfg.DefaultGoal <= 0 {
		cfg.DefaultGoal = DefaultGoal
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if clock == nil {
		clock = RealClock{}
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}

	return &Tracker{
		store:    store,
		cfg:      cfg,
		clock:    clock,
		notifier: notifier,
		accumulator: Accumulator{
			IdleThreshold: cfg.IdleThreshold,
			TickInterval:  cfg.TickInterval,
			Mode:          cfg.Mode,
		},
		logger: logger.With().Str("component", "usage-tracker").Logger(),
		watch:  goalWatch{ttl: cfg.NotificationTTL},
	}
}

// Config returns the effective configuration after defaults were applied.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Load reads the persisted session, falling back to defaults when it is
// missing or unreadable, runs the rollover check and persists the result.
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	state, err := t.readState(ctx)
	if err != nil {
		return err
	}

	if state.Goal <= 0 {
		state.Goal = t.cfg.DefaultGoal
	}
	if t.cfg.ClampOnLoad {
		decision := t.cfg.Goal.Clamp(state.Goal)
		if decision.Clamped {
			t.logger.Info().
				Dur("requested", decision.Requested).
				Dur("effective", decision.Effective).
				Str("reason", string(decision.Reason)).
				Msg("Clamped persisted goal on load")
			metrics.GoalClampsTotal.WithLabelValues(string(decision.Reason)).Inc()
		}
		state.Goal = decision.Effective
	}

	t.state = state
	t.window = NewActivityWindow(now)
	t.lastSignal = now
	t.watch.reset()
	t.loaded = true

	if _, err := t.applyRollover(ctx, now, TriggerLoad); err != nil {
		return err
	}
	if err := t.persist(ctx, t.state); err != nil {
		return err
	}

	metrics.UsageSeconds.Set(t.state.Accumulated.Seconds())
	metrics.GoalSeconds.Set(t.state.Goal.Seconds())

	t.logger.Info().
		Str("day", t.state.LastUpdated.String()).
		Str("usage", FormatDuration(t.state.Accumulated)).
		Str("goal", FormatDuration(t.state.Goal)).
		Msg("Loaded session state")

	return nil
}

// readState must be called with the lock held.
func (t *Tracker) readState(ctx context.Context) (SessionState, error) {
	record, err := t.store.Sessions().Get(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		t.logger.Info().Msg("No persisted session, starting fresh")
		metrics.StateRecoveriesTotal.WithLabelValues("missing").Inc()
		return SessionState{}, nil
	case errors.Is(err, storage.ErrCorrupt):
		t.logger.Warn().Err(err).Msg("Persisted session is unreadable, using defaults")
		metrics.StateRecoveriesTotal.WithLabelValues("corrupt").Inc()
		return SessionState{}, nil
	case err != nil:
		return SessionState{}, fmt.Errorf("failed to read session: %w", err)
	}

	state, err := fromRecord(*record)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Persisted session is invalid, using defaults")
		metrics.StateRecoveriesTotal.WithLabelValues("corrupt").Inc()
		return SessionState{}, nil
	}
	return state, nil
}

// RecordActivity registers an activity signal at the current time.
func (t *Tracker) RecordActivity(source string) {
	if source == "" {
		source = "unknown"
	}

	t.mu.Lock()
	now := t.clock.Now()
	t.window.LastActivity = now
	t.lastSignal = now
	t.mu.Unlock()

	metrics.ActivityEventsTotal.WithLabelValues(source).Inc()
}

// Tick runs one tracking step: rollover check, accumulation, goal check and persist.
func (t *Tracker) Tick(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		return ErrNotLoaded
	}

	now := t.clock.Now()
	if _, err := t.applyRollover(ctx, now, TriggerTick); err != nil {
		return err
	}

	next := t.state
	var window ActivityWindow
	next.Accumulated, window = t.accumulator.Accumulate(now, t.window, t.state.Accumulated)

	if err := t.persist(ctx, next); err != nil {
		return err
	}
	t.window = window

	if credited := next.Accumulated - t.state.Accumulated; credited > 0 {
		metrics.ActiveSecondsTotal.Add(credited.Seconds())
	}
	t.state = next
	metrics.UsageSeconds.Set(t.state.Accumulated.Seconds())

	if n := t.watch.observe(now, t.state.LastUpdated, t.state.Accumulated, t.state.Goal); n != nil {
		t.logger.Info().
			Str("day", n.Day.String()).
			Str("usage", FormatDuration(n.Usage)).
			Str("goal", FormatDuration(n.Goal)).
			Msg("Daily goal exceeded")
		metrics.GoalNotificationsTotal.Inc()
		t.notifier.Notify(*n)
	}

	return nil
}

// CheckRollover finalizes the previous day if the calendar day has changed.
// It reports whether a rollover happened and is a no-op otherwise.
func (t *Tracker) CheckRollover(ctx context.Context, trigger Trigger) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		return false, ErrNotLoaded
	}
	return t.applyRollover(ctx, t.clock.Now(), trigger)
}

// applyRollover must be called with the lock held.
func (t *Tracker) applyRollover(ctx context.Context, now time.Time, trigger Trigger) (bool, error) {
	next, record := CheckRollover(t.dayAt(now), t.state)
	if record == nil {
		if next != t.state {
			if err := t.persist(ctx, next); err != nil {
				return false, err
			}
			t.state = next
		}
		return false, nil
	}

	if err := t.store.Finalize(ctx, record.Day.String(), record.Usage.Milliseconds(), toRecord(next)); err != nil {
		return false, fmt.Errorf("failed to finalize %s: %w", record.Day, err)
	}

	t.state = next
	t.watch.reset()
	metrics.RolloversTotal.WithLabelValues(string(trigger)).Inc()
	metrics.UsageSeconds.Set(0)

	t.logger.Info().
		Str("trigger", string(trigger)).
		Str("finalized_day", record.Day.String()).
		Str("usage", FormatDuration(record.Usage)).
		Str("today", next.LastUpdated.String()).
		Msg("Rolled over to a new day")

	return true, nil
}

// SetGoal validates and clamps a goal given in hours and minutes, then persists it.
func (t *Tracker) SetGoal(ctx context.Context, hours, minutes int) (GoalDecision, error) {
	requested, err := GoalFromHoursMinutes(hours, minutes)
	if err != nil {
		return GoalDecision{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		return GoalDecision{}, ErrNotLoaded
	}

	decision := t.cfg.Goal.Clamp(requested)
	next := t.state
	next.Goal = decision.Effective
	if err := t.persist(ctx, next); err != nil {
		return GoalDecision{}, err
	}

	t.state = next
	t.watch.reset()
	metrics.GoalSeconds.Set(next.Goal.Seconds())

	logEvent := t.logger.Info()
	if decision.Clamped {
		metrics.GoalClampsTotal.WithLabelValues(string(decision.Reason)).Inc()
		logEvent = logEvent.Str("reason", string(decision.Reason)).Dur("requested", decision.Requested)
	}
	logEvent.Str("goal", FormatDuration(decision.Effective)).Msg("Daily goal updated")

	return decision, nil
}

// Snapshot returns the current state for presentation.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	snap := Snapshot{
		Day:          t.state.LastUpdated,
		Usage:        t.state.Accumulated,
		Goal:         t.state.Goal,
		Exceeded:     t.state.Goal > 0 && t.state.Accumulated >= t.state.Goal,
		Active:       t.loaded && now.Sub(t.lastSignal) < t.cfg.IdleThreshold,
		Notification: t.watch.present(now),
	}
	if remaining := t.state.Goal - t.state.Accumulated; remaining > 0 {
		snap.Remaining = remaining
	}
	return snap
}

// History returns every finalized day, most recent first. Unreadable history
// is reported as empty.
func (t *Tracker) History(ctx context.Context) ([]HistoryEntry, error) {
	t.mu.Lock()
	goal := t.state.Goal
	t.mu.Unlock()

	all, err := t.store.History().GetAll(ctx)
	if errors.Is(err, storage.ErrCorrupt) {
		t.logger.Warn().Err(err).Msg("Usage history is unreadable, reporting it as empty")
		metrics.StateRecoveriesTotal.WithLabelValues("corrupt_history").Inc()
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(all))
	for key, ms := range all {
		day, err := ParseDay(key)
		if err != nil {
			t.logger.Warn().Str("key", key).Msg("Skipping history entry with invalid day")
			continue
		}
		usage := time.Duration(ms) * time.Millisecond
		entries = append(entries, HistoryEntry{
			Day:      day,
			Usage:    usage,
			Exceeded: goal > 0 && usage >= goal,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[j].Day.Before(entries[i].Day)
	})
	return entries, nil
}

// HistoryFor returns the finalized usage of one day, or storage.ErrNotFound.
// An unreadable value is reported as not found, matching History.
func (t *Tracker) HistoryFor(ctx context.Context, day Day) (HistoryEntry, error) {
	t.mu.Lock()
	goal := t.state.Goal
	t.mu.Unlock()

	ms, err := t.store.History().Get(ctx, day.String())
	if errors.Is(err, storage.ErrCorrupt) {
		t.logger.Warn().Err(err).Str("day", day.String()).Msg("History value is unreadable, reporting it as not found")
		metrics.StateRecoveriesTotal.WithLabelValues("corrupt_history").Inc()
		return HistoryEntry{}, storage.ErrNotFound
	}
	if err != nil {
		return HistoryEntry{}, err
	}
	usage := time.Duration(ms) * time.Millisecond
	return HistoryEntry{Day: day, Usage: usage, Exceeded: goal > 0 && usage >= goal}, nil
}

// Shutdown stops the tick loop, runs a final rollover check and writes
// today's in-progress usage to history before persisting the session.
func (t *Tracker) Shutdown(ctx context.Context) error {
	if err := t.Stop(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		return nil
	}

	if _, err := t.applyRollover(ctx, t.clock.Now(), TriggerShutdown); err != nil {
		return err
	}

	day := t.state.LastUpdated.String()
	if err := t.store.Finalize(ctx, day, t.state.Accumulated.Milliseconds(), toRecord(t.state)); err != nil {
		return fmt.Errorf("failed to write shutdown history for %s: %w", day, err)
	}

	t.logger.Info().
		Str("day", day).
		Str("usage", FormatDuration(t.state.Accumulated)).
		Msg("Saved usage on shutdown")

	return nil
}

// Start loads state if needed and runs the tick loop until Stop or ctx is done.
// A loop started earlier is stopped first so two loops never run together.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	loaded := t.loaded
	t.mu.Unlock()

	if !loaded {
		if err := t.Load(ctx); err != nil {
			return err
		}
	}

	t.loopMu.Lock()
	defer t.loopMu.Unlock()

	if t.cancel != nil {
		t.cancel()
		<-t.done
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.run(loopCtx, done)

	t.logger.Info().
		Dur("tick_interval", t.cfg.TickInterval).
		Dur("idle_threshold", t.cfg.IdleThreshold).
		Str("mode", string(t.cfg.Mode)).
		Msg("Usage tracking started")

	return nil
}

// Stop stops the tick loop and waits for it to exit or for ctx to be done.
func (t *Tracker) Stop(ctx context.Context) error {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()

	if t.cancel == nil {
		return nil
	}

	t.cancel()
	select {
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.cancel = nil
	t.done = nil
	t.logger.Info().Msg("Usage tracking stopped")
	return nil
}

// run is the tick loop
func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Tick(ctx); err != nil && ctx.Err() == nil {
				t.logger.Error().Err(err).Msg("Tracking tick failed")
			}
		}
	}
}

// persist must be called with the lock held.
func (t *Tracker) persist(ctx context.Context, state SessionState) error {
	if err := t.store.Sessions().Put(ctx, toRecord(state)); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func (t *Tracker) dayAt(now time.Time) Day {
	return DayOf(now.In(t.cfg.Location))
}

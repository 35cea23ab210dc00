package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/timekeeper/internal/storage"
	"github.com/goodtune/timekeeper/internal/storage/memory"
	"github.com/rs/zerolog"
)

var trackerBase = time.Date(2024, time.March, 9, 12, 0, 0, 0, time.UTC)

type trackerFixture struct {
	tracker       *Tracker
	store         *memory.Store
	clock         *TestClock
	notifications []Notification
}

func newTrackerFixture(t *testing.T, cfg Config) *trackerFixture {
	t.Helper()

	f := &trackerFixture{
		store: memory.New(),
		clock: NewTestClock(trackerBase),
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	notifier := NotifierFunc(func(n Notification) {
		f.notifications = append(f.notifications, n)
	})
	f.tracker = NewTracker(f.store, cfg, f.clock, notifier, zerolog.Nop())
	return f
}

func (f *trackerFixture) load(t *testing.T) {
	t.Helper()
	if err := f.tracker.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func (f *trackerFixture) seed(t *testing.T, record storage.SessionRecord) {
	t.Helper()
	if err := f.store.Sessions().Put(context.Background(), record); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func (f *trackerFixture) session(t *testing.T) storage.SessionRecord {
	t.Helper()
	record, err := f.store.Sessions().Get(context.Background())
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	return *record
}

// activeTick records activity, advances the clock by d and ticks.
func (f *trackerFixture) activeTick(t *testing.T, d time.Duration) {
	t.Helper()
	f.tracker.RecordActivity("test")
	f.clock.Advance(d)
	if err := f.tracker.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func TestTrackerFreshStart(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.load(t)

	snap := f.tracker.Snapshot()
	if snap.Usage != 0 {
		t.Errorf("Usage = %v, want 0", snap.Usage)
	}
	if snap.Goal != 2*time.Hour {
		t.Errorf("Goal = %v, want the 2h default", snap.Goal)
	}
	if snap.Day != DayOf(trackerBase) {
		t.Errorf("Day = %v, want %v", snap.Day, DayOf(trackerBase))
	}

	want := storage.SessionRecord{DailyUsageMillis: 0, DailyGoalMillis: 7200000, LastUpdatedDate: "2024/03/09"}
	if got := f.session(t); got != want {
		t.Errorf("persisted %+v, want %+v", got, want)
	}
}

func TestTrackerClampOnLoad(t *testing.T) {
	f := newTrackerFixture(t, Config{ClampOnLoad: true})
	f.load(t)

	if got := f.tracker.Snapshot().Goal; got != 90*time.Minute {
		t.Errorf("Goal = %v, want 90m", got)
	}
}

func TestTrackerSetGoal(t *testing.T) {
	tests := []struct {
		name      string
		hours     int
		minutes   int
		effective time.Duration
		reason    ClampReason
	}{
		{"120 minutes is clamped to maximum", 2, 0, 90 * time.Minute, ReasonExceedsMax},
		{"10 minutes is clamped to minimum", 0, 10, 50 * time.Minute, ReasonBelowMinimum},
		{"in range is kept", 1, 15, 75 * time.Minute, ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTrackerFixture(t, Config{})
			f.load(t)

			decision, err := f.tracker.SetGoal(context.Background(), tt.hours, tt.minutes)
			if err != nil {
				t.Fatalf("set goal: %v", err)
			}
			if decision.Effective != tt.effective || decision.Reason != tt.reason {
				t.Errorf("decision = %+v, want %v (%q)", decision, tt.effective, tt.reason)
			}
			if got := f.tracker.Snapshot().Goal; got != tt.effective {
				t.Errorf("Snapshot goal = %v, want %v", got, tt.effective)
			}
			if got := f.session(t).DailyGoalMillis; got != tt.effective.Milliseconds() {
				t.Errorf("persisted goal = %d, want %d", got, tt.effective.Milliseconds())
			}
		})
	}
}

func TestTrackerSetGoalValidation(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.load(t)
	before := f.session(t)

	_, err := f.tracker.SetGoal(context.Background(), 24, 0)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := f.session(t); got != before {
		t.Errorf("state changed on invalid input: %+v", got)
	}
	if got := f.tracker.Snapshot().Goal; got != DefaultGoal {
		t.Errorf("goal changed on invalid input: %v", got)
	}
}

func TestTrackerRolloverOnLoad(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.seed(t, storage.SessionRecord{DailyUsageMillis: 3600000, DailyGoalMillis: 3000000, LastUpdatedDate: "2024/03/08"})
	f.load(t)

	snap := f.tracker.Snapshot()
	if snap.Usage != 0 || snap.Day != DayOf(trackerBase) {
		t.Errorf("unexpected snapshot after rollover: %+v", snap)
	}
	if snap.Goal != 50*time.Minute {
		t.Errorf("expected persisted goal to survive rollover, got %v", snap.Goal)
	}

	v, err := f.store.History().Get(context.Background(), "2024/03/08")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if v != 3600000 {
		t.Errorf("history = %d, want 3600000", v)
	}
	if got := f.session(t); got.LastUpdatedDate != "2024/03/09" || got.DailyUsageMillis != 0 {
		t.Errorf("unexpected persisted session: %+v", got)
	}
}

func TestTrackerLoadSameDayKeepsUsage(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.seed(t, storage.SessionRecord{DailyUsageMillis: 1234, DailyGoalMillis: 0, LastUpdatedDate: "2024/03/09"})
	f.load(t)

	snap := f.tracker.Snapshot()
	if snap.Usage != 1234*time.Millisecond {
		t.Errorf("Usage = %v, want 1.234s", snap.Usage)
	}
	if snap.Goal != DefaultGoal {
		t.Errorf("zero persisted goal should fall back to default, got %v", snap.Goal)
	}
}

func TestTrackerCorruptStateFallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{"},
		{"bad date", `{"dailyUsageMillis":5,"dailyGoalMillis":3000000,"lastUpdatedDate":"yesterday"}`},
		{"negative usage", `{"dailyUsageMillis":-5,"dailyGoalMillis":3000000,"lastUpdatedDate":"2024/03/09"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTrackerFixture(t, Config{})
			f.store.SetRaw(storage.KeySessionState, []byte(tt.raw))
			f.load(t)

			snap := f.tracker.Snapshot()
			if snap.Usage != 0 || snap.Goal != DefaultGoal {
				t.Errorf("expected defaults, got %+v", snap)
			}
			if got := f.session(t); got.LastUpdatedDate != "2024/03/09" {
				t.Errorf("expected state to be rewritten, got %+v", got)
			}
		})
	}
}

func TestTrackerTickAccumulates(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.load(t)

	for i := 0; i < 10; i++ {
		f.activeTick(t, time.Second)
	}
	if got := f.tracker.Snapshot().Usage; got != 10*time.Second {
		t.Errorf("Usage = %v, want 10s", got)
	}
	if got := f.session(t).DailyUsageMillis; got != 10000 {
		t.Errorf("persisted usage = %d, want 10000", got)
	}

	// No activity after 9s: only the ticks at 11s, 12s and 13s fall inside the idle threshold.
	for i := 0; i < 10; i++ {
		f.clock.Advance(time.Second)
		if err := f.tracker.Tick(context.Background()); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	if got := f.tracker.Snapshot().Usage; got != 13*time.Second {
		t.Errorf("Usage = %v, want 13s", got)
	}
}

func TestTrackerLegacyMode(t *testing.T) {
	f := newTrackerFixture(t, Config{Mode: ModeLegacy})
	f.load(t)

	f.activeTick(t, 1500*time.Millisecond)
	f.activeTick(t, 4999*time.Millisecond)
	f.activeTick(t, 5*time.Second)

	if got := f.tracker.Snapshot().Usage; got != 6499*time.Millisecond {
		t.Errorf("Usage = %v, want 6.499s", got)
	}
}

func TestTrackerLegacyModeGoesIdle(t *testing.T) {
	f := newTrackerFixture(t, Config{Mode: ModeLegacy})
	f.load(t)

	f.activeTick(t, time.Second)
	if !f.tracker.Snapshot().Active {
		t.Fatal("expected active right after an activity signal")
	}

	// Legacy ticks keep crediting short gaps, but without signals the user is idle.
	for i := 0; i < 6; i++ {
		f.clock.Advance(time.Second)
		if err := f.tracker.Tick(context.Background()); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	if f.tracker.Snapshot().Active {
		t.Error("expected idle after 6s without activity signals")
	}
}

func TestTrackerFailedTickKeepsWindow(t *testing.T) {
	f := newTrackerFixture(t, Config{Mode: ModeLegacy})
	f.load(t)

	f.tracker.RecordActivity("test")
	f.clock.Advance(time.Second)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.tracker.Tick(cancelled); err == nil {
		t.Fatal("expected tick to fail when the session cannot be persisted")
	}
	if got := f.tracker.Snapshot().Usage; got != 0 {
		t.Fatalf("Usage after failed tick = %v, want 0", got)
	}

	f.clock.Advance(time.Second)
	if err := f.tracker.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := f.tracker.Snapshot().Usage; got != 2*time.Second {
		t.Errorf("Usage = %v, want 2s including the failed tick's interval", got)
	}
}

func TestTrackerNotifiesOnceAtGoal(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.seed(t, storage.SessionRecord{
		DailyUsageMillis: (50*time.Minute - time.Second).Milliseconds(),
		DailyGoalMillis:  (50 * time.Minute).Milliseconds(),
		LastUpdatedDate:  "2024/03/09",
	})
	f.load(t)

	f.activeTick(t, time.Second)
	if len(f.notifications) != 1 {
		t.Fatalf("expected 1 notification at the goal, got %d", len(f.notifications))
	}
	n := f.notifications[0]
	if n.Message != "Today's usage has exceeded the goal of 00:50:00!" {
		t.Errorf("unexpected message: %q", n.Message)
	}
	if n.Usage != 50*time.Minute {
		t.Errorf("notification usage = %v, want exactly 50m", n.Usage)
	}

	for i := 0; i < 30; i++ {
		f.activeTick(t, time.Second)
	}
	if len(f.notifications) != 1 {
		t.Errorf("notification re-emitted: got %d", len(f.notifications))
	}

	snap := f.tracker.Snapshot()
	if !snap.Exceeded || snap.Remaining != 0 || snap.Notification == nil {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	// Changing the goal clears the notification.
	if _, err := f.tracker.SetGoal(context.Background(), 0, 50); err != nil {
		t.Fatalf("set goal: %v", err)
	}
	f.activeTick(t, time.Second)
	if len(f.notifications) != 2 {
		t.Errorf("expected a new notification after goal change, got %d", len(f.notifications))
	}
}

func TestTrackerTickRollsOverBeforeAccumulating(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.clock.Set(time.Date(2024, time.March, 9, 23, 59, 58, 0, time.UTC))
	f.load(t)

	f.activeTick(t, time.Second) // 23:59:59
	f.activeTick(t, time.Second) // 00:00:00 next day

	v, err := f.store.History().Get(context.Background(), "2024/03/09")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if v != 1000 {
		t.Errorf("yesterday = %d, want 1000", v)
	}

	snap := f.tracker.Snapshot()
	if snap.Day != (Day{2024, time.March, 10}) {
		t.Errorf("Day = %v, want 2024/03/10", snap.Day)
	}
	if snap.Usage != time.Second {
		t.Errorf("today's usage = %v, want 1s", snap.Usage)
	}
}

func TestTrackerCheckRolloverIdempotent(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.load(t)
	f.activeTick(t, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rolled, err := f.tracker.CheckRollover(ctx, TriggerPeriodic)
		if err != nil || rolled {
			t.Fatalf("check %d: rolled=%v err=%v", i, rolled, err)
		}
	}
	if all, _ := f.store.History().GetAll(ctx); len(all) != 0 {
		t.Fatalf("expected no history, got %v", all)
	}

	f.clock.Advance(24 * time.Hour)
	rolled, err := f.tracker.CheckRollover(ctx, TriggerPeriodic)
	if err != nil || !rolled {
		t.Fatalf("expected rollover, got rolled=%v err=%v", rolled, err)
	}
	rolled, err = f.tracker.CheckRollover(ctx, TriggerPeriodic)
	if err != nil || rolled {
		t.Fatalf("expected second check to be a no-op, got rolled=%v err=%v", rolled, err)
	}

	all, err := f.store.History().GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 || all["2024/03/09"] != 1000 {
		t.Errorf("unexpected history: %v", all)
	}
}

func TestTrackerShutdownWritesToday(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.load(t)
	for i := 0; i < 3; i++ {
		f.activeTick(t, time.Second)
	}

	if err := f.tracker.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	v, err := f.store.History().Get(context.Background(), "2024/03/09")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if v != 3000 {
		t.Errorf("history = %d, want 3000", v)
	}
	if got := f.session(t); got.DailyUsageMillis != 3000 || got.LastUpdatedDate != "2024/03/09" {
		t.Errorf("unexpected session: %+v", got)
	}

	// Restarting the same day resumes from the saved total.
	restarted := NewTracker(f.store, Config{Location: time.UTC}, f.clock, nil, zerolog.Nop())
	if err := restarted.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := restarted.Snapshot().Usage; got != 3*time.Second {
		t.Errorf("Usage after restart = %v, want 3s", got)
	}
}

func TestTrackerShutdownAfterMidnight(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.load(t)
	f.activeTick(t, time.Second)
	f.clock.Set(time.Date(2024, time.March, 10, 0, 5, 0, 0, time.UTC))

	if err := f.tracker.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	all, err := f.store.History().GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all["2024/03/09"] != 1000 {
		t.Errorf("yesterday = %d, want 1000", all["2024/03/09"])
	}
	if v, ok := all["2024/03/10"]; !ok || v != 0 {
		t.Errorf("today = %d (present %v), want 0", v, ok)
	}
}

func TestTrackerHistory(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	ctx := context.Background()
	for day, ms := range map[string]int64{
		"2024/03/01": (30 * time.Minute).Milliseconds(),
		"2024/03/07": (2 * time.Hour).Milliseconds(),
		"2024/02/28": (50 * time.Minute).Milliseconds(),
		"garbage":    1,
	} {
		if err := f.store.History().Put(ctx, day, ms); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	f.load(t)
	if _, err := f.tracker.SetGoal(ctx, 0, 50); err != nil {
		t.Fatalf("set goal: %v", err)
	}

	entries, err := f.tracker.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	want := []HistoryEntry{
		{Day: Day{2024, time.March, 7}, Usage: 2 * time.Hour, Exceeded: true},
		{Day: Day{2024, time.March, 1}, Usage: 30 * time.Minute, Exceeded: false},
		{Day: Day{2024, time.February, 28}, Usage: 50 * time.Minute, Exceeded: true},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}

	entry, err := f.tracker.HistoryFor(ctx, Day{2024, time.March, 1})
	if err != nil || entry != want[1] {
		t.Errorf("HistoryFor = %+v, %v", entry, err)
	}
	if _, err := f.tracker.HistoryFor(ctx, Day{2023, time.January, 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTrackerCorruptHistoryIsEmpty(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.store.SetRaw(storage.KeyUsageHistory, []byte("not json"))
	f.load(t)

	entries, err := f.tracker.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %+v", entries)
	}
}

func TestTrackerCorruptHistoryDayIsNotFound(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	f.store.SetRaw(storage.KeyUsageHistory, []byte("not json"))
	f.load(t)

	_, err := f.tracker.HistoryFor(context.Background(), Day{Year: 2024, Month: time.March, Day: 8})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTrackerRequiresLoad(t *testing.T) {
	f := newTrackerFixture(t, Config{})
	ctx := context.Background()

	if err := f.tracker.Tick(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Tick: expected ErrNotLoaded, got %v", err)
	}
	if _, err := f.tracker.CheckRollover(ctx, TriggerPeriodic); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("CheckRollover: expected ErrNotLoaded, got %v", err)
	}
	if _, err := f.tracker.SetGoal(ctx, 1, 0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("SetGoal: expected ErrNotLoaded, got %v", err)
	}
	if err := f.tracker.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown before load: %v", err)
	}
}

func TestTrackerStartReplacesLoop(t *testing.T) {
	f := newTrackerFixture(t, Config{TickInterval: time.Millisecond})
	ctx := context.Background()

	if err := f.tracker.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	first := f.tracker.done
	if err := f.tracker.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}

	select {
	case <-first:
	default:
		t.Error("expected the first loop to have exited")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := f.tracker.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := f.tracker.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

package usage

import (
	"testing"
	"time"
)

func TestGoalWatchEmitsOnce(t *testing.T) {
	w := goalWatch{}
	day := Day{2024, time.March, 9}
	now := accBase

	if n := w.observe(now, day, 59*time.Minute, time.Hour); n != nil {
		t.Fatalf("unexpected notification below goal: %+v", n)
	}

	n := w.observe(now, day, time.Hour, time.Hour)
	if n == nil {
		t.Fatal("expected a notification when usage reaches the goal")
	}
	if n.Message != "Today's usage has exceeded the goal of 01:00:00!" {
		t.Errorf("unexpected message: %q", n.Message)
	}

	for i := 1; i <= 100; i++ {
		if again := w.observe(now.Add(time.Duration(i)*time.Second), day, time.Hour+time.Duration(i)*time.Second, time.Hour); again != nil {
			t.Fatalf("notification re-emitted on tick %d", i)
		}
	}

	w.reset()
	if n := w.observe(now, day, time.Hour, time.Hour); n == nil {
		t.Error("expected a notification after reset")
	}
}

func TestGoalWatchTTL(t *testing.T) {
	w := goalWatch{ttl: 5 * time.Second}
	day := Day{2024, time.March, 9}

	if n := w.observe(accBase, day, time.Hour, time.Hour); n == nil {
		t.Fatal("expected first notification")
	}
	if p := w.present(accBase.Add(4 * time.Second)); p == nil {
		t.Error("expected notification to be present before ttl")
	}
	if n := w.observe(accBase.Add(4*time.Second), day, time.Hour, time.Hour); n != nil {
		t.Error("expected no notification while present")
	}
	if p := w.present(accBase.Add(5 * time.Second)); p != nil {
		t.Error("expected notification to expire at ttl")
	}
	if n := w.observe(accBase.Add(5*time.Second), day, time.Hour, time.Hour); n == nil {
		t.Error("expected a new notification after expiry")
	}
}

func TestGoalWatchIgnoresZeroGoal(t *testing.T) {
	w := goalWatch{}
	if n := w.observe(accBase, Day{2024, time.March, 9}, time.Hour, 0); n != nil {
		t.Errorf("unexpected notification for zero goal: %+v", n)
	}
}

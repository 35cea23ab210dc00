package usage

import (
	"fmt"
	"time"
)

// Notification is emitted when today's usage reaches the goal.
type Notification struct {
	Message string        `json:"message"`
	Day     Day           `json:"day"`
	Usage   time.Duration `json:"usage"`
	Goal    time.Duration `json:"goal"`
	At      time.Time     `json:"at"`
}

// Notifier receives goal notifications. Notify is called with the tracker
// lock held and must not call back into the Tracker.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// GoalExceededMessage is the text of the goal notification.
func GoalExceededMessage(goal time.Duration) string {
	return fmt.Sprintf("Today's usage has exceeded the goal of %s!", FormatDuration(goal))
}

// goalWatch holds the notification that is currently present.
// A zero ttl keeps it until reset.
type goalWatch struct {
	ttl     time.Duration
	current *Notification
}

// observe returns a notification to emit, or nil when none is due.
func (w *goalWatch) observe(now time.Time, day Day, usage, goal time.Duration) *Notification {
	if w.active(now) {
		return nil
	}
	if goal <= 0 || usage < goal {
		return nil
	}

	n := &Notification{
		Message: GoalExceededMessage(goal),
		Day:     day,
		Usage:   usage,
		Goal:    goal,
		At:      now,
	}
	w.current = n
	return n
}

// active reports whether a notification is present at now.
func (w *goalWatch) active(now time.Time) bool {
	if w.current == nil {
		return false
	}
	if w.ttl > 0 && !now.Before(w.current.At.Add(w.ttl)) {
		w.current = nil
		return false
	}
	return true
}

// present returns a copy of the present notification, if any.
func (w *goalWatch) present(now time.Time) *Notification {
	if !w.active(now) {
		return nil
	}
	n := *w.current
	return &n
}

func (w *goalWatch) reset() {
	w.current = nil
}

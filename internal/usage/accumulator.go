package usage

import (
	"fmt"
	"time"
)

const (
	// DefaultTickInterval is the period of the tracking tick.
	DefaultTickInterval = time.Second

	// DefaultIdleThreshold is the longest gap since the last activity signal
	// for which elapsed time still counts as active.
	DefaultIdleThreshold = 5 * time.Second
)

// Mode selects how a tick converts elapsed time into active time.
type Mode string

const (
	// ModeBounded credits at most one tick interval per tick, measured from the
	// previous tick, when an activity signal arrived within the idle threshold.
	ModeBounded Mode = "bounded"

	// ModeLegacy credits the whole gap since the later of the last activity
	// signal and the last tick, provided that gap is under the idle threshold.
	// Both timestamps move to now on every tick.
	ModeLegacy Mode = "legacy"
)

// ParseMode parses an accumulation mode name. The empty string selects ModeBounded.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeBounded:
		return ModeBounded, nil
	case ModeLegacy:
		return ModeLegacy, nil
	default:
		return "", fmt.Errorf("unknown accumulation mode %q", s)
	}
}

// ActivityWindow is the in-memory record of recent activity. It is never persisted.
type ActivityWindow struct {
	LastActivity time.Time
	LastTick     time.Time
}

// NewActivityWindow returns a window with both timestamps at now.
func NewActivityWindow(now time.Time) ActivityWindow {
	return ActivityWindow{LastActivity: now, LastTick: now}
}

// Accumulator converts ticks into accumulated active time.
type Accumulator struct {
	IdleThreshold time.Duration
	TickInterval  time.Duration
	Mode          Mode
}

// Accumulate applies one tick at now and returns the new accumulated total
// and the updated window. It has no side effects.
func (a Accumulator) Accumulate(now time.Time, window ActivityWindow, prev time.Duration) (time.Duration, ActivityWindow) {
	switch a.Mode {
	case ModeLegacy:
		reference := window.LastActivity
		if window.LastTick.After(reference) {
			reference = window.LastTick
		}
		if gap := now.Sub(reference); gap > 0 && gap < a.IdleThreshold {
			prev += gap
		}
		return prev, ActivityWindow{LastActivity: now, LastTick: now}

	default:
		sinceActivity := now.Sub(window.LastActivity)
		sinceTick := now.Sub(window.LastTick)
		if sinceActivity >= 0 && sinceActivity < a.IdleThreshold && sinceTick > 0 {
			credit := sinceTick
			if a.TickInterval > 0 && credit > a.TickInterval {
				credit = a.TickInterval
			}
			prev += credit
		}
		window.LastTick = now
		return prev, window
	}
}

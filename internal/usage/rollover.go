package usage

import "time"

// Trigger names the event that ran a rollover check.
type Trigger string

const (
	TriggerLoad     Trigger = "load"
	TriggerTick     Trigger = "tick"
	TriggerPeriodic Trigger = "periodic"
	TriggerShutdown Trigger = "shutdown"
)

// SessionState is the running total for the current day.
// Accumulated resets to zero exactly when LastUpdated changes.
type SessionState struct {
	Accumulated time.Duration
	Goal        time.Duration
	LastUpdated Day
}

// HistoryRecord is the finalized usage of one day.
type HistoryRecord struct {
	Day   Day
	Usage time.Duration
}

// CheckRollover compares state against today. When the day has changed it
// returns the reset state and the record for the finished day. Running it
// again for the same today returns state unchanged and no record.
func CheckRollover(today Day, state SessionState) (SessionState, *HistoryRecord) {
	if state.LastUpdated.IsZero() {
		state.LastUpdated = today
		return state, nil
	}
	if state.LastUpdated == today {
		return state, nil
	}

	record := &HistoryRecord{Day: state.LastUpdated, Usage: state.Accumulated}
	state.Accumulated = 0
	state.LastUpdated = today
	return state, record
}

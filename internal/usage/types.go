package usage

import (
	"fmt"
	"time"

	"github.com/goodtune/timekeeper/internal/storage"
)

// Snapshot is the current tracking state as presented to a user.
type Snapshot struct {
	Day          Day
	Usage        time.Duration
	Goal         time.Duration
	Exceeded     bool
	Remaining    time.Duration
	Active       bool
	Notification *Notification
}

// HistoryEntry is one finalized day. Exceeded is judged against the current goal
// because per-day goals are not recorded.
type HistoryEntry struct {
	Day      Day
	Usage    time.Duration
	Exceeded bool
}

func toRecord(state SessionState) storage.SessionRecord {
	return storage.SessionRecord{
		DailyUsageMillis: state.Accumulated.Milliseconds(),
		DailyGoalMillis:  state.Goal.Milliseconds(),
		LastUpdatedDate:  state.LastUpdated.String(),
	}
}

// fromRecord validates a persisted record. Failures wrap storage.ErrCorrupt.
func fromRecord(record storage.SessionRecord) (SessionState, error) {
	if record.DailyUsageMillis < 0 {
		return SessionState{}, fmt.Errorf("%w: negative usage %d", storage.ErrCorrupt, record.DailyUsageMillis)
	}

	var day Day
	if record.LastUpdatedDate != "" {
		parsed, err := ParseDay(record.LastUpdatedDate)
		if err != nil {
			return SessionState{}, fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
		}
		day = parsed
	}

	return SessionState{
		Accumulated: time.Duration(record.DailyUsageMillis) * time.Millisecond,
		Goal:        time.Duration(record.DailyGoalMillis) * time.Millisecond,
		LastUpdated: day,
	}, nil
}

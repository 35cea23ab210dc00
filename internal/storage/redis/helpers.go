package redis

import (
	"fmt"
	"strconv"

	"github.com/goodtune/timekeeper/internal/storage"
	"github.com/rs/zerolog/log"
)

// parseMillis converts a hash field value to milliseconds
func parseMillis(day, value string) (int64, error) {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: history %s: %v", storage.ErrCorrupt, day, err)
	}
	return ms, nil
}

// parseHistory converts the history hash to a day -> milliseconds map.
// Fields that do not hold an integer are dropped.
func parseHistory(data map[string]string) map[string]int64 {
	history := make(map[string]int64, len(data))
	for day, value := range data {
		ms, err := parseMillis(day, value)
		if err != nil {
			log.Warn().Err(err).Str("component", "redis-storage").Str("day", day).Msg("Dropping unreadable history value")
			continue
		}
		history[day] = ms
	}
	return history
}

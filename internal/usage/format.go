package usage

import (
	"fmt"
	"time"
)

// FormatDuration renders d as HH:MM:SS, truncating to whole seconds.
// Hours are not capped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int64(d / time.Second)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// HoursMinutes converts an hours and minutes pair to a duration.
func HoursMinutes(hours, minutes int) time.Duration {
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
}

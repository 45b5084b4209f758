package utils

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
)

// ResetTime resets the time component based on the granularity specified.
// Pass "minute" to reset seconds, "hour" to reset minutes, "day" to reset to UTC midnight.
func ResetTime(t time.Time, granularity string) time.Time {
	switch granularity {
	case "minute":
		return t.Truncate(time.Minute)
	case "hour":
		return t.Truncate(time.Hour)
	case "day":
		u := t.UTC()
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	default:
		logger.WithField("granularity", granularity).Warn("Invalid granularity. Please use 'minute', 'hour' or 'day'.")
		return t
	}
}

// DayKey formats the UTC calendar day of t, e.g. "2025-03-04".
func DayKey(t time.Time) string {
	return ResetTime(t, "day").Format("2006-01-02")
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

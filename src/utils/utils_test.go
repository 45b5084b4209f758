package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetTime(t *testing.T) {
	at := time.Date(2025, time.March, 4, 13, 45, 31, 0, time.UTC)

	assert.Equal(t, time.Date(2025, time.March, 4, 13, 45, 0, 0, time.UTC), ResetTime(at, "minute"))
	assert.Equal(t, time.Date(2025, time.March, 4, 13, 0, 0, 0, time.UTC), ResetTime(at, "hour"))
	assert.Equal(t, time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC), ResetTime(at, "day"))
	assert.Equal(t, at, ResetTime(at, "week"))
}

func TestDayKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2025, time.March, 4, 22, 0, 0, 0, loc)

	assert.Equal(t, "2025-03-05", DayKey(at))
}

func TestNewEventIDIsMonotonic(t *testing.T) {
	at := time.Now()
	prev := NewEventID(at)
	for i := 0; i < 100; i++ {
		next := NewEventID(at)
		require.Len(t, next, 26)
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, SleepContext(ctx, time.Hour))
	assert.True(t, SleepContext(context.Background(), 0))
}

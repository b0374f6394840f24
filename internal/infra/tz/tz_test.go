package tz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	original := time.Date(2025, 3, 14, 9, 26, 53, 0, Zone)

	s := Format(original)
	require.Equal(t, "2025-03-14 09:26:53", s)

	parsed, err := Parse(s)
	require.NoError(t, err)
	require.True(t, parsed.Equal(original))
}

func TestFormatConvertsForeignZones(t *testing.T) {
	// 16:00 UTC is 00:00 next day in UTC+8.
	utc := time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)
	require.Equal(t, "2025-03-15 00:00:00", Format(utc))
}

func TestTodayStart(t *testing.T) {
	start := TodayStart()
	now := Now()

	require.Equal(t, 0, start.Hour())
	require.Equal(t, 0, start.Minute())
	require.Equal(t, 0, start.Second())
	require.Equal(t, now.Day(), start.Day())
	require.False(t, start.After(now))
}

func TestFromEpochMillis(t *testing.T) {
	// 2024-01-01 00:00:00 UTC = 2024-01-01 08:00:00 UTC+8
	ts := FromEpochMillis(1704067200000)
	require.Equal(t, "2024-01-01 08:00:00", Format(ts))
}

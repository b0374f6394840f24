package tz

// Civil time helpers pinned to UTC+8
// Every stored timestamp and schedule computation in the bot uses this zone,
// so records written on one host parse identically on another

import "time"

// Zone is the fixed UTC+8 offset used for all bot timestamps.
var Zone = time.FixedZone("UTC+8", 8*60*60)

// Layout is the storage format for civil timestamps.
const Layout = "2006-01-02 15:04:05"

// Now returns the current civil time in UTC+8.
func Now() time.Time {
	return time.Now().In(Zone)
}

// TodayStart returns 00:00:00 of the current civil day.
func TodayStart() time.Time {
	now := Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, Zone)
}

// Format renders t in the storage layout, converting to UTC+8 first.
func Format(t time.Time) string {
	return t.In(Zone).Format(Layout)
}

// FormatNow renders the current civil time in the storage layout.
func FormatNow() string {
	return Format(Now())
}

// Parse reads a stored timestamp back as a UTC+8 time.
func Parse(s string) (time.Time, error) {
	return time.ParseInLocation(Layout, s, Zone)
}

// FromEpochMillis converts an epoch-milliseconds value to UTC+8 time.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(Zone)
}

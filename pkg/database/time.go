package database

import (
	"database/sql"
	"time"
)

// Micros converts t to the integer column representation used for every timestamp.
func Micros(t time.Time) int64 {
	return t.UnixMicro()
}

// FromMicros converts a stored timestamp back to UTC.
func FromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

// NullMicros maps a nullable timestamp column to *time.Time.
func NullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := FromMicros(v.Int64)
	return &t
}

// Now returns the current time truncated to the precision the store keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

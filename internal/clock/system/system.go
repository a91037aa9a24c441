// Package system provides the wall clock used for metadata timestamps.
package system

import "time"

// Clock returns the current UTC time truncated to whole seconds, matching the
// precision written into metadata records.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Fixed is a clock frozen at a single instant.
type Fixed struct {
	At time.Time
}

// Now returns the frozen instant.
func (f Fixed) Now() time.Time {
	return f.At
}

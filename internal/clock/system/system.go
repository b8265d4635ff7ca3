// Package system provides the wall clock used for event and envelope timestamps.
package system

import "time"

// Clock implements canvas.Clock using time.Now in UTC.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// UnixMilli returns the current time as Unix milliseconds.
func (c Clock) UnixMilli() int64 {
	return c.Now().UnixMilli()
}

package tle

import "time"

// Entry represents a single object's two-line element set.
type Entry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// EpochRange represents the minimum and maximum epoch times in a catalog.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Catalog represents a complete set of TLE data loaded from one source.
type Catalog struct {
	Source     string
	LoadedAt   time.Time
	EpochRange EpochRange
	Entries    []Entry
}

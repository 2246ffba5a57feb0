// Package boardcheck exercises a running board server over HTTP and checks
// that every board it serves is consistently ranked.
package boardcheck

import "time"

// Config holds configuration for a check run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Workers    int           // Concurrent requests
	Timeout    time.Duration // HTTP request timeout
	TopN       int           // Entries per board cross-checked against the team endpoint
	Refreshes  int           // Refresh requests fired at the overall board
	OutputFile string        // Where fetched boards are saved; empty skips saving
	Verbose    bool          // Log every board
}

// Stats holds run statistics.
type Stats struct {
	BoardsChecked     int
	EntriesChecked    int
	RefreshesAccepted int
	RefreshDuplicates int
	RefreshesRejected int
	RefreshesFailed   int
	LiveMismatches    int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}

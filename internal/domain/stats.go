package domain

// SyncStats is accumulated once per sync run and returned to the caller.
type SyncStats struct {
	RunID      string `json:"run_id"`
	Processed  int    `json:"processed"`
	Inserted   int    `json:"inserted"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Errors     int    `json:"errors"`
	Duplicates int    `json:"duplicates"`
	DryRunOnly bool   `json:"dry_run_only"`
	DurationMs int64  `json:"duration_ms"`

	// Dry-run decision tallies; zero on applied runs.
	WouldInsert int `json:"would_insert,omitempty"`
	WouldUpdate int `json:"would_update,omitempty"`
}

package domain

import "time"

// IngestStats holds statistics about an ingestion run.
type IngestStats struct {
	SourceID string
	Listed   int
	New      int
	Skipped  int
	Errors   int
	Titles   []string
	Duration time.Duration
}

// PublishStats holds statistics about a publish run.
type PublishStats struct {
	Claimed   int
	Published int
	Failed    int
	Duration  time.Duration
}

type SyncState struct {
	ID             int64     `db:"id"`
	SourceID       string    `db:"source_id"`
	LastSyncedAt   time.Time `db:"last_synced_at"`
	LastExternalID string    `db:"last_external_id"`
	TotalSynced    int64     `db:"total_synced"`
}

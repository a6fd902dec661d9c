package models

import "time"

// SyncTask represents a queued synchronization job.
type SyncTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	DedupeKey   *string    `json:"dedupe_key"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// Recurring reports whether the task is a standing schedule row that must be
// re-armed after each run instead of completed.
func (t *SyncTask) Recurring() bool {
	return t.DedupeKey != nil && *t.DedupeKey == RecurringSyncAllKey
}

// TaskPayload is the typed payload carried by every job kind. Unused fields
// stay empty; sync-all-hosts carries none at all.
type TaskPayload struct {
	HostID    string `json:"host_id,omitempty"`
	VendorID  string `json:"vendor_id,omitempty"`
	ListingID int64  `json:"listing_id,omitempty"`
}

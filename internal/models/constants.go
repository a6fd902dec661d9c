package models

import "time"

// Sync job kinds recognized by the worker.
const (
	TaskSyncListings      = "sync-listings"
	TaskSyncSingleListing = "sync-single-listing"
	TaskSyncCalendar      = "sync-calendar"
	TaskSyncAllHosts      = "sync-all-hosts"
)

// Queue row statuses.
const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// RecurringSyncAllKey is the fixed identity of the standing sync-all-hosts
// schedule. Repeated startups reuse the same row instead of creating a second
// schedule.
const RecurringSyncAllKey = "recurring:sync-all-hosts"

const (
	// TokenExpiryBuffer is subtracted from a token's expiry before deciding
	// whether it is still usable, so a token never expires mid-request.
	TokenExpiryBuffer = 5 * time.Minute

	// RecurringSyncInterval is the cadence of the standing full sync.
	RecurringSyncInterval = 6 * time.Hour

	// CalendarWindowMonths is how far forward the calendar sync looks.
	CalendarWindowMonths = 6

	// DefaultPageLimit is the page size requested from the vendor listing
	// collection.
	DefaultPageLimit = 50

	// DefaultMaxPages caps a single listing sync run; a vendor that keeps
	// returning full pages past this bound is treated as broken.
	DefaultMaxPages = 200

	// WorkerQueueSize is the in-memory fallback queue capacity.
	WorkerQueueSize = 128

	// DefaultRedisTTL is the lifetime of cached vendor responses in seconds.
	DefaultRedisTTL = 10 * 60
)

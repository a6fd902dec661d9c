package domain

import (
	"context"
	"time"

	"staysync/internal/models"
	"staysync/internal/vendor"
)

// CredentialStore is the durable per-host credential record.
type CredentialStore interface {
	GetHost(ctx context.Context, id string) (*models.Host, error)
	GetHostByVendorAccount(ctx context.Context, vendorAccountID string) (*models.Host, error)
	GetLinkedHosts(ctx context.Context) ([]models.Host, error)
	UpdateHostTokens(ctx context.Context, hostID, accessToken, refreshToken, tokenType, scope string, expiresAt time.Time) error
}

// EntityRepository is the durable store of listings and calendar days,
// addressed by upsert keys.
type EntityRepository interface {
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	GetListingByVendorID(ctx context.Context, vendorID string) (*models.Listing, error)
	ListListingsByHost(ctx context.Context, hostID string) ([]models.Listing, error)
	UpsertListing(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	UpsertCalendarDay(ctx context.Context, day *models.CalendarDay) (*models.CalendarDay, error)
	GetCalendarRange(ctx context.Context, listingID int64, start, end time.Time) ([]models.CalendarDay, error)
}

// TokenSource yields a currently-valid vendor access token for a host,
// refreshing transparently when needed.
type TokenSource interface {
	ValidAccessToken(ctx context.Context, hostID string) (string, error)
}

// VendorAPI is the paginated, rate-limited remote platform.
type VendorAPI interface {
	ListListings(ctx context.Context, token string, page, limit int) (*vendor.ListingPage, error)
	GetListing(ctx context.Context, token, vendorID string) (vendor.RawListing, error)
	GetCalendar(ctx context.Context, token, vendorID string, start, end time.Time) ([]vendor.RawDay, error)
}

// ListingSyncer reconciles vendor listings into the local store.
type ListingSyncer interface {
	SyncAll(ctx context.Context, hostID string) ([]models.Listing, error)
	SyncOne(ctx context.Context, hostID, vendorID string) (*models.Listing, error)
}

// CalendarSyncer reconciles a forward availability window for one listing.
type CalendarSyncer interface {
	Sync(ctx context.Context, listingID int64) ([]models.CalendarDay, error)
}

// SyncWorker accepts typed jobs for asynchronous execution.
type SyncWorker interface {
	Enqueue(ctx context.Context, taskType string, payload models.TaskPayload) error
}

// SyncStateRepository tracks sync bookkeeping that tolerates loss: last
// successful run per host and webhook burst counters.
type SyncStateRepository interface {
	GetLastSync(ctx context.Context, hostID string) (*time.Time, error)
	SetLastSync(ctx context.Context, hostID string, at time.Time) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

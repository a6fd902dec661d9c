package events

import (
	"context"
	"time"

	"staysync/internal/domain"
	"staysync/internal/metrics"
	"staysync/internal/models"

	"github.com/rs/zerolog"
)

// Vendor webhook event kinds the router understands.
const (
	EventListingChanged     = "listing-changed"
	EventReservationChanged = "reservation-changed"
)

// VendorEvent is a normalized inbound webhook notification.
type VendorEvent struct {
	Type            string `json:"type"`
	VendorAccountID string `json:"vendor_account_id"`
	VendorListingID string `json:"vendor_listing_id"`
}

// HostResolver resolves webhook identifiers to local records.
type HostResolver interface {
	GetHostByVendorAccount(ctx context.Context, vendorAccountID string) (*models.Host, error)
	GetListingByVendorID(ctx context.Context, vendorID string) (*models.Listing, error)
}

// Router maps inbound vendor events to sync job enqueues.
//
// HandleEvent is a never-propagate boundary: every failure is logged and
// swallowed so the HTTP layer always acknowledges the vendor. A transient
// internal fault must not turn into a vendor retry storm. Do not copy this
// pattern into the synchronizers; their errors drive the worker's retries.
type Router struct {
	resolver   HostResolver
	worker     domain.SyncWorker
	state      domain.SyncStateRepository
	burstLimit int
	burstWin   time.Duration
	logger     *zerolog.Logger
}

func NewRouter(resolver HostResolver, worker domain.SyncWorker, state domain.SyncStateRepository, logger *zerolog.Logger) *Router {
	return &Router{
		resolver:   resolver,
		worker:     worker,
		state:      state,
		burstLimit: 60,
		burstWin:   time.Minute,
		logger:     logger,
	}
}

// HandleEvent translates one vendor event into a job enqueue. It never
// returns an error; malformed or unresolvable events are dropped.
func (r *Router) HandleEvent(ctx context.Context, ev VendorEvent) {
	if ev.VendorAccountID == "" {
		r.drop(ev, "missing vendor account id", nil)
		return
	}

	if !r.allowBurst(ctx, ev.VendorAccountID) {
		r.drop(ev, "webhook burst limit", nil)
		return
	}

	host, err := r.resolver.GetHostByVendorAccount(ctx, ev.VendorAccountID)
	if err != nil {
		r.drop(ev, "unresolvable vendor account", err)
		return
	}

	switch ev.Type {
	case EventListingChanged:
		if ev.VendorListingID == "" {
			r.drop(ev, "missing vendor listing id", nil)
			return
		}
		err := r.worker.Enqueue(ctx, models.TaskSyncSingleListing, models.TaskPayload{
			HostID:   host.ID,
			VendorID: ev.VendorListingID,
		})
		if err != nil {
			r.drop(ev, "enqueue failed", err)
			return
		}

	case EventReservationChanged:
		if ev.VendorListingID == "" {
			r.drop(ev, "missing vendor listing id", nil)
			return
		}
		listing, err := r.resolver.GetListingByVendorID(ctx, ev.VendorListingID)
		if err != nil {
			r.drop(ev, "unknown listing", err)
			return
		}
		err = r.worker.Enqueue(ctx, models.TaskSyncCalendar, models.TaskPayload{
			ListingID: listing.ID,
		})
		if err != nil {
			r.drop(ev, "enqueue failed", err)
			return
		}

	default:
		r.drop(ev, "unknown event type", nil)
		return
	}

	metrics.IncWebhook(ev.Type, "enqueued")
	r.logger.Debug().
		Str("event", ev.Type).
		Str("vendor_account_id", ev.VendorAccountID).
		Str("vendor_listing_id", ev.VendorListingID).
		Msg("webhook event routed")
}

func (r *Router) allowBurst(ctx context.Context, accountID string) bool {
	if r.state == nil {
		return true
	}
	allowed, err := r.state.CheckRateLimit(ctx, "webhook:"+accountID, r.burstLimit, r.burstWin)
	if err != nil {
		// Rate limiting is advisory; a broken counter must not drop events.
		return true
	}
	return allowed
}

func (r *Router) drop(ev VendorEvent, reason string, cause error) {
	metrics.IncWebhook(ev.Type, "dropped")
	evt := r.logger.Warn().
		Str("event", ev.Type).
		Str("vendor_account_id", ev.VendorAccountID).
		Str("reason", reason)
	if cause != nil {
		evt = evt.Err(cause)
	}
	evt.Msg("webhook event dropped")
}

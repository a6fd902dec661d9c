package sync

import (
	"context"
	"time"

	"staysync/internal/database"
	"staysync/internal/domain"
	"staysync/internal/models"
	"staysync/internal/vendor"

	"github.com/rs/zerolog"
)

// clock hook for window tests
var timeNow = time.Now

// Calendar reconciles a rolling forward window of vendor availability and
// pricing into per-day records for one listing.
type Calendar struct {
	repo   domain.EntityRepository
	tokens domain.TokenSource
	api    domain.VendorAPI
	logger *zerolog.Logger
}

func NewCalendar(repo domain.EntityRepository, tokens domain.TokenSource, api domain.VendorAPI, logger *zerolog.Logger) *Calendar {
	return &Calendar{repo: repo, tokens: tokens, api: api, logger: logger}
}

// Sync fetches the window from the current UTC day to six calendar months
// out and upserts each returned day keyed by (listing, date). Past dates are
// left untouched. Returns the upserted days in vendor response order.
func (s *Calendar) Sync(ctx context.Context, listingID int64) ([]models.CalendarDay, error) {
	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.VendorID == "" {
		return nil, database.ErrNotLinked
	}

	accessToken, err := s.tokens.ValidAccessToken(ctx, listing.HostID)
	if err != nil {
		return nil, err
	}

	start := models.DateOnly(timeNow())
	end := start.AddDate(0, models.CalendarWindowMonths, 0)

	// The local store must converge on the vendor's current snapshot, so
	// the fetch always bypasses the read-through cache.
	rawDays, err := s.api.GetCalendar(vendor.SkipCache(ctx), accessToken, listing.VendorID, start, end)
	if err != nil {
		return nil, err
	}

	var synced []models.CalendarDay
	skipped := 0

	for _, raw := range rawDays {
		date, ok := raw.Date(dayDateKeys...)
		if !ok {
			skipped++
			continue
		}

		day := &models.CalendarDay{
			ListingID: listingID,
			Date:      models.DateOnly(date),
		}

		// Fail open on availability: hiding inventory because of a
		// partial vendor response is worse than a double booking the
		// vendor will reject anyway.
		if avail, ok := raw.Bool(dayAvailableKeys...); ok {
			day.Available = avail
		} else {
			day.Available = true
		}

		if price, ok := raw.Decimal(dayPriceKeys...); ok {
			day.Price = price
		} else {
			day.Price = listing.BasePrice
		}

		if minStay, ok := raw.Int(dayMinStayKeys...); ok && minStay > 0 {
			day.MinStay = minStay
		} else {
			day.MinStay = 1
		}

		stored, err := s.repo.UpsertCalendarDay(ctx, day)
		if err != nil {
			return nil, err
		}
		synced = append(synced, *stored)
	}

	s.logger.Info().
		Int64("listing_id", listingID).
		Str("vendor_id", listing.VendorID).
		Int("synced", len(synced)).
		Int("skipped", skipped).
		Msg("calendar sync completed")
	return synced, nil
}

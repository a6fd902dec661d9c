package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalendarDay holds availability and pricing for one listing on one date.
// The upsert key is the (listing, date) composite; Date is date-only, UTC.
type CalendarDay struct {
	ID        int64           `json:"id"`
	ListingID int64           `json:"listing_id"`
	Date      time.Time       `json:"date"`
	Available bool            `json:"available"`
	Price     decimal.Decimal `json:"price"`
	MinStay   int             `json:"min_stay"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DateOnly normalizes t to a UTC day boundary, the comparison key for
// calendar upserts.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

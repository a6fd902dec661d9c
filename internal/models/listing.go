package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing mirrors one vendor listing in the local store. VendorID is the
// upsert key: unique, non-empty, immutable once set. Listings are updated in
// place on every sync and never deleted, even when the vendor stops reporting
// them (stale-but-present beats data loss from one failed page).
type Listing struct {
	ID           int64           `json:"id"`
	VendorID     string          `json:"vendor_id"`
	HostID       string          `json:"host_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	PropertyType string          `json:"property_type"`
	Bedrooms     int             `json:"bedrooms"`
	Bathrooms    int             `json:"bathrooms"`
	Beds         int             `json:"beds"`
	MaxGuests    int             `json:"max_guests"`
	Street       string          `json:"street"`
	City         string          `json:"city"`
	State        string          `json:"state"`
	Country      string          `json:"country"`
	Zip          string          `json:"zip"`
	Lat          float64         `json:"lat"`
	Lng          float64         `json:"lng"`
	Photos       []string        `json:"photos"`
	Amenities    []string        `json:"amenities"`
	BasePrice    decimal.Decimal `json:"base_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

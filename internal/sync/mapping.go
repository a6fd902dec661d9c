package sync

import (
	"staysync/internal/models"
	"staysync/internal/vendor"

	"github.com/shopspring/decimal"
)

// Candidate key orderings for vendor payload fields. The vendor has shipped
// several generations of field names; the first present candidate wins.
// Documented here once instead of inline at every call site.
var (
	listingIDKeys    = []string{"id", "listingId", "listing_id"}
	titleKeys        = []string{"name", "title", "listingName", "internalListingName"}
	descriptionKeys  = []string{"description", "summary", "airbnbSummary"}
	propertyTypeKeys = []string{"propertyType", "propertyTypeName", "type"}
	bedroomsKeys     = []string{"bedroomsNumber", "bedrooms"}
	bathroomsKeys    = []string{"bathroomsNumber", "bathrooms"}
	bedsKeys         = []string{"bedsNumber", "beds"}
	maxGuestsKeys    = []string{"personCapacity", "maxGuests", "guestsIncluded"}
	streetKeys       = []string{"street", "address", "publicAddress"}
	cityKeys         = []string{"city"}
	stateKeys        = []string{"state", "province"}
	countryKeys      = []string{"country", "countryCode"}
	zipKeys          = []string{"zipcode", "zip", "postalCode"}
	latKeys          = []string{"lat", "latitude"}
	lngKeys          = []string{"lng", "longitude"}
	photoKeys        = []string{"photos", "images", "listingImages"}
	amenityKeys      = []string{"amenities", "listingAmenities"}
	basePriceKeys    = []string{"price", "basePrice", "defaultDailyPrice"}

	dayDateKeys      = []string{"date", "day"}
	dayAvailableKeys = []string{"isAvailable", "available"}
	dayPriceKeys     = []string{"price", "nightlyPrice", "basePrice", "defaultDailyPrice"}
	dayMinStayKeys   = []string{"minimumStay", "minStay", "minNights"}
)

// vendorListingID extracts the upsert key from a raw record. Numeric ids are
// rendered through decimal so large ids survive the float64 JSON round trip.
func vendorListingID(raw vendor.RawListing) string {
	if s := raw.String(listingIDKeys...); s != "" {
		return s
	}
	if d, ok := raw.Decimal(listingIDKeys...); ok {
		return d.String()
	}
	return ""
}

// mapListing converts a raw vendor record to the local schema, best effort:
// absent fields map to zero values, never to errors.
func mapListing(raw vendor.RawListing, hostID, vendorID string) *models.Listing {
	l := &models.Listing{
		VendorID:     vendorID,
		HostID:       hostID,
		Title:        raw.String(titleKeys...),
		Description:  raw.String(descriptionKeys...),
		PropertyType: raw.String(propertyTypeKeys...),
		Street:       raw.String(streetKeys...),
		City:         raw.String(cityKeys...),
		State:        raw.String(stateKeys...),
		Country:      raw.String(countryKeys...),
		Zip:          raw.String(zipKeys...),
		Photos:       raw.Strings(photoKeys...),
		Amenities:    raw.Strings(amenityKeys...),
	}
	l.Bedrooms, _ = raw.Int(bedroomsKeys...)
	l.Bathrooms, _ = raw.Int(bathroomsKeys...)
	l.Beds, _ = raw.Int(bedsKeys...)
	l.MaxGuests, _ = raw.Int(maxGuestsKeys...)
	l.Lat, _ = raw.Float(latKeys...)
	l.Lng, _ = raw.Float(lngKeys...)
	if price, ok := raw.Decimal(basePriceKeys...); ok && !price.IsNegative() {
		l.BasePrice = price
	} else {
		l.BasePrice = decimal.Zero
	}
	return l
}

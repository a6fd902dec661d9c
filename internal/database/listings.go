package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"staysync/internal/models"

	"github.com/shopspring/decimal"
)

const listingColumns = `id, vendor_id, host_id, title, description, property_type, bedrooms, bathrooms, beds, max_guests,
               street, city, state, country, zip, lat, lng, photos, amenities, base_price, created_at, updated_at`

func scanListing(row interface{ Scan(...any) error }) (*models.Listing, error) {
	var (
		l         models.Listing
		photos    string
		amenities string
		basePrice string
	)
	err := row.Scan(
		&l.ID, &l.VendorID, &l.HostID, &l.Title, &l.Description, &l.PropertyType,
		&l.Bedrooms, &l.Bathrooms, &l.Beds, &l.MaxGuests,
		&l.Street, &l.City, &l.State, &l.Country, &l.Zip,
		&l.Lat, &l.Lng, &photos, &amenities, &basePrice,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(photos), &l.Photos); err != nil {
		return nil, fmt.Errorf("failed to decode photos: %w", err)
	}
	if err := json.Unmarshal([]byte(amenities), &l.Amenities); err != nil {
		return nil, fmt.Errorf("failed to decode amenities: %w", err)
	}
	l.BasePrice, err = decimal.NewFromString(basePrice)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base price: %w", err)
	}
	return &l, nil
}

func (db *DB) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	listing, err := scanListing(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

func (db *DB) GetListingByVendorID(ctx context.Context, vendorID string) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE vendor_id = ?`
	listing, err := scanListing(db.QueryRowContext(ctx, query, vendorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing by vendor id: %w", err)
	}
	return listing, nil
}

func (db *DB) ListListingsByHost(ctx context.Context, hostID string) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE host_id = ? ORDER BY id`
	rows, err := db.QueryContext(ctx, query, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *listing)
	}
	return listings, rows.Err()
}

// UpsertListing creates or updates a listing keyed by vendor_id, atomically
// per key, and returns the stored row.
func (db *DB) UpsertListing(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	if listing.VendorID == "" {
		return nil, fmt.Errorf("listing vendor id is required")
	}

	photos, err := json.Marshal(listing.Photos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode photos: %w", err)
	}
	amenities, err := json.Marshal(listing.Amenities)
	if err != nil {
		return nil, fmt.Errorf("failed to encode amenities: %w", err)
	}
	if listing.Photos == nil {
		photos = []byte("[]")
	}
	if listing.Amenities == nil {
		amenities = []byte("[]")
	}

	query := `
        INSERT INTO listings (vendor_id, host_id, title, description, property_type, bedrooms, bathrooms, beds, max_guests,
                              street, city, state, country, zip, lat, lng, photos, amenities, base_price, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(vendor_id) DO UPDATE SET
            host_id = excluded.host_id,
            title = excluded.title,
            description = excluded.description,
            property_type = excluded.property_type,
            bedrooms = excluded.bedrooms,
            bathrooms = excluded.bathrooms,
            beds = excluded.beds,
            max_guests = excluded.max_guests,
            street = excluded.street,
            city = excluded.city,
            state = excluded.state,
            country = excluded.country,
            zip = excluded.zip,
            lat = excluded.lat,
            lng = excluded.lng,
            photos = excluded.photos,
            amenities = excluded.amenities,
            base_price = excluded.base_price,
            updated_at = excluded.updated_at
    `
	now := time.Now()
	_, err = db.ExecContext(ctx, query,
		listing.VendorID, listing.HostID, listing.Title, listing.Description, listing.PropertyType,
		listing.Bedrooms, listing.Bathrooms, listing.Beds, listing.MaxGuests,
		listing.Street, listing.City, listing.State, listing.Country, listing.Zip,
		listing.Lat, listing.Lng, string(photos), string(amenities), listing.BasePrice.String(),
		now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert listing: %w", err)
	}

	return db.GetListingByVendorID(ctx, listing.VendorID)
}

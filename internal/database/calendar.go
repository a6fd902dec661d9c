package database

import (
	"context"
	"fmt"
	"time"

	"staysync/internal/models"

	"github.com/shopspring/decimal"
)

const dayColumns = `id, listing_id, date, available, price, min_stay, updated_at`

func scanDay(row interface{ Scan(...any) error }) (*models.CalendarDay, error) {
	var (
		d     models.CalendarDay
		date  string
		price string
	)
	err := row.Scan(&d.ID, &d.ListingID, &date, &d.Available, &price, &d.MinStay, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Date, err = time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar date: %w", err)
	}
	d.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar price: %w", err)
	}
	return &d, nil
}

// UpsertCalendarDay creates or updates one day keyed by the (listing, date)
// composite and returns the stored row. The date is normalized to a UTC day
// boundary before it becomes part of the key.
func (db *DB) UpsertCalendarDay(ctx context.Context, day *models.CalendarDay) (*models.CalendarDay, error) {
	if day.ListingID == 0 {
		return nil, fmt.Errorf("calendar day listing id is required")
	}
	if day.MinStay <= 0 {
		day.MinStay = 1
	}
	dateKey := models.DateOnly(day.Date).Format("2006-01-02")

	query := `
        INSERT INTO calendar_days (listing_id, date, available, price, min_stay, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(listing_id, date) DO UPDATE SET
            available = excluded.available,
            price = excluded.price,
            min_stay = excluded.min_stay,
            updated_at = excluded.updated_at
    `
	_, err := db.ExecContext(ctx, query,
		day.ListingID, dateKey, day.Available, day.Price.String(), day.MinStay, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert calendar day: %w", err)
	}

	return db.GetCalendarDay(ctx, day.ListingID, day.Date)
}

func (db *DB) GetCalendarDay(ctx context.Context, listingID int64, date time.Time) (*models.CalendarDay, error) {
	query := `SELECT ` + dayColumns + ` FROM calendar_days WHERE listing_id = ? AND date = ?`
	dateKey := models.DateOnly(date).Format("2006-01-02")
	day, err := scanDay(db.QueryRowContext(ctx, query, listingID, dateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar day: %w", err)
	}
	return day, nil
}

func (db *DB) GetCalendarRange(ctx context.Context, listingID int64, start, end time.Time) ([]models.CalendarDay, error) {
	query := `SELECT ` + dayColumns + ` FROM calendar_days
              WHERE listing_id = ? AND date >= ? AND date <= ?
              ORDER BY date`
	rows, err := db.QueryContext(ctx, query,
		listingID,
		models.DateOnly(start).Format("2006-01-02"),
		models.DateOnly(end).Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar range: %w", err)
	}
	defer rows.Close()

	var days []models.CalendarDay
	for rows.Next() {
		day, err := scanDay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar day: %w", err)
		}
		days = append(days, *day)
	}
	return days, rows.Err()
}

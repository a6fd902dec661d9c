package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"staysync/internal/config"
	"staysync/internal/database"
	"staysync/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes operator-facing xlsx reports of the ingested data.
type Exporter struct {
	db     *database.DB
	config config.ExportConfig
	logger *zerolog.Logger
}

func NewExporter(db *database.DB, cfg config.ExportConfig, logger *zerolog.Logger) *Exporter {
	return &Exporter{db: db, config: cfg, logger: logger}
}

// HostReport writes one sheet of listings and one of the next 30 days of
// calendar state per listing, and returns the file path.
func (e *Exporter) HostReport(ctx context.Context, hostID string) (string, error) {
	if err := os.MkdirAll(e.config.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	listings, err := e.db.ListListingsByHost(ctx, hostID)
	if err != nil {
		return "", fmt.Errorf("error loading listings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeListingsSheet(f, listings); err != nil {
		return "", err
	}
	if err := e.writeCalendarSheet(ctx, f, listings); err != nil {
		return "", err
	}
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("host_%s_%s.xlsx", hostID, time.Now().Format("2006-01-02"))
	filePath := filepath.Join(e.config.Path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("listings", len(listings)).Msg("host report created")
	return filePath, nil
}

func (e *Exporter) writeListingsSheet(f *excelize.File, listings []models.Listing) error {
	const sheet = "Listings"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Vendor ID", "Title", "Type", "Bedrooms", "Bathrooms", "Max Guests", "City", "Country", "Base Price"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(sheet, "A1", "I1", headerStyle)

	for row, l := range listings {
		values := []any{l.VendorID, l.Title, l.PropertyType, l.Bedrooms, l.Bathrooms, l.MaxGuests, l.City, l.Country, l.BasePrice.String()}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 30)
	return nil
}

func (e *Exporter) writeCalendarSheet(ctx context.Context, f *excelize.File, listings []models.Listing) error {
	const sheet = "Calendar"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	headers := []string{"Vendor ID", "Date", "Available", "Price", "Min Stay"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	start := models.DateOnly(time.Now())
	end := start.AddDate(0, 0, 30)

	row := 2
	for _, l := range listings {
		days, err := e.db.GetCalendarRange(ctx, l.ID, start, end)
		if err != nil {
			return fmt.Errorf("error loading calendar for %s: %w", l.VendorID, err)
		}
		for _, d := range days {
			values := []any{l.VendorID, d.Date.Format("2006-01-02"), d.Available, d.Price.String(), d.MinStay}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			row++
		}
	}

	return nil
}

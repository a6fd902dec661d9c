package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staysync/internal/models"
)

const hostColumns = `id, vendor_account_id, access_token, refresh_token, token_type, scope, token_expires_at, created_at, updated_at`

func scanHost(row interface{ Scan(...any) error }) (*models.Host, error) {
	var h models.Host
	err := row.Scan(
		&h.ID,
		&h.VendorAccountID,
		&h.AccessToken,
		&h.RefreshToken,
		&h.TokenType,
		&h.Scope,
		&h.TokenExpiresAt,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (db *DB) GetHost(ctx context.Context, id string) (*models.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE id = ?`
	host, err := scanHost(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	return host, nil
}

// GetHostByVendorAccount resolves an inbound webhook's vendor account
// identifier to a local host.
func (db *DB) GetHostByVendorAccount(ctx context.Context, vendorAccountID string) (*models.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts WHERE vendor_account_id = ?`
	host, err := scanHost(db.QueryRowContext(ctx, query, vendorAccountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get host by vendor account: %w", err)
	}
	return host, nil
}

// GetLinkedHosts returns hosts eligible for the recurring fan-out: a vendor
// account id and a stored refresh token are both present.
func (db *DB) GetLinkedHosts(ctx context.Context) ([]models.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM hosts
              WHERE vendor_account_id IS NOT NULL AND vendor_account_id != ''
                AND refresh_token IS NOT NULL AND refresh_token != ''
              ORDER BY id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get linked hosts: %w", err)
	}
	defer rows.Close()

	var hosts []models.Host
	for rows.Next() {
		host, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, *host)
	}
	return hosts, rows.Err()
}

func (db *DB) UpsertHost(ctx context.Context, host *models.Host) error {
	query := `
        INSERT INTO hosts (id, vendor_account_id, access_token, refresh_token, token_type, scope, token_expires_at, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            vendor_account_id = excluded.vendor_account_id,
            access_token = excluded.access_token,
            refresh_token = excluded.refresh_token,
            token_type = excluded.token_type,
            scope = excluded.scope,
            token_expires_at = excluded.token_expires_at,
            updated_at = excluded.updated_at
    `
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		host.ID,
		host.VendorAccountID,
		host.AccessToken,
		host.RefreshToken,
		host.TokenType,
		host.Scope,
		host.TokenExpiresAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert host: %w", err)
	}
	return nil
}

// UpdateHostTokens is the single credential write performed on the token
// refresh path.
func (db *DB) UpdateHostTokens(ctx context.Context, hostID, accessToken, refreshToken, tokenType, scope string, expiresAt time.Time) error {
	query := `UPDATE hosts
              SET access_token = ?, refresh_token = ?, token_type = ?, scope = ?, token_expires_at = ?, updated_at = ?
              WHERE id = ?`
	res, err := db.ExecContext(ctx, query, accessToken, refreshToken, tokenType, scope, expiresAt, time.Now(), hostID)
	if err != nil {
		return fmt.Errorf("failed to update host tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm host token update: %w", err)
	}
	if affected == 0 {
		return ErrHostNotFound
	}
	return nil
}

package models

import "time"

// Host is the durable credential record for one vendor-connected host.
// Access/refresh tokens are written only by the token manager and by the
// initial authorization exchange; the engine never deletes a host.
type Host struct {
	ID              string     `json:"id"`
	VendorAccountID *string    `json:"vendor_account_id"`
	AccessToken     *string    `json:"-"`
	RefreshToken    *string    `json:"-"`
	TokenType       string     `json:"token_type"`
	Scope           string     `json:"scope"`
	TokenExpiresAt  *time.Time `json:"token_expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Linked reports whether the host can take part in the recurring fan-out:
// it must carry a vendor account id and a stored refresh token.
func (h *Host) Linked() bool {
	return h.VendorAccountID != nil && *h.VendorAccountID != "" &&
		h.RefreshToken != nil && *h.RefreshToken != ""
}

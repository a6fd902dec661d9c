package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"staysync/internal/config"
	"staysync/internal/domain"
	"staysync/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var (
	// ErrMissingRefreshToken means the stored token is stale and no refresh
	// token exists to replace it; the host must re-authorize.
	ErrMissingRefreshToken = errors.New("host has no refresh token")

	// ErrVendorAuth means the vendor rejected the refresh grant or returned
	// no usable access token.
	ErrVendorAuth = errors.New("vendor token exchange failed")

	// ErrPersistence means the credential write could not be confirmed to
	// carry the new access token.
	ErrPersistence = errors.New("credential store write not confirmed")
)

// Manager keeps per-host vendor access tokens valid, refreshing them through
// the OAuth2 refresh_token grant when they are stale or absent.
type Manager struct {
	store  domain.CredentialStore
	oauth  *oauth2.Config
	logger *zerolog.Logger

	// One refresh in flight per host. Concurrent refreshes would be
	// harmless (last write wins, grants are idempotent per validity
	// window) but they double vendor traffic and can trip its rate limit.
	locks sync.Map // map[string]*sync.Mutex
}

func NewManager(store domain.CredentialStore, cfg config.VendorConfig, logger *zerolog.Logger) *Manager {
	return &Manager{
		store: store,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logger: logger,
	}
}

// ValidAccessToken returns an access token whose expiry is at least the
// safety buffer away, refreshing and persisting new credentials when not.
// At most one credential-store write happens per call, on the refresh path.
func (m *Manager) ValidAccessToken(ctx context.Context, hostID string) (string, error) {
	lock := m.hostLock(hostID)
	lock.Lock()
	defer lock.Unlock()

	host, err := m.store.GetHost(ctx, hostID)
	if err != nil {
		return "", err
	}

	if tok := usableToken(host, time.Now()); tok != "" {
		return tok, nil
	}

	if host.RefreshToken == nil || *host.RefreshToken == "" {
		return "", ErrMissingRefreshToken
	}

	newTok, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: *host.RefreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVendorAuth, err)
	}
	if newTok.AccessToken == "" {
		return "", fmt.Errorf("%w: response carried no access token", ErrVendorAuth)
	}

	// Vendors may keep reusing the same refresh token and omit it from the
	// response; fall back to the one we already hold.
	refresh := newTok.RefreshToken
	if refresh == "" {
		refresh = *host.RefreshToken
	}

	expiry := newTok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}

	scope, _ := newTok.Extra("scope").(string)
	if scope == "" {
		scope = host.Scope
	}

	if err := m.store.UpdateHostTokens(ctx, hostID, newTok.AccessToken, refresh, newTok.TokenType, scope, expiry); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Re-read to defend against silent write failures.
	updated, err := m.store.GetHost(ctx, hostID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if updated.AccessToken == nil || *updated.AccessToken == "" {
		return "", ErrPersistence
	}

	m.logger.Info().Str("host_id", hostID).Time("expires_at", expiry).Msg("vendor token refreshed")
	return *updated.AccessToken, nil
}

// usableToken returns the stored access token when its expiry is more than
// the safety buffer away from now, else "".
func usableToken(host *models.Host, now time.Time) string {
	if host.AccessToken == nil || *host.AccessToken == "" {
		return ""
	}
	if host.TokenExpiresAt == nil {
		return ""
	}
	if host.TokenExpiresAt.After(now.Add(models.TokenExpiryBuffer)) {
		return *host.AccessToken
	}
	return ""
}

func (m *Manager) hostLock(hostID string) *sync.Mutex {
	if v, ok := m.locks.Load(hostID); ok {
		return v.(*sync.Mutex)
	}
	lock := &sync.Mutex{}
	actual, _ := m.locks.LoadOrStore(hostID, lock)
	return actual.(*sync.Mutex)
}

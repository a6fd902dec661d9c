package sync

import (
	"context"
	"errors"
	"fmt"

	"staysync/internal/domain"
	"staysync/internal/models"

	"github.com/rs/zerolog"
)

// ErrTooManyPages means the vendor kept returning full pages past the
// configured cap. The continuation heuristic (full page means more pages)
// can loop forever against a broken platform; the cap turns that into a
// visible failure.
var ErrTooManyPages = errors.New("listing sync exceeded page cap")

// Listings reconciles vendor listings into the local store via idempotent
// upserts keyed by vendor identifier.
type Listings struct {
	repo      domain.EntityRepository
	tokens    domain.TokenSource
	api       domain.VendorAPI
	pageLimit int
	maxPages  int
	logger    *zerolog.Logger
}

func NewListings(repo domain.EntityRepository, tokens domain.TokenSource, api domain.VendorAPI, pageLimit, maxPages int, logger *zerolog.Logger) *Listings {
	if pageLimit <= 0 {
		pageLimit = models.DefaultPageLimit
	}
	if maxPages <= 0 {
		maxPages = models.DefaultMaxPages
	}
	return &Listings{
		repo:      repo,
		tokens:    tokens,
		api:       api,
		pageLimit: pageLimit,
		maxPages:  maxPages,
		logger:    logger,
	}
}

// SyncAll pages through the host's vendor listing collection and upserts
// every record. Records without a vendor identifier are skipped, not fatal;
// a failed page fetch aborts the whole call (retry belongs to the worker).
// Returns the upserted listings in vendor page order.
func (s *Listings) SyncAll(ctx context.Context, hostID string) ([]models.Listing, error) {
	accessToken, err := s.tokens.ValidAccessToken(ctx, hostID)
	if err != nil {
		return nil, err
	}

	var synced []models.Listing
	skipped := 0

	for page := 1; ; page++ {
		if page > s.maxPages {
			return nil, fmt.Errorf("%w: host %s, limit %d", ErrTooManyPages, hostID, s.maxPages)
		}

		resp, err := s.api.ListListings(ctx, accessToken, page, s.pageLimit)
		if err != nil {
			return nil, err
		}

		// Some platform versions return an empty page instead of a
		// truthful page count.
		if len(resp.Listings) == 0 {
			break
		}

		for _, raw := range resp.Listings {
			vendorID := vendorListingID(raw)
			if vendorID == "" {
				skipped++
				continue
			}
			stored, err := s.repo.UpsertListing(ctx, mapListing(raw, hostID, vendorID))
			if err != nil {
				return nil, err
			}
			synced = append(synced, *stored)
		}

		if !morePages(resp.TotalPages, page, len(resp.Listings), s.pageLimit) {
			break
		}
	}

	s.logger.Info().
		Str("host_id", hostID).
		Int("synced", len(synced)).
		Int("skipped", skipped).
		Msg("listing sync completed")
	return synced, nil
}

// SyncOne fetches a single vendor listing and upserts it, forcing the upsert
// key to the requested identifier even if the payload reports another one.
func (s *Listings) SyncOne(ctx context.Context, hostID, vendorID string) (*models.Listing, error) {
	accessToken, err := s.tokens.ValidAccessToken(ctx, hostID)
	if err != nil {
		return nil, err
	}

	raw, err := s.api.GetListing(ctx, accessToken, vendorID)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.UpsertListing(ctx, mapListing(raw, hostID, vendorID))
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("host_id", hostID).Str("vendor_id", vendorID).Msg("single listing synced")
	return stored, nil
}

// morePages decides whether to continue paging: trust the reported page
// count when present, else keep going while pages come back full.
func morePages(totalPages *int, page, got, limit int) bool {
	if totalPages != nil {
		return page < *totalPages
	}
	return got == limit
}

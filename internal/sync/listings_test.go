package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"staysync/internal/database"
	"staysync/internal/models"
	"staysync/internal/vendor"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) ValidAccessToken(ctx context.Context, hostID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakeRepo struct {
	byVendorID map[string]*models.Listing
	byID       map[int64]*models.Listing
	days       map[string]*models.CalendarDay
	nextID     int64
	nextDayID  int64
	upserts    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byVendorID: map[string]*models.Listing{},
		byID:       map[int64]*models.Listing{},
		days:       map[string]*models.CalendarDay{},
	}
}

func (f *fakeRepo) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	l, ok := f.byID[id]
	if !ok {
		return nil, database.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeRepo) GetListingByVendorID(ctx context.Context, vendorID string) (*models.Listing, error) {
	l, ok := f.byVendorID[vendorID]
	if !ok {
		return nil, database.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeRepo) ListListingsByHost(ctx context.Context, hostID string) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range f.byVendorID {
		if l.HostID == hostID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpsertListing(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	f.upserts++
	if listing.VendorID == "" {
		return nil, errors.New("listing vendor id is required")
	}
	cp := *listing
	if existing, ok := f.byVendorID[listing.VendorID]; ok {
		cp.ID = existing.ID
	} else {
		f.nextID++
		cp.ID = f.nextID
	}
	f.byVendorID[cp.VendorID] = &cp
	f.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) UpsertCalendarDay(ctx context.Context, day *models.CalendarDay) (*models.CalendarDay, error) {
	key := fmt.Sprintf("%d/%s", day.ListingID, models.DateOnly(day.Date).Format("2006-01-02"))
	cp := *day
	cp.Date = models.DateOnly(day.Date)
	if existing, ok := f.days[key]; ok {
		cp.ID = existing.ID
	} else {
		f.nextDayID++
		cp.ID = f.nextDayID
	}
	f.days[key] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) GetCalendarRange(ctx context.Context, listingID int64, start, end time.Time) ([]models.CalendarDay, error) {
	var out []models.CalendarDay
	for _, d := range f.days {
		if d.ListingID == listingID && !d.Date.Before(start) && !d.Date.After(end) {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakeAPI struct {
	pages      [][]vendor.RawListing
	totalPages *int
	limit      int
	listCalls  int

	single    vendor.RawListing
	singleErr error

	calendar    []vendor.RawDay
	calendarErr error
	gotStart    time.Time
	gotEnd      time.Time
}

func (f *fakeAPI) ListListings(ctx context.Context, token string, page, limit int) (*vendor.ListingPage, error) {
	f.listCalls++
	var listings []vendor.RawListing
	if page <= len(f.pages) {
		listings = f.pages[page-1]
	}
	return &vendor.ListingPage{
		Listings:   listings,
		Page:       page,
		Limit:      limit,
		TotalPages: f.totalPages,
	}, nil
}

func (f *fakeAPI) GetListing(ctx context.Context, token, vendorID string) (vendor.RawListing, error) {
	if f.singleErr != nil {
		return nil, f.singleErr
	}
	return f.single, nil
}

func (f *fakeAPI) GetCalendar(ctx context.Context, token, vendorID string, start, end time.Time) ([]vendor.RawDay, error) {
	f.gotStart, f.gotEnd = start, end
	if f.calendarErr != nil {
		return nil, f.calendarErr
	}
	return f.calendar, nil
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(os.Stdout)
	return &l
}

func rawPage(start, count int) []vendor.RawListing {
	page := make([]vendor.RawListing, 0, count)
	for i := 0; i < count; i++ {
		page = append(page, vendor.RawListing{
			"id":   fmt.Sprintf("v-%d", start+i),
			"name": fmt.Sprintf("Listing %d", start+i),
		})
	}
	return page
}

func TestSyncAllPagesUntilShortPage(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{pages: [][]vendor.RawListing{rawPage(0, 50), rawPage(50, 50), rawPage(100, 13)}}
	s := NewListings(repo, &fakeTokens{token: "tok"}, api, 50, 0, testLogger())

	synced, err := s.SyncAll(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Len(t, synced, 113)
	assert.Equal(t, 3, api.listCalls)
	assert.Len(t, repo.byVendorID, 113)
}

func TestSyncAllTrustsReportedPageCount(t *testing.T) {
	repo := newFakeRepo()
	total := 2
	// Both pages are full; the reported count must still stop the loop.
	api := &fakeAPI{pages: [][]vendor.RawListing{rawPage(0, 50), rawPage(50, 50)}, totalPages: &total}
	s := NewListings(repo, &fakeTokens{token: "tok"}, api, 50, 0, testLogger())

	synced, err := s.SyncAll(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Len(t, synced, 100)
	assert.Equal(t, 2, api.listCalls)
}

func TestSyncAllStopsOnEmptyPage(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{pages: [][]vendor.RawListing{rawPage(0, 50), {}}}
	s := NewListings(repo, &fakeTokens{token: "tok"}, api, 50, 0, testLogger())

	synced, err := s.SyncAll(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Len(t, synced, 50)
	assert.Equal(t, 2, api.listCalls)
}

func TestSyncAllPageCap(t *testing.T) {
	repo := newFakeRepo()
	// Every page full forever.
	pages := make([][]vendor.RawListing, 10)
	for i := range pages {
		pages[i] = rawPage(i*5, 5)
	}
	api := &fakeAPI{pages: pages}
	s := NewListings(repo, &fakeTokens{token: "tok"}, api, 5, 3, testLogger())

	_, err := s.SyncAll(context.Background(), "host-1")
	assert.ErrorIs(t, err, ErrTooManyPages)
}

func TestSyncAllSkipsRecordsWithoutID(t *testing.T) {
	repo := newFakeRepo()
	page := rawPage(0, 9)
	page = append(page, vendor.RawListing{"name": "no id here"})
	api := &fakeAPI{pages: [][]vendor.RawListing{page}}
	s := NewListings(repo, &fakeTokens{token: "tok"}, api, 50, 0, testLogger())

	synced, err := s.SyncAll(context.Background(), "host-1")
	require.NoError(t, err)
	assert.Len(t, synced, 9)
}

func TestSyncAllIdempotent(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{pages: [][]vendor.RawListing{rawPage(0, 7)}}
	s := NewListings(repo, &fakeTokens{token: "tok"}, api, 50, 0, testLogger())

	first, err := s.SyncAll(context.Background(), "host-1")
	require.NoError(t, err)
	second, err := s.SyncAll(context.Background(), "host-1")
	require.NoError(t, err)

	assert.Len(t, second, len(first))
	assert.Len(t, repo.byVendorID, 7)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestSyncAllTokenFailure(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{}
	tokenErr := errors.New("token exchange down")
	s := NewListings(repo, &fakeTokens{err: tokenErr}, api, 50, 0, testLogger())

	_, err := s.SyncAll(context.Background(), "host-1")
	assert.ErrorIs(t, err, tokenErr)
	assert.Zero(t, api.listCalls)
}

func TestSyncOneForcesRequestedVendorID(t *testing.T) {
	repo := newFakeRepo()
	// Payload reports a different id; the requested one wins.
	api := &fakeAPI{single: vendor.RawListing{"id": "v-other", "name": "Detached Record"}}
	s := NewListings(repo, &fakeTokens{token: "tok"}, api, 50, 0, testLogger())

	stored, err := s.SyncOne(context.Background(), "host-1", "v-requested")
	require.NoError(t, err)
	assert.Equal(t, "v-requested", stored.VendorID)
	assert.Equal(t, "Detached Record", stored.Title)
	assert.Contains(t, repo.byVendorID, "v-requested")
	assert.NotContains(t, repo.byVendorID, "v-other")
}

func TestVendorListingIDNumeric(t *testing.T) {
	// Large numeric ids must survive the float64 JSON round trip.
	raw := vendor.RawListing{"id": float64(123456789)}
	assert.Equal(t, "123456789", vendorListingID(raw))

	assert.Equal(t, "abc-1", vendorListingID(vendor.RawListing{"listingId": "abc-1"}))
	assert.Equal(t, "", vendorListingID(vendor.RawListing{"name": "nothing"}))
}

package worker

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"staysync/internal/database"
	"staysync/internal/models"

	"github.com/rs/zerolog"
)

type fakeListings struct {
	syncAllCalls int
	syncOneCalls int
	err          error
	lastHostID   string
	lastVendorID string
}

func (f *fakeListings) SyncAll(ctx context.Context, hostID string) ([]models.Listing, error) {
	f.syncAllCalls++
	f.lastHostID = hostID
	if f.err != nil {
		return nil, f.err
	}
	return []models.Listing{{ID: 1, VendorID: "v-1", HostID: hostID}}, nil
}

func (f *fakeListings) SyncOne(ctx context.Context, hostID, vendorID string) (*models.Listing, error) {
	f.syncOneCalls++
	f.lastHostID = hostID
	f.lastVendorID = vendorID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Listing{ID: 1, VendorID: vendorID, HostID: hostID}, nil
}

type fakeCalendar struct {
	calls         int
	err           error
	lastListingID int64
}

func (f *fakeCalendar) Sync(ctx context.Context, listingID int64) ([]models.CalendarDay, error) {
	f.calls++
	f.lastListingID = listingID
	if f.err != nil {
		return nil, f.err
	}
	return []models.CalendarDay{{ID: 1, ListingID: listingID}}, nil
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestWorker(t *testing.T, db *database.DB, listings *fakeListings, calendar *fakeCalendar) *SyncWorker {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	return NewSyncWorker(db, listings, calendar, db, nil, nil, RetryPolicy{MaxRetries: 3}, &logger)
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}

func seedLinkedHost(t *testing.T, db *database.DB, id string) {
	t.Helper()
	acct := "acct-" + id
	refresh := "refresh-" + id
	if err := db.UpsertHost(context.Background(), &models.Host{ID: id, VendorAccountID: &acct, RefreshToken: &refresh}); err != nil {
		t.Fatalf("seed host: %v", err)
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	listings := &fakeListings{}
	w := newTestWorker(t, db, listings, &fakeCalendar{})

	ctx := context.Background()
	if err := w.Enqueue(ctx, models.TaskSyncListings, models.TaskPayload{HostID: "host-1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if listings.syncAllCalls != 1 {
		t.Fatalf("expected one SyncAll call, got %d", listings.syncAllCalls)
	}
	if listings.lastHostID != "host-1" {
		t.Fatalf("expected host-1, got %s", listings.lastHostID)
	}
}

func TestProcessTaskRetriesThenFails(t *testing.T) {
	db := newTestDB(t)
	listings := &fakeListings{err: errors.New("vendor down")}
	w := newTestWorker(t, db, listings, &fakeCalendar{})

	ctx := context.Background()
	if err := w.Enqueue(ctx, models.TaskSyncListings, models.TaskPayload{HostID: "host-1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := w.tryLocalQueue()

	// First failure schedules a retry.
	w.processTask(ctx, &task)
	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || !nextRetry.Time.After(time.Now()) {
		t.Fatalf("expected future next_retry_at")
	}

	// Second failure schedules another retry.
	task.RetryCount = retryCount
	w.processTask(ctx, &task)
	status, retryCount, _ = loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusRetry || retryCount != 2 {
		t.Fatalf("expected retry/2, got %s/%d", status, retryCount)
	}

	// Third attempt exhausts the budget.
	task.RetryCount = retryCount
	w.processTask(ctx, &task)
	status, _, _ = loadTaskStatus(t, db, task.ID)
	if status != models.TaskStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestProcessTaskCalendar(t *testing.T) {
	db := newTestDB(t)
	calendar := &fakeCalendar{}
	w := newTestWorker(t, db, &fakeListings{}, calendar)

	ctx := context.Background()
	if err := w.Enqueue(ctx, models.TaskSyncCalendar, models.TaskPayload{ListingID: 42}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := w.tryLocalQueue()
	w.processTask(ctx, &task)

	if calendar.calls != 1 {
		t.Fatalf("expected one calendar sync, got %d", calendar.calls)
	}
	if calendar.lastListingID != 42 {
		t.Fatalf("expected listing 42, got %d", calendar.lastListingID)
	}
}

func TestEnqueueValidatesPayload(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, &fakeListings{}, &fakeCalendar{})

	ctx := context.Background()
	cases := []struct {
		taskType string
		payload  models.TaskPayload
	}{
		{models.TaskSyncListings, models.TaskPayload{}},
		{models.TaskSyncSingleListing, models.TaskPayload{HostID: "h"}},
		{models.TaskSyncSingleListing, models.TaskPayload{VendorID: "v"}},
		{models.TaskSyncCalendar, models.TaskPayload{}},
		{"bogus-kind", models.TaskPayload{}},
	}
	for _, tc := range cases {
		if err := w.Enqueue(ctx, tc.taskType, tc.payload); err == nil {
			t.Fatalf("expected error for %s with %+v", tc.taskType, tc.payload)
		}
	}

	tasks, err := db.GetDueSyncTasks(ctx, 10)
	if err != nil {
		t.Fatalf("get due: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty queue, got %d tasks", len(tasks))
	}
}

func TestEnsureRecurringSingleton(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, &fakeListings{}, &fakeCalendar{})

	ctx := context.Background()
	if err := w.EnsureRecurring(ctx); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	// A restart must reuse the existing schedule row.
	if err := w.EnsureRecurring(ctx); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	var count int
	row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE dedupe_key = ?`, models.RecurringSyncAllKey)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one recurring row, got %d", count)
	}

	stored, err := db.GetSyncTaskByDedupeKey(ctx, models.RecurringSyncAllKey)
	if err != nil {
		t.Fatalf("get recurring: %v", err)
	}
	if !stored.ScheduledAt.After(time.Now()) {
		t.Fatalf("expected future scheduled_at, got %v", stored.ScheduledAt)
	}
}

func TestRecurringFanOut(t *testing.T) {
	db := newTestDB(t)
	listings := &fakeListings{}
	w := newTestWorker(t, db, listings, &fakeCalendar{})

	ctx := context.Background()
	seedLinkedHost(t, db, "host-1")
	seedLinkedHost(t, db, "host-2")

	// Unlinked host must not be fanned out.
	if err := db.UpsertHost(ctx, &models.Host{ID: "host-3"}); err != nil {
		t.Fatalf("seed unlinked: %v", err)
	}

	key := models.RecurringSyncAllKey
	task := models.SyncTask{TaskType: models.TaskSyncAllHosts, Payload: "{}", DedupeKey: &key}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}
	w.processTask(ctx, &task)

	// One child job per linked host.
	fanned := 0
	for {
		child, ok := w.tryLocalQueue()
		if !ok {
			break
		}
		if child.TaskType != models.TaskSyncListings {
			t.Fatalf("unexpected child kind %s", child.TaskType)
		}
		fanned++
	}
	if fanned != 2 {
		t.Fatalf("expected 2 fan-out jobs, got %d", fanned)
	}

	// The schedule row is re-armed, not completed.
	stored, err := db.GetSyncTaskByDedupeKey(ctx, models.RecurringSyncAllKey)
	if err != nil {
		t.Fatalf("get recurring: %v", err)
	}
	if stored.Status != models.TaskStatusPending {
		t.Fatalf("expected pending schedule row, got %s", stored.Status)
	}
	if !stored.ScheduledAt.After(time.Now()) {
		t.Fatalf("expected future scheduled_at")
	}
}

func TestRecurringSurvivesTerminalFailure(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db, &fakeListings{}, &fakeCalendar{})

	key := models.RecurringSyncAllKey
	task := models.SyncTask{TaskType: models.TaskSyncAllHosts, Payload: "not json", DedupeKey: &key, RetryCount: 99}
	ctx := context.Background()
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create: %v", err)
	}

	w.retryOrFail(ctx, &task, errors.New("cycle failed"))

	stored, err := db.GetSyncTaskByDedupeKey(ctx, models.RecurringSyncAllKey)
	if err != nil {
		t.Fatalf("get recurring: %v", err)
	}
	if stored.Status != models.TaskStatusPending {
		t.Fatalf("expected re-armed schedule, got %s", stored.Status)
	}
}

func TestNextRecurringRun(t *testing.T) {
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2026, 8, 31, 7, 15, 0, 0, time.UTC), time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)},
		{time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)},
		{time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := nextRecurringRun(tc.now); !got.Equal(tc.want) {
			t.Fatalf("nextRecurringRun(%v) = %v, want %v", tc.now, got, tc.want)
		}
	}
}

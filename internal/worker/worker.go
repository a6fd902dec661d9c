package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"staysync/internal/database"
	"staysync/internal/domain"
	"staysync/internal/metrics"
	"staysync/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SyncWorker drains the durable sync queue and executes typed jobs against
// the synchronizers. Delivery is at-least-once: redis is the fast path, the
// sqlite queue is the source of truth, an in-memory channel bridges the gap
// when redis is down.
type SyncWorker struct {
	db            *database.DB
	listings      domain.ListingSyncer
	calendar      domain.CalendarSyncer
	hosts         domain.CredentialStore
	state         domain.SyncStateRepository
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewSyncWorker(
	db *database.DB,
	listings domain.ListingSyncer,
	calendar domain.CalendarSyncer,
	hosts domain.CredentialStore,
	state domain.SyncStateRepository,
	redisClient *redis.Client,
	retry RetryPolicy,
	logger *zerolog.Logger,
) *SyncWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &SyncWorker{
		db:            db,
		listings:      listings,
		calendar:      calendar,
		hosts:         hosts,
		state:         state,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: "staysync:queue",
		deadLetterKey: "staysync:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// SetPolling overrides the queue poll cadence and batch size.
func (w *SyncWorker) SetPolling(interval time.Duration, batchSize int) {
	if interval > 0 {
		w.pollInterval = interval
	}
	if batchSize > 0 {
		w.batchSize = batchSize
	}
}

// Enqueue persists a job to the durable queue and schedules it via redis or
// the in-memory channel. Repeat calls enqueue independent jobs.
func (w *SyncWorker) Enqueue(ctx context.Context, taskType string, payload models.TaskPayload) error {
	switch taskType {
	case models.TaskSyncListings:
		if payload.HostID == "" {
			return errors.New("host id is required")
		}
	case models.TaskSyncSingleListing:
		if payload.HostID == "" || payload.VendorID == "" {
			return errors.New("host id and vendor id are required")
		}
	case models.TaskSyncCalendar:
		if payload.ListingID == 0 {
			return errors.New("listing id is required")
		}
	case models.TaskSyncAllHosts:
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType: taskType,
		Payload:  string(payloadBytes),
		Status:   models.TaskStatusPending,
	}

	if err := w.db.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}
	metrics.IncTask(taskType, "enqueued")

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("sync_worker: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("sync_worker: in-memory queue full, task left to polling")
	}

	return nil
}

// EnsureRecurring creates the standing sync-all-hosts schedule if it does
// not exist. The fixed dedupe key makes repeated startups reuse one row.
func (w *SyncWorker) EnsureRecurring(ctx context.Context) error {
	key := models.RecurringSyncAllKey
	task := models.SyncTask{
		TaskType:    models.TaskSyncAllHosts,
		Status:      models.TaskStatusPending,
		DedupeKey:   &key,
		ScheduledAt: nextRecurringRun(time.Now()),
	}
	if err := w.db.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("ensure recurring schedule: %w", err)
	}
	if task.ID != 0 {
		w.logger.Info().Time("first_run", task.ScheduledAt).Msg("sync_worker: recurring full sync scheduled")
	}
	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync_worker: started")
	defer w.logger.Info().Msg("sync_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetDueSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("sync_worker: fetch due tasks")
			w.sleep(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *SyncWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *SyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("sync_worker: redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("sync_worker: decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	start := time.Now()

	var payload models.TaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	err := w.handleTask(ctx, task.TaskType, payload)
	metrics.ObserveTaskDuration(task.TaskType, time.Since(start))

	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if task.Recurring() {
		if err := w.db.RescheduleRecurring(ctx, task.ID, nextRecurringRun(time.Now())); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: reschedule recurring")
		}
	} else if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: mark completed")
	}
	metrics.IncTask(task.TaskType, "completed")
}

func (w *SyncWorker) handleTask(ctx context.Context, taskType string, payload models.TaskPayload) error {
	switch taskType {
	case models.TaskSyncListings:
		if _, err := w.listings.SyncAll(ctx, payload.HostID); err != nil {
			return err
		}
		w.recordLastSync(ctx, payload.HostID)
		return nil
	case models.TaskSyncSingleListing:
		_, err := w.listings.SyncOne(ctx, payload.HostID, payload.VendorID)
		return err
	case models.TaskSyncCalendar:
		_, err := w.calendar.Sync(ctx, payload.ListingID)
		return err
	case models.TaskSyncAllHosts:
		return w.fanOut(ctx)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

// fanOut enqueues one sync-listings job per linked host.
func (w *SyncWorker) fanOut(ctx context.Context) error {
	linked, err := w.hosts.GetLinkedHosts(ctx)
	if err != nil {
		return err
	}
	for _, host := range linked {
		if err := w.Enqueue(ctx, models.TaskSyncListings, models.TaskPayload{HostID: host.ID}); err != nil {
			return err
		}
	}
	w.logger.Info().Int("hosts", len(linked)).Msg("sync_worker: full sync fanned out")
	return nil
}

func (w *SyncWorker) recordLastSync(ctx context.Context, hostID string) {
	if w.state == nil {
		return
	}
	if err := w.state.SetLastSync(ctx, hostID, time.Now()); err != nil {
		w.logger.Warn().Err(err).Str("host_id", hostID).Msg("sync_worker: record last sync")
	}
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if task.Recurring() {
			// The standing schedule must survive a bad cycle; re-arm it
			// instead of burying it.
			w.logger.Error().Err(cause).Msg("sync_worker: recurring sync failed, rescheduling")
			if err := w.db.RescheduleRecurring(ctx, task.ID, nextRecurringRun(time.Now())); err != nil {
				w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: reschedule recurring")
			}
			return
		}
		w.failTask(ctx, task, cause)
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: mark retry")
	}
	metrics.IncTask(task.TaskType, "retried")
}

func (w *SyncWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: mark failed")
	}
	metrics.IncTask(task.TaskType, "failed")
	w.pushDeadLetter(ctx, task)
}

func (w *SyncWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *SyncWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: encode deadletter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("sync_worker: deadletter push")
	}
}

// nextRecurringRun returns the next 6-hour UTC boundary (00/06/12/18, on the
// hour) strictly after now.
func nextRecurringRun(now time.Time) time.Time {
	return now.UTC().Truncate(models.RecurringSyncInterval).Add(models.RecurringSyncInterval)
}

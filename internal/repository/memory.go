package repository

import (
	"context"
	"sync"
	"time"
)

// MemorySyncStateRepository is the in-process fallback used when redis is
// unavailable. Contents are lost on restart, which is acceptable for sync
// bookkeeping.
type MemorySyncStateRepository struct {
	lastSyncs sync.Map

	// counters are read-modify-write, so a plain map under a mutex.
	mu         sync.Mutex
	rateLimits map[string]*rateLimitEntry
}

func NewMemorySyncStateRepository() *MemorySyncStateRepository {
	return &MemorySyncStateRepository{rateLimits: make(map[string]*rateLimitEntry)}
}

func (r *MemorySyncStateRepository) GetLastSync(ctx context.Context, hostID string) (*time.Time, error) {
	val, ok := r.lastSyncs.Load(hostID)
	if !ok {
		return nil, nil
	}
	t := val.(time.Time)
	return &t, nil
}

func (r *MemorySyncStateRepository) SetLastSync(ctx context.Context, hostID string, at time.Time) error {
	r.lastSyncs.Store(hostID, at)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySyncStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	} else {
		entry.count++
	}
	return entry.count <= limit, nil
}

package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for per-order settlement locks
// and per-transaction delivery locks.
type LockStoreInterface interface {
	AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
	ReleaseOrderLock(ctx context.Context, orderID string) error
	AcquireTransactionLock(ctx context.Context, transactionID string, ttl time.Duration) (bool, error)
	ReleaseTransactionLock(ctx context.Context, transactionID string) error
}

// PendingCacheInterface defines the interface for the pending-order cache.
type PendingCacheInterface interface {
	GetPending(ctx context.Context, date string) ([]CachedPendingOrder, bool, error)
	PendingGeneration(ctx context.Context) (int64, error)
	SetPending(ctx context.Context, date string, generation int64, orders []CachedPendingOrder) (bool, error)
	RemovePendingOrder(ctx context.Context, orderID string) error
	InvalidatePending(ctx context.Context, date string) error
}

// StatsCacheInterface defines the interface for the stats cache.
type StatsCacheInterface interface {
	GetStats(ctx context.Context, date string) (*CachedStats, error)
	SetStats(ctx context.Context, date string, stats *CachedStats) error
	InvalidateStats(ctx context.Context) error
}

// EventBusInterface defines the interface for cross-instance event relay.
type EventBusInterface interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface    = (*LockStore)(nil)
	_ PendingCacheInterface = (*CacheStore)(nil)
	_ StatsCacheInterface   = (*CacheStore)(nil)
	_ EventBusInterface     = (*EventBus)(nil)
)

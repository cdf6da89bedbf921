package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// CacheStore handles read-side caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	PendingCacheTTL = 30 * time.Second // Order system pushes changes, TTL bounds any missed invalidation
	StatsCacheTTL   = 60 * time.Second
)

// Key prefixes
const (
	pendingCachePrefix = "cache:pending:"
	pendingIndexKey    = "cache:pending:index" // order id -> cached date bucket
	pendingGenKey      = "cache:pending:generation"
	statsVersionKey    = "cache:stats:version"
	statsCachePrefix   = "cache:stats:"
)

// CachedOrderItem represents a cached order line.
type CachedOrderItem struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

// CachedPendingOrder represents a cached pending order.
type CachedPendingOrder struct {
	OrderID      string            `json:"order_id"`
	CustomerName string            `json:"customer_name"`
	TableNumber  string            `json:"table_number"`
	Amount       decimal.Decimal   `json:"amount"`
	Items        []CachedOrderItem `json:"items"`
	CreatedAt    time.Time         `json:"created_at"`
}

// CachedStats represents cached reconciliation stats for one day.
type CachedStats struct {
	Date              time.Time       `json:"date"`
	TotalPayments     int             `json:"total_payments"`
	MatchedPayments   int             `json:"matched_payments"`
	UnmatchedPayments int             `json:"unmatched_payments"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	CashOrders        int             `json:"cash_orders"`
	CashAmount        decimal.Decimal `json:"cash_amount"`
	OnlineOrders      int             `json:"online_orders"`
	OnlineAmount      decimal.Decimal `json:"online_amount"`
	PendingOrders     int             `json:"pending_orders"`
}

// GetPending retrieves the pending orders cached for a date.
// The boolean is false on a cache miss.
func (s *CacheStore) GetPending(ctx context.Context, date string) ([]CachedPendingOrder, bool, error) {
	data, err := s.client.Get(ctx, pendingCachePrefix+date).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, err
	}

	var orders []CachedPendingOrder
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, false, err
	}
	return orders, true, nil
}

// PendingGeneration returns the eviction counter. Read it before loading
// orders from the store and hand it to SetPending.
func (s *CacheStore) PendingGeneration(ctx context.Context) (int64, error) {
	gen, err := s.client.Get(ctx, pendingGenKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, err
	}
	return gen, nil
}

// SetPending stores the pending orders for a date and indexes their ids so a
// single order can later evict its bucket. The write is dropped, and false
// returned, when any eviction happened since generation was read: the list
// may then hold an order that has since been paid or cancelled.
func (s *CacheStore) SetPending(ctx context.Context, date string, generation int64, orders []CachedPendingOrder) (bool, error) {
	data, err := json.Marshal(orders)
	if err != nil {
		return false, err
	}

	stored := false
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, pendingGenKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, pendingCachePrefix+date, data, PendingCacheTTL)
			for _, o := range orders {
				pipe.HSet(ctx, pendingIndexKey, o.OrderID, date)
			}
			pipe.Expire(ctx, pendingIndexKey, 24*time.Hour)
			return nil
		})
		stored = err == nil
		return err
	}, pendingGenKey)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil // Evicted while we were writing
	}
	return stored, err
}

// RemovePendingOrder evicts the bucket holding the order. The generation is
// bumped even for unknown ids, since a reader may be about to cache it.
func (s *CacheStore) RemovePendingOrder(ctx context.Context, orderID string) error {
	if err := s.client.Incr(ctx, pendingGenKey).Err(); err != nil {
		return err
	}

	date, err := s.client.HGet(ctx, pendingIndexKey, orderID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, pendingCachePrefix+date)
	pipe.HDel(ctx, pendingIndexKey, orderID)
	_, err = pipe.Exec(ctx)
	return err
}

// InvalidatePending removes the cached bucket for a date.
func (s *CacheStore) InvalidatePending(ctx context.Context, date string) error {
	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, pendingGenKey)
	pipe.Del(ctx, pendingCachePrefix+date)
	_, err := pipe.Exec(ctx)
	return err
}

// GetStats retrieves cached stats for a date. Returns nil on a cache miss.
func (s *CacheStore) GetStats(ctx context.Context, date string) (*CachedStats, error) {
	key, err := s.statsKey(ctx, date)
	if err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var stats CachedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SetStats stores stats for a date under the current version.
func (s *CacheStore) SetStats(ctx context.Context, date string, stats *CachedStats) error {
	key, err := s.statsKey(ctx, date)
	if err != nil {
		return err
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, StatsCacheTTL).Err()
}

// InvalidateStats bumps the stats version, orphaning every cached day at once.
func (s *CacheStore) InvalidateStats(ctx context.Context) error {
	return s.client.Incr(ctx, statsVersionKey).Err()
}

func (s *CacheStore) statsKey(ctx context.Context, date string) (string, error) {
	version, err := s.client.Get(ctx, statsVersionKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return "", err
		}
		version = "0"
	}
	return statsCachePrefix + version + ":" + date, nil
}

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"reconcile/internal/config"
)

// NewRedisClient connects to Redis. The client backs order locks, the
// pending/stats caches, idempotency records and the event relay.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if nrApp != nil {
		client.AddHook(datastoreHook{})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// datastoreHook reports Redis commands as New Relic datastore segments,
// grouped by key namespace (lock, cache, idempotency).
type datastoreHook struct{}

func (datastoreHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (datastoreHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			defer startSegment(txn, cmd.Name(), namespaceOf(cmd)).End()
		}
		return next(ctx, cmd)
	}
}

func (datastoreHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil && len(cmds) > 0 {
			defer startSegment(txn, "pipeline", namespaceOf(cmds[0])).End()
		}
		return next(ctx, cmds)
	}
}

func startSegment(txn *newrelic.Transaction, op, collection string) *newrelic.DatastoreSegment {
	return &newrelic.DatastoreSegment{
		StartTime:  txn.StartSegmentNow(),
		Product:    newrelic.DatastoreRedis,
		Operation:  op,
		Collection: collection,
	}
}

// namespaceOf returns the first segment of the command's key, e.g. "lock"
// for lock:order:O1.
func namespaceOf(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return "redis"
	}
	key, ok := args[1].(string)
	if !ok || key == "" {
		return "redis"
	}
	if ns, _, found := strings.Cut(key, ":"); found {
		return ns
	}
	return key
}

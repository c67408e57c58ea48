// Package redisdedupe implements the dedupe ledger on Redis. SET NX is the
// uniqueness constraint here: exactly one claimant creates the key, and TTLs
// are native instead of lazily reaped.
package redisdedupe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campushive/flowkit/pkg/models"
)

const keyPrefix = "flowkit:dedupe:"

// Store implements persistence.DedupeStore on a Redis instance shared by all
// engine instances.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStore connects to Redis at the given URL (redis://...) and verifies the
// connection before returning.
func NewStore(ctx context.Context, logger *slog.Logger, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis dedupe store", "addr", opts.Addr, "db", opts.DB)

	return &Store{client: client, logger: logger}, nil
}

// Reserve claims the record's logical key with SET NX. A zero TTL keeps the
// key forever, matching the durable-ledger semantics of the SQL backends.
func (s *Store) Reserve(ctx context.Context, record *models.NodeDedupeRecord) (bool, error) {
	key := keyPrefix + record.LogicalKey()

	set, err := s.client.SetNX(ctx, key, record.ID, record.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve dedupe key %s: %w", record.LogicalKey(), err)
	}

	return set, nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

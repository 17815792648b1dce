package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPrefix = "crosspost:idem:"
	localEntries      = 4096
)

// IdempotencyStore remembers publish reports by (user, key). Redis is the
// shared store; the in-process LRU answers when Redis is absent or failing.
type IdempotencyStore struct {
	redis *redis.Client
	local *expirable.LRU[string, *model.PublishReport]
	ttl   time.Duration
}

// NewIdempotencyStore accepts a nil client for single-instance deployments.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{
		redis: client,
		local: expirable.NewLRU[string, *model.PublishReport](localEntries, nil, ttl),
		ttl:   ttl,
	}
}

func (s *IdempotencyStore) Get(ctx context.Context, userID, key string) (*model.PublishReport, bool, error) {
	k := idempotencyKey(userID, key)
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, k).Bytes()
		switch {
		case err == nil:
			var report model.PublishReport
			if err := json.Unmarshal(raw, &report); err != nil {
				return nil, false, fmt.Errorf("decode idempotent report: %w", err)
			}
			return &report, true, nil
		case errors.Is(err, redis.Nil):
			return nil, false, nil
		default:
			logger.GetLogger().WithField("error", err).Warn("Redis idempotency lookup failed; using local cache")
		}
	}
	report, ok := s.local.Get(k)
	return report, ok, nil
}

func (s *IdempotencyStore) Put(ctx context.Context, userID, key string, report *model.PublishReport) error {
	k := idempotencyKey(userID, key)
	s.local.Add(k, report)
	if s.redis == nil {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, k, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotent report: %w", err)
	}
	return nil
}

func idempotencyKey(userID, key string) string {
	return idempotencyPrefix + userID + ":" + key
}

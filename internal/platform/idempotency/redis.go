package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "idempotency:"

// RedisStore keeps records in Redis so replays work across instances. Expiry is delegated to
// Redis key TTLs.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption customises the Redis store.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the namespace prepended to every key.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	store := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	redisKey := s.key(key)

	record := newPendingRecord(key, fingerprint, now, ttl)
	payload, err := json.Marshal(record)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: encode record: %w", err)
	}
	created, err := s.client.SetNX(ctx, redisKey, payload, ttl).Result()
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: reserve: %w", err)
	}
	if created {
		return Reservation{State: ReservationStateNew, Record: record}, nil
	}

	existing, err := s.load(ctx, redisKey)
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET.
		return s.Reserve(ctx, key, fingerprint, now, ttl)
	}
	if err != nil {
		return Reservation{}, err
	}
	return reservationFor(existing, fingerprint)
}

func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	redisKey := s.key(key)

	record, err := s.load(ctx, redisKey)
	switch {
	case errors.Is(err, redis.Nil):
		record = Record{Key: key, Fingerprint: fingerprint}
	case err != nil:
		return err
	case record.Fingerprint != fingerprint:
		return ErrFingerprintMismatch
	}

	payload, err := json.Marshal(completeRecord(record, resp, now, ttl))
	if err != nil {
		return fmt.Errorf("idempotency: encode record: %w", err)
	}
	if err := s.client.Set(ctx, redisKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: save response: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key, fingerprint string) error {
	redisKey := s.key(key)
	record, err := s.load(ctx, redisKey)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.Fingerprint != fingerprint {
		return nil
	}
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

func (s *RedisStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (s *RedisStore) load(ctx context.Context, redisKey string) (Record, error) {
	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, redis.Nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("idempotency: load: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + recordID(key)
}

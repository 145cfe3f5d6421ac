package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "idempotency:"
	pendingMarker = "pending"

	DefaultTTL = 24 * time.Hour
)

var (
	ErrKeyNotFound = errors.New("idempotency key not found")
	ErrInProgress  = errors.New("request with the same idempotency key is in progress")
)

// Response stored to be replayed for retried requests
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis is not reachable. Err: %w", err)
	}

	return rdb, nil
}

type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Reserve marks key as in progress. Returns false if the key is already known
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, keyPrefix+key, pendingMarker, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}

	return ok, nil
}

// Get returns stored response, ErrInProgress if the first request is not completed yet
func (s *IdempotencyStore) Get(ctx context.Context, key string) (StoredResponse, error) {
	var resp StoredResponse

	value, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return resp, ErrKeyNotFound
	case err != nil:
		return resp, fmt.Errorf("get idempotency key: %w", err)
	case string(value) == pendingMarker:
		return resp, ErrInProgress
	}

	if err := json.Unmarshal(value, &resp); err != nil {
		return resp, fmt.Errorf("decode stored response: %w", err)
	}

	return resp, nil
}

// Complete stores response of the reserved key
func (s *IdempotencyStore) Complete(ctx context.Context, key string, resp StoredResponse) error {
	value, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode stored response: %w", err)
	}

	if err := s.rdb.Set(ctx, keyPrefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}

	return nil
}

// Release forgets the key so the request may be retried
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}

	return nil
}

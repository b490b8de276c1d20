package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/songzhibin97/xflow/internal/xjson"
)

const documentPrefix = "xflow:document:"

// RedisStorage is a Redis-backed implementation of the Storage interface.
type RedisStorage struct {
	client *redis.Client
}

// RedisOptions extends redis.Options with additional configuration.
type RedisOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	IdleTimeout  time.Duration
}

// NewRedisStorage creates a new RedisStorage instance with configurable options.
func NewRedisStorage(opts RedisOptions) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		IdleTimeout:  opts.IdleTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStorage{client: client}, nil
}

// withContextError handles context cancellation for operations that only return an error.
func withContextError(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

func documentKey(id string) string {
	return documentPrefix + id
}

// SaveRecord saves a record to Redis.
func (s *RedisStorage) SaveRecord(ctx context.Context, rec Record) error {
	return withContextError(ctx, func() error {
		key := documentKey(rec.Document.ID)
		data, err := xjson.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", key, err)
		}
		if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
			return fmt.Errorf("failed to set %s in Redis: %w", key, err)
		}
		return nil
	})
}

// GetRecord retrieves and unmarshals a record from Redis.
func (s *RedisStorage) GetRecord(ctx context.Context, id string) (Record, error) {
	return withContext(ctx, func() (Record, error) {
		key := documentKey(id)
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return Record{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
		} else if err != nil {
			return Record{}, fmt.Errorf("failed to get %s from Redis: %w", key, err)
		}

		var rec Record
		if err := xjson.Unmarshal(data, &rec); err != nil {
			return Record{}, fmt.Errorf("failed to unmarshal %s: %w", key, err)
		}
		return rec, nil
	})
}

// DeleteRecord removes a record from Redis.
func (s *RedisStorage) DeleteRecord(ctx context.Context, id string) error {
	return withContextError(ctx, func() error {
		key := documentKey(id)
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to delete %s from Redis: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: id=%s", ErrNotFound, id)
		}
		return nil
	})
}

// ListIDs scans the document keyspace and returns the ids in ascending order.
func (s *RedisStorage) ListIDs(ctx context.Context) ([]string, error) {
	return withContext(ctx, func() ([]string, error) {
		ids := []string{}
		iter := s.client.Scan(ctx, 0, documentPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			ids = append(ids, strings.TrimPrefix(iter.Val(), documentPrefix))
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("failed to scan document keys: %w", err)
		}
		sort.Strings(ids)
		return ids, nil
	})
}

// Close closes the Redis client connection.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

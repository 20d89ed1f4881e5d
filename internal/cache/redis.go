// Package cache provides the optional Redis tier in front of the persistent
// identifier cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cesargomez89/songpipe/internal/domain"
)

const keyPrefix = "songpipe:identifier:"

// Redis stores identifier records as JSON under songpipe:identifier:<key>.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Get returns the record for key, or nil on a miss.
func (r *Redis) Get(ctx context.Context, key string) (*domain.IdentifierRecord, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return decode(data)
}

// Set stores rec. Degraded records are ignored.
func (r *Redis) Set(ctx context.Context, rec *domain.IdentifierRecord) error {
	if rec == nil || rec.Degraded {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, keyPrefix+rec.NaturalKey, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", rec.NaturalKey, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func decode(data []byte) (*domain.IdentifierRecord, error) {
	var rec domain.IdentifierRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt cached identifier: %w", err)
	}
	return &rec, nil
}

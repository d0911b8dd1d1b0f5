// Package cache stores assembled menus in Redis, keyed by cafe.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// MenuCache is consulted before assembling a menu and invalidated after every
// successful menu write. Entries are keyed by a per-cafe generation: callers
// read Generation before loading the menu and pass it to Get and Set, so a
// menu loaded before an Invalidate is stored under a key nobody reads.
type MenuCache interface {
	Generation(ctx context.Context, cafeID string) (int64, error)
	Get(ctx context.Context, cafeID string, gen int64, dest any) (bool, error)
	Set(ctx context.Context, cafeID string, gen int64, value any) error
	Invalidate(ctx context.Context, cafeID string) error
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings; the caller decides whether a failure is fatal.
func NewRedis(ctx context.Context, addr, password string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func menuKey(cafeID string, gen int64) string {
	return "cafe:" + cafeID + ":menu:" + strconv.FormatInt(gen, 10)
}

func genKey(cafeID string) string {
	return "cafe:" + cafeID + ":menu:gen"
}

// Generation is 0 until the first Invalidate.
func (r *Redis) Generation(ctx context.Context, cafeID string) (int64, error) {
	gen, err := r.client.Get(ctx, genKey(cafeID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *Redis) Get(ctx context.Context, cafeID string, gen int64, dest any) (bool, error) {
	val, err := r.client.Get(ctx, menuKey(cafeID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, cafeID string, gen int64, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, menuKey(cafeID, gen), data, r.ttl).Err()
}

// Invalidate bumps the generation; entries of older generations expire on
// their own.
func (r *Redis) Invalidate(ctx context.Context, cafeID string) error {
	return r.client.Incr(ctx, genKey(cafeID)).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop is used when no Redis address is configured.
type Nop struct{}

func (Nop) Generation(context.Context, string) (int64, error)     { return 0, nil }
func (Nop) Get(context.Context, string, int64, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, int64, any) error         { return nil }
func (Nop) Invalidate(context.Context, string) error              { return nil }

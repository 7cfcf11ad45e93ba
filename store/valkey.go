package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"profile-service/config"

	"github.com/redis/go-redis/v9"
)

// ValkeyLoginLimiter counts failed logins in Valkey so every instance shares
// the same window. Keys expire on their own once the window passes.
type ValkeyLoginLimiter struct {
	client      *redis.Client
	prefix      string
	maxAttempts int
	window      time.Duration
}

func NewValkeyLoginLimiter(ctx context.Context, cfg config.ValkeyConfig, login config.LoginConfig) (*ValkeyLoginLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping failed: %w", err)
	}

	return newValkeyLoginLimiter(client, cfg.Prefix, login), nil
}

func newValkeyLoginLimiter(client *redis.Client, prefix string, login config.LoginConfig) *ValkeyLoginLimiter {
	return &ValkeyLoginLimiter{
		client:      client,
		prefix:      prefix,
		maxAttempts: login.MaxAttempts,
		window:      login.Window,
	}
}

func (v *ValkeyLoginLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	count, err := v.client.Get(ctx, v.key(key)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read login attempts: %w", err)
	}
	return count >= v.maxAttempts, nil
}

func (v *ValkeyLoginLimiter) RecordFailure(ctx context.Context, key string) error {
	count, err := v.client.Incr(ctx, v.key(key)).Result()
	if err != nil {
		return fmt.Errorf("count login attempt: %w", err)
	}
	if count == 1 {
		if err := v.client.Expire(ctx, v.key(key), v.window).Err(); err != nil {
			return fmt.Errorf("expire login attempts: %w", err)
		}
	}
	return nil
}

func (v *ValkeyLoginLimiter) Reset(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, v.key(key)).Err(); err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func (v *ValkeyLoginLimiter) Close() error {
	return v.client.Close()
}

func (v *ValkeyLoginLimiter) key(id string) string {
	return fmt.Sprintf("%s:%s", v.prefix, id)
}

// Package ratelimit throttles repeated credential failures in Redis. Like
// the OTP counter, the lockout window is the key's TTL, so records expire
// without a sweeper.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const loginPrefix = "login_throttle:"

// LoginThrottle counts failed login attempts per hashed phone number and
// rejects further attempts once the ceiling is reached inside the window.
type LoginThrottle struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	logger *zap.Logger
}

func NewLoginThrottle(rdb *redis.Client, limit int64, window time.Duration, logger *zap.Logger) *LoginThrottle {
	return &LoginThrottle{rdb: rdb, limit: limit, window: window, logger: logger}
}

// Check rejects the attempt when the identifier has already failed limit
// times inside the current window.
func (t *LoginThrottle) Check(ctx context.Context, identifier string) error {
	attempts, err := t.rdb.Get(ctx, loginPrefix+identifier).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return apperr.Wrap(apperr.Internal, "reading login throttle", err)
	}

	if attempts >= t.limit {
		t.logger.Warn("login attempt ceiling reached", zap.Int64("attempts", attempts))
		return apperr.New(apperr.TooManyRequests, "too many login attempts, try again later")
	}
	return nil
}

// Fail records one failed attempt. The first failure starts the window.
func (t *LoginThrottle) Fail(ctx context.Context, identifier string) error {
	key := loginPrefix + identifier
	attempts, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		return apperr.Wrap(apperr.Internal, "recording login failure", err)
	}
	if attempts == 1 {
		if err := t.rdb.Expire(ctx, key, t.window).Err(); err != nil {
			return apperr.Wrap(apperr.Internal, "setting login throttle window", err)
		}
	}
	return nil
}

// Clear drops the record after a successful login.
func (t *LoginThrottle) Clear(ctx context.Context, identifier string) error {
	if err := t.rdb.Del(ctx, loginPrefix+identifier).Err(); err != nil {
		return apperr.Wrap(apperr.Internal, "clearing login throttle", err)
	}
	return nil
}

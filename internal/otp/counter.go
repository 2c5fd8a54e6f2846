// Package otp enforces the OTP challenge lockout policy. Counting is
// deliberately decoupled from the delivery provider so the ceiling holds
// even if the provider has no native rate limiting.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moforemmanuel/SMSwithoutborders-BE/internal/apperr"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const counterPrefix = "otp_counter:"

// Counter is one rate-limit record keyed by (unique identifier, user).
type Counter struct {
	ID       string
	UniqueID string
	UserID   string
	Attempts int64
}

// CounterStore tracks attempts in Redis. The lockout window is the key's
// TTL, so expiry clears the record without a sweeper.
type CounterStore struct {
	rdb    *redis.Client
	limit  int64
	logger *zap.Logger
}

func NewCounterStore(rdb *redis.Client, limit int64, logger *zap.Logger) *CounterStore {
	return &CounterStore{rdb: rdb, limit: limit, logger: logger}
}

// CheckCount fetches (or lazily creates) the counter. Once the ceiling is
// reached and the window has not expired, further challenges are rejected.
func (s *CounterStore) CheckCount(ctx context.Context, uniqueID, userID string) (*Counter, error) {
	key := counterKey(uniqueID, userID)

	attempts, err := s.rdb.Get(ctx, key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperr.Wrap(apperr.Internal, "reading OTP counter", err)
	}

	if attempts >= s.limit {
		s.logger.Warn("OTP attempt ceiling reached",
			zap.String("user_id", userID),
			zap.Int64("attempts", attempts),
		)
		return nil, apperr.New(apperr.TooManyRequests, "too many OTP requests, try again later")
	}

	return &Counter{ID: key, UniqueID: uniqueID, UserID: userID, Attempts: attempts}, nil
}

// AddCount records a new challenge and (re)computes the lockout window,
// returning when it expires. The increment is atomic; concurrent challenges
// for the same identifier cannot lose updates.
func (s *CounterStore) AddCount(ctx context.Context, c *Counter) (time.Time, error) {
	attempts, err := s.rdb.Incr(ctx, c.ID).Result()
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.Internal, "incrementing OTP counter", err)
	}
	c.Attempts = attempts

	window := lockoutWindow(attempts)
	if err := s.rdb.Expire(ctx, c.ID, window).Err(); err != nil {
		return time.Time{}, apperr.Wrap(apperr.Internal, "setting OTP counter expiry", err)
	}
	return time.Now().Add(window), nil
}

// DeleteCount clears the counter after a successful verification.
func (s *CounterStore) DeleteCount(ctx context.Context, counterID string) error {
	if err := s.rdb.Del(ctx, counterID).Err(); err != nil {
		return apperr.Wrap(apperr.Internal, "deleting OTP counter", err)
	}
	return nil
}

// lockoutWindow escalates with the attempt count: early retries recover in
// a minute, persistent ones wait out a day.
func lockoutWindow(attempts int64) time.Duration {
	switch {
	case attempts <= 2:
		return 1 * time.Minute
	case attempts == 3:
		return 10 * time.Minute
	case attempts == 4:
		return 1 * time.Hour
	default:
		return 24 * time.Hour
	}
}

func counterKey(uniqueID, userID string) string {
	return fmt.Sprintf("%s%s:%s", counterPrefix, uniqueID, userID)
}

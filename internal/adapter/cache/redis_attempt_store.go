package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slava-viktorov/simple-knowledge-base/internal/repository"
)

// RedisAttemptStore counts failed login attempts per email in Redis. The
// counter expires with the lockout window, so a lockout clears itself.
type RedisAttemptStore struct {
	client redis.UniversalClient
}

var _ repository.LoginAttemptStore = (*RedisAttemptStore)(nil)

// NewRedisAttemptStore constructs a Redis-backed attempt store.
func NewRedisAttemptStore(client redis.UniversalClient) *RedisAttemptStore {
	return &RedisAttemptStore{client: client}
}

func attemptKey(email string) string {
	return "login_attempts:" + email
}

// RegisterFailure increments the failure counter and returns the new count.
// The expiry is set on the first failure only, so the window is measured from
// the start of a burst.
func (s *RedisAttemptStore) RegisterFailure(ctx context.Context, email string, window time.Duration) (int64, error) {
	key := attemptKey(email)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment login attempts: %w", err)
	}
	if count == 1 && window > 0 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("expire login attempts: %w", err)
		}
	}
	return count, nil
}

// Reset clears the failure counter after a successful login.
func (s *RedisAttemptStore) Reset(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, attemptKey(email)).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

// FailureCount returns the current number of failures inside the window.
func (s *RedisAttemptStore) FailureCount(ctx context.Context, email string) (int64, error) {
	count, err := s.client.Get(ctx, attemptKey(email)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("load login attempts: %w", err)
	}
	return count, nil
}

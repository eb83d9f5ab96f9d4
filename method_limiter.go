package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const methodLimiterKeyPrefix = "alk"

var errLimiterBackend = errors.New("limiter backend unavailable")

// methodLimiter bounds wrong TOTP and backup-code submissions against a
// confirmed secret. Confirmed records persist until the method is
// disabled, so the wrong-try bound cannot live on the record itself;
// it lives in a counter key that evicts after the cooldown.
type methodLimiter struct {
	redis    redis.UniversalClient
	maxTries int
	cooldown time.Duration
}

func newMethodLimiter(client redis.UniversalClient, maxTries int, cooldown time.Duration) *methodLimiter {
	return &methodLimiter{redis: client, maxTries: maxTries, cooldown: cooldown}
}

func (l *methodLimiter) key(accountID string, method Method) string {
	return methodLimiterKeyPrefix + ":" + accountID + ":" + method.String()
}

// Check reports whether the account is currently locked out for the method.
func (l *methodLimiter) Check(ctx context.Context, accountID string, method Method) (bool, error) {
	count, err := l.redis.Get(ctx, l.key(accountID, method)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", errLimiterBackend, err)
	}
	return count >= int64(l.maxTries), nil
}

// RecordFailure counts one wrong submission. INCR is atomic, so
// concurrent failures cannot lose counts; the bound is enforced by
// [methodLimiter.Check] on the next attempt.
func (l *methodLimiter) RecordFailure(ctx context.Context, accountID string, method Method) error {
	key := l.key(accountID, method)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errLimiterBackend, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", errLimiterBackend, err)
		}
	}
	return nil
}

// Reset clears the counter after a successful verification.
func (l *methodLimiter) Reset(ctx context.Context, accountID string, method Method) error {
	if err := l.redis.Del(ctx, l.key(accountID, method)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errLimiterBackend, err)
	}
	return nil
}

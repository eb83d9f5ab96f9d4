package authcore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const backupCodeKeyPrefix = "abk"

var errBackupBackend = errors.New("backup code backend unavailable")

// backupCodeStore keeps one Redis set of code hashes per account. SREM is
// the consumption primitive: removal either succeeds for exactly one
// caller or finds nothing, which is the whole single-use guarantee.
type backupCodeStore struct {
	redis redis.UniversalClient
}

func newBackupCodeStore(client redis.UniversalClient) *backupCodeStore {
	return &backupCodeStore{redis: client}
}

func (s *backupCodeStore) key(accountID string) string {
	return backupCodeKeyPrefix + ":" + accountID
}

// Replace swaps the account's batch for a new one. ttl > 0 bounds the
// batch's life (pending enrollment); Persist lifts the bound on confirm.
func (s *backupCodeStore) Replace(ctx context.Context, accountID string, hashes [][32]byte, ttl time.Duration) error {
	key := s.key(accountID)
	members := make([]interface{}, 0, len(hashes))
	for _, h := range hashes {
		members = append(members, hex.EncodeToString(h[:]))
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errBackupBackend, err)
	}
	return nil
}

// Persist removes the batch's expiry once enrollment is confirmed.
func (s *backupCodeStore) Persist(ctx context.Context, accountID string) error {
	if err := s.redis.Persist(ctx, s.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errBackupBackend, err)
	}
	return nil
}

// Consume atomically burns one code hash. The boolean reports whether the
// hash was present; a second call with the same hash always reports false.
func (s *backupCodeStore) Consume(ctx context.Context, accountID string, hash [32]byte) (bool, error) {
	n, err := s.redis.SRem(ctx, s.key(accountID), hex.EncodeToString(hash[:])).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errBackupBackend, err)
	}
	return n > 0, nil
}

// Remaining reports how many codes are left unconsumed.
func (s *backupCodeStore) Remaining(ctx context.Context, accountID string) (int, error) {
	n, err := s.redis.SCard(ctx, s.key(accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBackupBackend, err)
	}
	return int(n), nil
}

// Delete discards the whole batch.
func (s *backupCodeStore) Delete(ctx context.Context, accountID string) error {
	if err := s.redis.Del(ctx, s.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errBackupBackend, err)
	}
	return nil
}

package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no session row matches the lookup.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrDuplicateSession is returned when an insert collides with an
// existing row, which indicates an id or token-hash reuse bug upstream.
var ErrDuplicateSession = errors.New("duplicate session row")

// Store is the Redis-backed session store. Every row is written under its
// session id with two token-hash index keys carrying the same TTL, plus a
// per-account index set, so the row and its lookups expire together.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewStore creates a [Store]. prefix namespaces the row keys; now may be
// nil for the wall clock.
func NewStore(client redis.UniversalClient, prefix string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{redis: client, prefix: prefix, now: now}
}

func (s *Store) rowKey(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) accessKey(hash [32]byte) string {
	return "aat:" + hex.EncodeToString(hash[:])
}

func (s *Store) refreshKey(hash [32]byte) string {
	return "art:" + hex.EncodeToString(hash[:])
}

func (s *Store) accountKey(accountID string) string {
	return "au:" + accountID
}

// Insert persists a new session row atomically with both token-hash index
// keys. The row key is written NX: a collision reports
// [ErrDuplicateSession] and nothing usable is left behind.
func (s *Store) Insert(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	var created *redis.BoolCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, s.rowKey(sess.ID), data, ttl)
		pipe.Set(ctx, s.accessKey(sess.AccessHash), sess.ID, ttl)
		pipe.Set(ctx, s.refreshKey(sess.RefreshHash), sess.ID, ttl)
		pipe.SAdd(ctx, s.accountKey(sess.AccountID), sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ok, _ := created.Result(); !ok {
		// The index keys now point at a row we did not create; remove them
		// so the half-insert cannot resolve to anything.
		_, _ = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.accessKey(sess.AccessHash), s.refreshKey(sess.RefreshHash))
			return nil
		})
		return ErrDuplicateSession
	}
	return nil
}

// GetByAccessHash resolves a session row through the access-token index.
func (s *Store) GetByAccessHash(ctx context.Context, hash [32]byte) (*Session, error) {
	return s.getByIndex(ctx, s.accessKey(hash))
}

// GetByRefreshHash resolves a session row through the refresh-token index.
func (s *Store) GetByRefreshHash(ctx context.Context, hash [32]byte) (*Session, error) {
	return s.getByIndex(ctx, s.refreshKey(hash))
}

// ClaimByRefreshHash resolves a session row through the refresh-token
// index and removes the index entry in the same command. GETDEL makes
// the claim atomic: of any number of concurrent claims for the same
// hash, exactly one sees the row and the rest get [ErrNotFound].
func (s *Store) ClaimByRefreshHash(ctx context.Context, hash [32]byte) (*Session, error) {
	sessionID, err := s.redis.GetDel(ctx, s.refreshKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.Get(ctx, sessionID)
}

func (s *Store) getByIndex(ctx context.Context, indexKey string) (*Session, error) {
	sessionID, err := s.redis.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.Get(ctx, sessionID)
}

// Get fetches and decodes one row by session id, enforcing expiry lazily:
// a row past its stored ExpiresAt is deleted and reported as not found
// even if Redis has not evicted it yet.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.rowKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if s.now().Unix() > sess.ExpiresAt {
		_ = s.Delete(ctx, sess)
		return nil, ErrNotFound
	}
	return sess, nil
}

// Delete removes a row together with both index keys and its account-set
// membership. Returns [ErrNotFound] when the row was already gone, so
// callers can distinguish revocation from repeat deletion.
func (s *Store) Delete(ctx context.Context, sess *Session) error {
	var deleted *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.rowKey(sess.ID))
		pipe.Del(ctx, s.accessKey(sess.AccessHash), s.refreshKey(sess.RefreshHash))
		pipe.SRem(ctx, s.accountKey(sess.AccountID), sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n, _ := deleted.Result(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteOwned deletes the row only when it belongs to the given account.
// Ownership is part of the delete condition, not a separate check the
// caller could skip.
func (s *Store) DeleteOwned(ctx context.Context, accountID, sessionID string) error {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.AccountID != accountID {
		return ErrNotFound
	}
	return s.Delete(ctx, sess)
}

// ListForAccount returns every live row for an account. Stale ids left in
// the index set by TTL eviction are pruned as they are encountered.
func (s *Store) ListForAccount(ctx context.Context, accountID string) ([]*Session, error) {
	ids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.rowKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		sess, decErr := Decode(data)
		if decErr != nil {
			return nil, decErr
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		_ = s.redis.SRem(ctx, s.accountKey(accountID), stale...).Err()
	}
	return sessions, nil
}

// DeleteAllForAccount removes every session for an account and returns
// how many rows were destroyed.
func (s *Store) DeleteAllForAccount(ctx context.Context, accountID string) (int, error) {
	sessions, err := s.ListForAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}

	var deleted int
	for _, sess := range sessions {
		if err := s.Delete(ctx, sess); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

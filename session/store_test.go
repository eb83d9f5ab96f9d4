package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type storeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *storeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *storeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(t *testing.T) (*Store, *storeClock) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &storeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(client, "as", clock.now), clock
}

func newSession(clock *storeClock, id, accountID string) *Session {
	now := clock.now().Unix()
	return &Session{
		ID:          id,
		AccountID:   accountID,
		Role:        "user",
		AccessHash:  sha256.Sum256([]byte("access-" + id)),
		RefreshHash: sha256.Sum256([]byte("refresh-" + id)),
		CreatedAt:   now,
		ExpiresAt:   now + 3600,
	}
}

func TestStoreInsertAndLookup(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	sess := newSession(clock, "sess-1", "acct-1")
	if err := store.Insert(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	byAccess, err := store.GetByAccessHash(ctx, sess.AccessHash)
	if err != nil {
		t.Fatalf("GetByAccessHash: %v", err)
	}
	if byAccess.ID != "sess-1" || byAccess.AccountID != "acct-1" {
		t.Fatalf("row = %+v", byAccess)
	}

	byRefresh, err := store.GetByRefreshHash(ctx, sess.RefreshHash)
	if err != nil {
		t.Fatalf("GetByRefreshHash: %v", err)
	}
	if byRefresh.ID != "sess-1" {
		t.Fatalf("row = %+v", byRefresh)
	}

	if _, err := store.GetByAccessHash(ctx, sha256.Sum256([]byte("unknown"))); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown hash: got %v", err)
	}
}

func TestStoreInsertDuplicate(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	sess := newSession(clock, "sess-1", "acct-1")
	if err := store.Insert(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	dup := newSession(clock, "sess-1", "acct-1")
	dup.AccessHash = sha256.Sum256([]byte("other-access"))
	dup.RefreshHash = sha256.Sum256([]byte("other-refresh"))
	if err := store.Insert(ctx, dup, time.Hour); !errors.Is(err, ErrDuplicateSession) {
		t.Fatalf("duplicate insert: got %v", err)
	}

	// The loser's index keys were cleaned up; the original row stands.
	if _, err := store.GetByAccessHash(ctx, dup.AccessHash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("loser index: got %v", err)
	}
	if _, err := store.GetByAccessHash(ctx, sess.AccessHash); err != nil {
		t.Fatalf("original row: %v", err)
	}
}

func TestStoreClaimByRefreshHash(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	sess := newSession(clock, "sess-1", "acct-1")
	if err := store.Insert(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	claimed, err := store.ClaimByRefreshHash(ctx, sess.RefreshHash)
	if err != nil {
		t.Fatalf("ClaimByRefreshHash: %v", err)
	}
	if claimed.ID != "sess-1" {
		t.Fatalf("row = %+v", claimed)
	}

	// The claim consumed the refresh index; a second claim finds nothing.
	if _, err := store.ClaimByRefreshHash(ctx, sess.RefreshHash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second claim: got %v", err)
	}

	// The row itself survives the claim until it is deleted outright.
	if _, err := store.GetByAccessHash(ctx, sess.AccessHash); err != nil {
		t.Fatalf("row after claim: %v", err)
	}
	if err := store.Delete(ctx, claimed); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.GetByAccessHash(ctx, sess.AccessHash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("row after delete: got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	sess := newSession(clock, "sess-1", "acct-1")
	if err := store.Insert(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Delete(ctx, sess); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// Row and both indexes are gone together.
	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: got %v", err)
	}
	if _, err := store.GetByAccessHash(ctx, sess.AccessHash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("access index after delete: got %v", err)
	}
	if _, err := store.GetByRefreshHash(ctx, sess.RefreshHash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("refresh index after delete: got %v", err)
	}

	if err := store.Delete(ctx, sess); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: got %v", err)
	}
}

func TestStoreDeleteOwned(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	sess := newSession(clock, "sess-1", "acct-1")
	if err := store.Insert(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := store.DeleteOwned(ctx, "acct-2", "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete: got %v", err)
	}
	if _, err := store.Get(ctx, "sess-1"); err != nil {
		t.Fatalf("row must survive a foreign delete: %v", err)
	}

	if err := store.DeleteOwned(ctx, "acct-1", "sess-1"); err != nil {
		t.Fatalf("DeleteOwned: %v", err)
	}
	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete: got %v", err)
	}
}

func TestStoreLazyExpiry(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	sess := newSession(clock, "sess-1", "acct-1")
	if err := store.Insert(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// The Redis TTL has not fired, but the stored expiry governs.
	clock.advance(2 * time.Hour)
	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired row: got %v", err)
	}
	if _, err := store.GetByAccessHash(ctx, sess.AccessHash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired row via index: got %v", err)
	}
}

func TestStoreListForAccount(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sess := newSession(clock, fmt.Sprintf("sess-%d", i), "acct-1")
		if err := store.Insert(ctx, sess, time.Hour); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	other := newSession(clock, "sess-other", "acct-2")
	if err := store.Insert(ctx, other, time.Hour); err != nil {
		t.Fatalf("Insert other: %v", err)
	}

	rows, err := store.ListForAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ListForAccount: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}
	for _, row := range rows {
		if row.AccountID != "acct-1" {
			t.Fatalf("foreign row listed: %+v", row)
		}
	}

	rows, err = store.ListForAccount(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListForAccount empty: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("len = %d, want 0", len(rows))
	}
}

func TestStoreDeleteAllForAccount(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sess := newSession(clock, fmt.Sprintf("sess-%d", i), "acct-1")
		if err := store.Insert(ctx, sess, time.Hour); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	other := newSession(clock, "sess-other", "acct-2")
	if err := store.Insert(ctx, other, time.Hour); err != nil {
		t.Fatalf("Insert other: %v", err)
	}

	deleted, err := store.DeleteAllForAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("DeleteAllForAccount: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("deleted = %d, want 3", deleted)
	}

	rows, err := store.ListForAccount(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ListForAccount: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("len = %d, want 0", len(rows))
	}

	// The other account is untouched.
	if _, err := store.Get(ctx, "sess-other"); err != nil {
		t.Fatalf("other account row: %v", err)
	}
}

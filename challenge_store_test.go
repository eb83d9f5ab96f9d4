package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newChallengeStoreForTest(t *testing.T) (*challengeStore, *testClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	clock := newTestClock()
	return newChallengeStore(client, enrollKeyPrefix, clock.Now), clock
}

// The store must judge expiry by its injected clock, never the wall
// clock. The test clock sits years away from real time, so any stray
// wall-clock comparison would misclassify the record immediately.
func TestChallengeStoreFailureUsesInjectedClock(t *testing.T) {
	store, clock := newChallengeStoreForTest(t)
	ctx := context.Background()

	now := clock.Now().Unix()
	rec := &challengeRecord{
		AccountID: "acct-1",
		Method:    MethodMailOTP,
		State:     challengePending,
		CreatedAt: now,
		ExpiresAt: now + 600,
	}
	if err := store.Create(ctx, rec, 10*time.Minute, false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.RecordFailure(ctx, "acct-1", MethodMailOTP); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	got, err := store.Get(ctx, "acct-1", MethodMailOTP)
	if err != nil {
		t.Fatalf("Get after failure: %v", err)
	}
	if got.WrongTries != 1 {
		t.Fatalf("WrongTries = %d, want 1", got.WrongTries)
	}
}

func TestChallengeStoreFailureOnlyCounts(t *testing.T) {
	store, clock := newChallengeStoreForTest(t)
	ctx := context.Background()

	now := clock.Now().Unix()
	rec := &challengeRecord{
		AccountID: "acct-1",
		Method:    MethodSMSOTP,
		State:     challengePending,
		CreatedAt: now,
		ExpiresAt: now + 600,
	}
	if err := store.Create(ctx, rec, 10*time.Minute, false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The counter climbs freely; the store never destroys the record on
	// its own, that decision belongs to the caller.
	for i := 0; i < 5; i++ {
		if err := store.RecordFailure(ctx, "acct-1", MethodSMSOTP); err != nil {
			t.Fatalf("RecordFailure %d: %v", i+1, err)
		}
	}

	got, err := store.Get(ctx, "acct-1", MethodSMSOTP)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.WrongTries != 5 {
		t.Fatalf("WrongTries = %d, want 5", got.WrongTries)
	}
}

func TestChallengeStoreFailureExpiredRecord(t *testing.T) {
	store, clock := newChallengeStoreForTest(t)
	ctx := context.Background()

	now := clock.Now().Unix()
	rec := &challengeRecord{
		AccountID: "acct-1",
		Method:    MethodMailOTP,
		State:     challengePending,
		CreatedAt: now,
		ExpiresAt: now + 60,
	}
	if err := store.Create(ctx, rec, time.Minute, false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if err := store.RecordFailure(ctx, "acct-1", MethodMailOTP); !errors.Is(err, errChallengeExpired) {
		t.Fatalf("RecordFailure on expired record: got %v", err)
	}
	if _, err := store.Get(ctx, "acct-1", MethodMailOTP); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expired record must be gone: got %v", err)
	}
}

package authcore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memAccountStore struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: make(map[string]Account)}
}

func (s *memAccountStore) put(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
}

func (s *memAccountStore) GetAccount(_ context.Context, accountID string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (s *memAccountStore) SetMethodEnabled(_ context.Context, accountID string, method Method, enabled bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if a.MFA == nil {
		a.MFA = make(map[Method]MethodStatus)
	}
	if enabled {
		a.MFA[method] = MethodStatus{Enabled: true, EnabledAt: at}
	} else {
		a.MFA[method] = MethodStatus{}
	}
	s.accounts[accountID] = a
	return nil
}

type sentCode struct {
	method Method
	code   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentCode
}

func (n *recordingNotifier) SendCode(_ context.Context, _ Account, method Method, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentCode{method: method, code: code})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) sentCode {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("no code was dispatched")
	}
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type testHarness struct {
	engine   *Engine
	accounts *memAccountStore
	notifier *recordingNotifier
	clock    *testClock
	redis    *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-0123456789abcdef")
	cfg.Token.VerificationSecret = []byte("test-verification-0123456789abcdef")
	cfg.Token.ActivationSecret = []byte("test-activation-sec-0123456789abcdef")
	cfg.Token.ResetSecret = []byte("test-reset-secret-0123456789abcdef")
	cfg.Challenge.SealKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func newTestEngine(t *testing.T) *testHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	accounts := newMemAccountStore()
	notifier := &recordingNotifier{}
	clock := newTestClock()

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(client).
		WithAccountStore(accounts).
		WithNotifier(notifier).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testHarness{
		engine:   engine,
		accounts: accounts,
		notifier: notifier,
		clock:    clock,
		redis:    mr,
	}
}

func (h *testHarness) addAccount(t *testing.T, id string, methods ...Method) Account {
	t.Helper()
	a := Account{
		ID:       id,
		Role:     "user",
		Active:   true,
		Verified: true,
		MFA:      make(map[Method]MethodStatus),
	}
	for _, m := range methods {
		a.MFA[m] = MethodStatus{Enabled: true, EnabledAt: h.clock.Now()}
	}
	h.accounts.put(a)
	return a
}

// enableMailOTP walks the real enrollment flow so the stored state
// matches what production enrollment leaves behind.
func (h *testHarness) enableMailOTP(t *testing.T, accountID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.engine.InitiateEnrollment(ctx, accountID, MethodMailOTP, false); err != nil {
		t.Fatalf("InitiateEnrollment: %v", err)
	}
	if err := h.engine.ConfirmEnrollment(ctx, accountID, MethodMailOTP, h.notifier.last(t).code); err != nil {
		t.Fatalf("ConfirmEnrollment: %v", err)
	}
}

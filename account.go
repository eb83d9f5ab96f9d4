package authcore

import (
	"context"
	"time"
)

// MethodStatus is the per-method enrollment flag pair carried on an
// [Account]. EnabledAt is set when enrollment is confirmed and cleared
// when the method is disabled.
type MethodStatus struct {
	Enabled   bool
	EnabledAt time.Time
}

// Account is the slice of the external account entity this core consumes.
// The engine reads the lifecycle flags and the per-method enrollment
// state; the only field it ever writes back (through
// [AccountStore.SetMethodEnabled]) is a method's enabled flag.
type Account struct {
	ID       string
	Role     string
	Active   bool
	Verified bool
	Deleted  bool
	MFA      map[Method]MethodStatus
}

// MethodEnabled reports whether the given method is switched on.
func (a Account) MethodEnabled(m Method) bool {
	return a.MFA[m].Enabled
}

// EnabledMethods returns the enabled methods in stable [Methods] order.
func (a Account) EnabledMethods() []Method {
	var out []Method
	for _, m := range Methods {
		if a.MFA[m].Enabled {
			out = append(out, m)
		}
	}
	return out
}

// AccountStore is the read side of the external account entity plus the
// single write this core is allowed to make.
type AccountStore interface {
	GetAccount(ctx context.Context, accountID string) (Account, error)
	SetMethodEnabled(ctx context.Context, accountID string, method Method, enabled bool, at time.Time) error
}

// Notifier dispatches a plaintext one-time code to the account's mail
// address or phone number. Delivery is fire-and-forget from the core's
// perspective: a failure is recorded in the audit stream but never fails
// the operation that generated the code.
type Notifier interface {
	SendCode(ctx context.Context, account Account, method Method, code string) error
}

// NoOpNotifier discards every code. It is the default when no notifier is
// configured and is only sensible for TOTP/backup-only deployments and tests.
type NoOpNotifier struct{}

// SendCode implements [Notifier].
func (NoOpNotifier) SendCode(context.Context, Account, Method, string) error { return nil }

// Clock supplies the current time. Injectable so TTL and expiry behavior
// is deterministic under test.
type Clock func() time.Time

package authcore

import (
	"context"
	"errors"

	"github.com/solvrey/authcore/internal/audit"
	"github.com/solvrey/authcore/session"
	"github.com/solvrey/authcore/token"
)

// Engine is the authentication core. Construct one through [Builder];
// after Build it holds only immutable configuration and store handles and
// is safe for concurrent use.
type Engine struct {
	config   Config
	accounts AccountStore
	notifier Notifier

	tokens      *token.Issuer
	sessions    *session.Store
	enrollments *challengeStore
	logins      *challengeStore
	backupCodes *backupCodeStore
	limiter     *methodLimiter

	audit   *audit.Dispatcher
	metrics *Metrics
	clock   Clock
}

// Close flushes the audit dispatcher. The engine is unusable afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded on a full
// buffer since startup.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() map[MetricID]uint64 {
	if e == nil {
		return map[MetricID]uint64{}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// loadAccount fetches the account and applies the lifecycle gate shared
// by every operation that acts on behalf of an account.
func (e *Engine) loadAccount(ctx context.Context, accountID string) (Account, error) {
	account, err := e.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, storeErr(err)
	}
	if account.Deleted || !account.Active {
		return Account{}, ErrAccountInactive
	}
	return account, nil
}

func (e *Engine) otpStrategy() otpStrategy {
	return otpStrategy{digits: e.config.Challenge.OTPDigits}
}

func (e *Engine) totpStrategy() totpStrategy {
	return totpStrategy{issuer: e.config.Challenge.TOTPIssuer, sealKey: e.config.Challenge.SealKey}
}

func (e *Engine) backupStrategy() backupStrategy {
	return backupStrategy{count: e.config.Backup.Count, length: e.config.Backup.Length}
}

// dispatchCode hands a freshly generated code to the notifier. Delivery
// is fire-and-forget: failures are audited and swallowed.
func (e *Engine) dispatchCode(ctx context.Context, account Account, method Method, code string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.SendCode(ctx, account, method, code); err != nil {
		e.emitAudit(ctx, auditEventDeliveryFailed, false, account.ID, method, err, nil)
	}
}

func (e *Engine) nowUnix() int64 {
	return e.clock().Unix()
}

package authcore

import (
	"context"
	"errors"
)

// Provision is the enrollment material handed back by
// [Engine.InitiateEnrollment]. Which fields are set depends on the
// method: TOTP fills Secret and URI, backup fills Codes, and the
// deliverable methods fill nothing — their code travels through the
// [Notifier] only.
type Provision struct {
	Method Method
	Secret string
	URI    string
	Codes  []string
}

// InitiateEnrollment starts enrolling a method: it generates the secret
// material, stores a pending record under the enrollment TTL, and for
// mail/SMS dispatches the one-time code. A second initiation while one is
// pending reports [ErrEnrollmentPending] unless restart is set, in which
// case the pending record is replaced with fresh material.
func (e *Engine) InitiateEnrollment(ctx context.Context, accountID string, method Method, restart bool) (*Provision, error) {
	if e == nil || e.enrollments == nil {
		return nil, ErrEngineNotReady
	}
	if !method.valid() {
		return nil, ErrMethodUnsupported
	}

	account, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.MethodEnabled(method) {
		return nil, ErrMethodEnabled
	}

	now := e.nowUnix()
	rec := &challengeRecord{
		AccountID: accountID,
		Method:    method,
		State:     challengePending,
		CreatedAt: now,
		ExpiresAt: now + int64(e.config.Challenge.EnrollTTL.Seconds()),
	}
	prov := &Provision{Method: method}

	var (
		code        string
		backupBatch [][32]byte
	)
	switch method {
	case MethodMailOTP, MethodSMSOTP:
		var hash [32]byte
		code, hash, err = e.otpStrategy().Generate(accountID)
		if err != nil {
			return nil, storeErr(err)
		}
		rec.SecretHash = hash
	case MethodTOTP:
		secret, uri, sealed, genErr := e.totpStrategy().Generate(accountID)
		if genErr != nil {
			return nil, storeErr(genErr)
		}
		rec.SealedSeed = sealed
		prov.Secret = secret
		prov.URI = uri
	case MethodBackup:
		display, hashes, genErr := e.backupStrategy().Generate(accountID)
		if genErr != nil {
			return nil, storeErr(genErr)
		}
		backupBatch = hashes
		prov.Codes = display
	}

	if err := e.enrollments.Create(ctx, rec, e.config.Challenge.EnrollTTL, restart); err != nil {
		if errors.Is(err, errChallengeExists) {
			return nil, ErrEnrollmentPending
		}
		return nil, storeErr(err)
	}

	if backupBatch != nil {
		// The candidate set lives under the same TTL as the pending record
		// and is only persisted once one of its codes proves possession.
		if err := e.backupCodes.Replace(ctx, accountID, backupBatch, e.config.Challenge.EnrollTTL); err != nil {
			return nil, storeErr(err)
		}
	}

	if method.deliverable() {
		e.dispatchCode(ctx, account, method, code)
	}

	e.metricInc(MetricEnrollInitiated)
	e.emitAudit(ctx, auditEventEnrollInitiated, true, accountID, method, nil, map[string]string{
		"restart": boolString(restart),
	})
	return prov, nil
}

// ConfirmEnrollment proves possession of the enrolled secret. Success
// flips the pending record to confirmed, enables the method on the
// account, and for backup consumes the submitted code. Each wrong
// submission counts against the pending record; once the bound is
// reached the next attempt destroys the record and the caller starts
// over with a fresh initiation.
func (e *Engine) ConfirmEnrollment(ctx context.Context, accountID string, method Method, code string) error {
	if e == nil || e.enrollments == nil {
		return ErrEngineNotReady
	}
	if !method.valid() {
		return ErrMethodUnsupported
	}

	account, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.MethodEnabled(method) {
		return ErrMethodEnabled
	}

	rec, err := e.enrollments.Get(ctx, accountID, method)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) || errors.Is(err, errChallengeExpired) {
			return ErrEnrollmentNotStarted
		}
		return storeErr(err)
	}
	if rec.State != challengePending {
		return ErrMethodEnabled
	}
	if int(rec.WrongTries) >= e.config.Challenge.MaxWrongTries {
		return e.destroyEnrollment(ctx, accountID, method)
	}

	var (
		ok      bool
		counter int64
	)
	switch method {
	case MethodMailOTP, MethodSMSOTP:
		ok = e.otpStrategy().Compare(accountID, rec.SecretHash, code)
	case MethodTOTP:
		ok, counter, err = e.totpStrategy().Verify(rec.SealedSeed, code, e.clock())
		if err != nil {
			return storeErr(err)
		}
	case MethodBackup:
		ok, err = e.backupCodes.Consume(ctx, accountID, e.backupStrategy().Hash(accountID, code))
		if err != nil {
			return storeErr(err)
		}
	}

	if !ok {
		return e.failEnrollment(ctx, accountID, method)
	}

	err = e.enrollments.Confirm(ctx, accountID, method, func(r *challengeRecord) {
		if method == MethodTOTP {
			r.LastUsed = counter
		} else {
			// One-time proof material is gone once it served its purpose.
			r.SecretHash = [32]byte{}
		}
	})
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			return ErrEnrollmentNotStarted
		}
		return storeErr(err)
	}

	if method == MethodBackup {
		if err := e.backupCodes.Persist(ctx, accountID); err != nil {
			return storeErr(err)
		}
	}

	if err := e.accounts.SetMethodEnabled(ctx, accountID, method, true, e.clock()); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricEnrollConfirmed)
	e.emitAudit(ctx, auditEventEnrollConfirmed, true, accountID, method, nil, nil)
	return nil
}

// failEnrollment records one wrong submission against the pending
// record. It only counts; the bound is enforced when the record is next
// loaded, so the allowed attempts are all answered with [ErrCodeInvalid].
func (e *Engine) failEnrollment(ctx context.Context, accountID string, method Method) error {
	if err := e.enrollments.RecordFailure(ctx, accountID, method); err != nil {
		if errors.Is(err, errChallengeNotFound) || errors.Is(err, errChallengeExpired) {
			return ErrEnrollmentNotStarted
		}
		return storeErr(err)
	}

	e.metricInc(MetricEnrollFailed)
	e.emitAudit(ctx, auditEventEnrollFailed, false, accountID, method, ErrCodeInvalid, nil)
	return ErrCodeInvalid
}

// destroyEnrollment tears down a pending record whose wrong-try bound
// has been reached, and for backup the candidate code set with it. The
// caller starts over with a fresh initiation.
func (e *Engine) destroyEnrollment(ctx context.Context, accountID string, method Method) error {
	if _, err := e.enrollments.Delete(ctx, accountID, method); err != nil {
		return storeErr(err)
	}
	if method == MethodBackup {
		if err := e.backupCodes.Delete(ctx, accountID); err != nil {
			return storeErr(err)
		}
	}

	e.metricInc(MetricEnrollLocked)
	e.emitAudit(ctx, auditEventEnrollFailed, false, accountID, method, ErrStartFromScratch, nil)
	return ErrStartFromScratch
}

// DisableMethod switches a method off: the account flag is cleared and
// every stored trace of the method removed — confirmed or pending
// enrollment record, any open login challenge, the backup code set, and
// the failure counter. Disabling a method that is neither enabled nor
// mid-enrollment reports [ErrMethodDisabled].
func (e *Engine) DisableMethod(ctx context.Context, accountID string, method Method) error {
	if e == nil || e.enrollments == nil {
		return ErrEngineNotReady
	}
	if !method.valid() {
		return ErrMethodUnsupported
	}

	account, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}

	removed, err := e.enrollments.Delete(ctx, accountID, method)
	if err != nil {
		return storeErr(err)
	}
	if !account.MethodEnabled(method) && !removed {
		return ErrMethodDisabled
	}

	if _, err := e.logins.Delete(ctx, accountID, method); err != nil {
		return storeErr(err)
	}
	if method == MethodBackup {
		if err := e.backupCodes.Delete(ctx, accountID); err != nil {
			return storeErr(err)
		}
	}
	if err := e.limiter.Reset(ctx, accountID, method); err != nil {
		return storeErr(err)
	}

	if account.MethodEnabled(method) {
		if err := e.accounts.SetMethodEnabled(ctx, accountID, method, false, e.clock()); err != nil {
			return storeErr(err)
		}
	}

	e.metricInc(MetricMethodDisabled)
	e.emitAudit(ctx, auditEventMethodDisabled, true, accountID, method, nil, nil)
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

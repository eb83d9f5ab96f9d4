package authcore

import (
	"context"
	"errors"
)

// SendChallenge generates and dispatches a login-time one-time code for a
// deliverable method (mail or SMS). TOTP and backup need nothing sent:
// their proof already sits with the user. At most one code per
// (account, method) is outstanding at a time; a second send while one is
// live reports [ErrChallengeActive].
func (e *Engine) SendChallenge(ctx context.Context, accountID string, method Method) error {
	if e == nil || e.logins == nil {
		return ErrEngineNotReady
	}
	if !method.deliverable() {
		return ErrMethodUnsupported
	}

	account, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.MethodEnabled(method) {
		return ErrMethodDisabled
	}

	code, hash, err := e.otpStrategy().Generate(accountID)
	if err != nil {
		return storeErr(err)
	}

	now := e.nowUnix()
	rec := &challengeRecord{
		AccountID:  accountID,
		Method:     method,
		State:      challengePending,
		SecretHash: hash,
		CreatedAt:  now,
		ExpiresAt:  now + int64(e.config.Challenge.LoginTTL.Seconds()),
	}
	if err := e.logins.Create(ctx, rec, e.config.Challenge.LoginTTL, false); err != nil {
		if errors.Is(err, errChallengeExists) {
			return ErrChallengeActive
		}
		return storeErr(err)
	}

	e.dispatchCode(ctx, account, method, code)

	e.metricInc(MetricChallengeSent)
	e.emitAudit(ctx, auditEventChallengeSent, true, accountID, method, nil, nil)
	return nil
}

// VerifyChallenge completes a login that was gated on MFA: the submitted
// proof is checked against the method's state, and on success a full
// token pair is issued exactly as a non-MFA login would have. Delivered
// codes are single-use and destroyed on success; a verified TOTP counter
// is recorded so the same code can never be honored twice; backup codes
// are removed from the set as they are consumed.
func (e *Engine) VerifyChallenge(ctx context.Context, accountID string, method Method, code string) (*TokenPair, error) {
	if e == nil || e.logins == nil {
		return nil, ErrEngineNotReady
	}
	if !method.valid() {
		return nil, ErrMethodUnsupported
	}

	account, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.MethodEnabled(method) {
		return nil, ErrMethodDisabled
	}

	switch method {
	case MethodMailOTP, MethodSMSOTP:
		err = e.verifyDeliveredCode(ctx, accountID, method, code)
	case MethodTOTP:
		err = e.verifyTOTP(ctx, accountID, code)
	case MethodBackup:
		err = e.verifyBackupCode(ctx, accountID, code)
	}
	if err != nil {
		return nil, err
	}

	pair, err := e.issueSession(ctx, account)
	if err != nil {
		e.emitAudit(ctx, auditEventChallengeVerified, false, accountID, method, err, nil)
		return nil, err
	}

	e.metricInc(MetricChallengeVerified)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventChallengeVerified, true, accountID, method, nil, nil)
	return pair, nil
}

// verifyDeliveredCode checks a mail/SMS code against its outstanding
// challenge row. Success deletes the row: the code is spent. Once the
// wrong-try bound has been reached the next attempt destroys the row,
// so a fresh send is the only way forward.
func (e *Engine) verifyDeliveredCode(ctx context.Context, accountID string, method Method, code string) error {
	rec, err := e.logins.Get(ctx, accountID, method)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) || errors.Is(err, errChallengeExpired) {
			return ErrChallengeNotFound
		}
		return storeErr(err)
	}
	if int(rec.WrongTries) >= e.config.Challenge.MaxWrongTries {
		if _, err := e.logins.Delete(ctx, accountID, method); err != nil {
			return storeErr(err)
		}
		e.metricInc(MetricChallengeLocked)
		e.emitAudit(ctx, auditEventChallengeFailed, false, accountID, method, ErrStartFromScratch, nil)
		return ErrStartFromScratch
	}

	if !e.otpStrategy().Compare(accountID, rec.SecretHash, code) {
		if failErr := e.logins.RecordFailure(ctx, accountID, method); failErr != nil {
			if errors.Is(failErr, errChallengeNotFound) || errors.Is(failErr, errChallengeExpired) {
				return ErrChallengeNotFound
			}
			return storeErr(failErr)
		}
		e.metricInc(MetricChallengeFailed)
		e.emitAudit(ctx, auditEventChallengeFailed, false, accountID, method, ErrCodeInvalid, nil)
		return ErrCodeInvalid
	}

	if _, err := e.logins.Delete(ctx, accountID, method); err != nil {
		return storeErr(err)
	}
	return nil
}

// verifyTOTP checks a code against the confirmed seed. The confirmed
// record must outlive any number of wrong guesses, so throttling uses the
// cooldown counter instead of the record's own wrong-try bound.
func (e *Engine) verifyTOTP(ctx context.Context, accountID string, code string) error {
	locked, err := e.limiter.Check(ctx, accountID, MethodTOTP)
	if err != nil {
		return storeErr(err)
	}
	if locked {
		e.metricInc(MetricChallengeLocked)
		return ErrTooManyAttempts
	}

	rec, err := e.enrollments.Get(ctx, accountID, MethodTOTP)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			return ErrMethodDisabled
		}
		return storeErr(err)
	}
	if rec.State != challengeConfirmed {
		return ErrMethodDisabled
	}

	ok, counter, err := e.totpStrategy().Verify(rec.SealedSeed, code, e.clock())
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return e.failConfirmedMethod(ctx, accountID, MethodTOTP)
	}

	if err := e.enrollments.AdvanceCounter(ctx, accountID, MethodTOTP, counter); err != nil {
		if errors.Is(err, errChallengeReplay) {
			// A valid code submitted twice is treated like a wrong one.
			return e.failConfirmedMethod(ctx, accountID, MethodTOTP)
		}
		if errors.Is(err, errChallengeNotFound) {
			return ErrMethodDisabled
		}
		return storeErr(err)
	}

	if err := e.limiter.Reset(ctx, accountID, MethodTOTP); err != nil {
		return storeErr(err)
	}
	return nil
}

// verifyBackupCode consumes the submitted code from the stored set. The
// set membership removal is atomic, so a code races against itself at
// most once.
func (e *Engine) verifyBackupCode(ctx context.Context, accountID string, code string) error {
	locked, err := e.limiter.Check(ctx, accountID, MethodBackup)
	if err != nil {
		return storeErr(err)
	}
	if locked {
		e.metricInc(MetricChallengeLocked)
		return ErrTooManyAttempts
	}

	ok, err := e.backupCodes.Consume(ctx, accountID, e.backupStrategy().Hash(accountID, code))
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return e.failConfirmedMethod(ctx, accountID, MethodBackup)
	}

	if err := e.limiter.Reset(ctx, accountID, MethodBackup); err != nil {
		return storeErr(err)
	}

	e.metricInc(MetricBackupCodeConsumed)
	return nil
}

// failConfirmedMethod counts a wrong submission against a confirmed
// secret. The cooldown counter only accumulates here; once it reaches
// the bound the next attempt is rejected up front by the limiter check.
func (e *Engine) failConfirmedMethod(ctx context.Context, accountID string, method Method) error {
	if err := e.limiter.RecordFailure(ctx, accountID, method); err != nil {
		return storeErr(err)
	}
	e.metricInc(MetricChallengeFailed)
	e.emitAudit(ctx, auditEventChallengeFailed, false, accountID, method, ErrCodeInvalid, nil)
	return ErrCodeInvalid
}

// BackupCodesRemaining reports how many unused backup codes the account
// still holds.
func (e *Engine) BackupCodesRemaining(ctx context.Context, accountID string) (int, error) {
	if e == nil || e.backupCodes == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.backupCodes.Remaining(ctx, accountID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

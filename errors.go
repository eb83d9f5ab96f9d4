package authcore

import (
	"errors"
	"fmt"
)

// Kind classifies an [Error] for the transport boundary. Core operations
// never render HTTP responses; a thin outer layer maps kinds to status
// codes in exactly one place.
type Kind uint8

const (
	// KindNotFound marks lookups that matched nothing to act on.
	KindNotFound Kind = iota
	// KindUnauthorized marks bad credentials: invalid, malformed, or
	// expired tokens and wrong one-time codes.
	KindUnauthorized
	// KindForbidden marks revoked sessions, locked-out challenges, and
	// state transitions the current state does not allow.
	KindForbidden
	// KindConflict marks duplicate work: enrollment already pending,
	// method already enabled, challenge already outstanding.
	KindConflict
	// KindInternal marks store write failures. The caller decides whether
	// to retry the whole request; the core never retries writes itself.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the single tagged error type returned by every engine
// operation. All package sentinels below are *Error values, so callers
// can branch with errors.Is on the sentinel or with [KindOf] on the class.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf extracts the [Kind] from err, unwrapping as needed. Errors that
// did not originate in this package report KindInternal.
func KindOf(err error) Kind {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Kind
	}
	return KindInternal
}

var (
	// ErrAccountNotFound is returned when the account store has no record
	// for the given account id.
	ErrAccountNotFound = &Error{Kind: KindNotFound, Message: "account not found"}
	// ErrAccountInactive is returned when the account is deactivated or deleted.
	ErrAccountInactive = &Error{Kind: KindForbidden, Message: "account inactive"}
	// ErrTokenMissing is returned when no token was supplied at all.
	ErrTokenMissing = &Error{Kind: KindNotFound, Message: "token missing"}
	// ErrTokenInvalid is returned for malformed tokens and signature mismatches.
	ErrTokenInvalid = &Error{Kind: KindUnauthorized, Message: "invalid token"}
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = &Error{Kind: KindUnauthorized, Message: "token expired"}
	// ErrSessionRevoked is returned when a token passes signature
	// verification but its session row is gone. This includes logging out
	// with an already-deleted token and replaying a consumed refresh token.
	ErrSessionRevoked = &Error{Kind: KindForbidden, Message: "session revoked"}
	// ErrSessionNotFound is returned by Cancel when no session matches
	// both the account and the session id.
	ErrSessionNotFound = &Error{Kind: KindNotFound, Message: "session not found"}
	// ErrMFARequired is returned by Login when at least one MFA method is
	// enabled and no challenge has been verified yet.
	ErrMFARequired = &Error{Kind: KindForbidden, Message: "mfa challenge required"}
	// ErrMethodEnabled is returned by InitiateEnrollment when the method
	// is already switched on for the account.
	ErrMethodEnabled = &Error{Kind: KindConflict, Message: "mfa method already enabled"}
	// ErrMethodDisabled is returned by DisableMethod when the method is
	// not currently enabled.
	ErrMethodDisabled = &Error{Kind: KindForbidden, Message: "mfa method already disabled"}
	// ErrMethodUnsupported is returned when an operation does not apply to
	// the given method, e.g. SendChallenge for TOTP.
	ErrMethodUnsupported = &Error{Kind: KindForbidden, Message: "operation not supported for method"}
	// ErrEnrollmentPending is returned by InitiateEnrollment when a pending
	// challenge already exists and no restart was requested.
	ErrEnrollmentPending = &Error{Kind: KindConflict, Message: "enrollment already pending"}
	// ErrEnrollmentNotStarted is returned by ConfirmEnrollment when no
	// pending challenge exists (never initiated, expired, or locked out).
	ErrEnrollmentNotStarted = &Error{Kind: KindNotFound, Message: "enrollment not initiated"}
	// ErrStartFromScratch is returned once the wrong-try bound destroys a
	// pending challenge; the caller must re-initiate.
	ErrStartFromScratch = &Error{Kind: KindForbidden, Message: "challenge destroyed, start from scratch"}
	// ErrCodeInvalid is returned for a code that does not match the stored
	// secret.
	ErrCodeInvalid = &Error{Kind: KindUnauthorized, Message: "invalid code"}
	// ErrChallengeActive is returned by SendChallenge when an unconsumed
	// login challenge is still outstanding.
	ErrChallengeActive = &Error{Kind: KindConflict, Message: "challenge already outstanding"}
	// ErrChallengeNotFound is returned by VerifyChallenge when no login
	// challenge exists for the account and method.
	ErrChallengeNotFound = &Error{Kind: KindNotFound, Message: "challenge not found"}
	// ErrTooManyAttempts is returned when the wrong-try bound is reached.
	ErrTooManyAttempts = &Error{Kind: KindForbidden, Message: "too many attempts"}
	// ErrStoreUnavailable wraps persistence failures.
	ErrStoreUnavailable = &Error{Kind: KindInternal, Message: "store unavailable"}
	// ErrEngineNotReady is returned when the engine was not built correctly.
	ErrEngineNotReady = &Error{Kind: KindInternal, Message: "engine not initialized"}
)

// storeErr wraps a backend failure so that both errors.Is(err,
// ErrStoreUnavailable) and KindOf(err) == KindInternal hold.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

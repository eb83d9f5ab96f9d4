package authcore

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrAccountNotFound, KindNotFound},
		{ErrSessionNotFound, KindNotFound},
		{ErrEnrollmentNotStarted, KindNotFound},
		{ErrTokenInvalid, KindUnauthorized},
		{ErrTokenExpired, KindUnauthorized},
		{ErrCodeInvalid, KindUnauthorized},
		{ErrAccountInactive, KindForbidden},
		{ErrSessionRevoked, KindForbidden},
		{ErrMFARequired, KindForbidden},
		{ErrStartFromScratch, KindForbidden},
		{ErrTooManyAttempts, KindForbidden},
		{ErrMethodEnabled, KindConflict},
		{ErrEnrollmentPending, KindConflict},
		{ErrChallengeActive, KindConflict},
		{ErrStoreUnavailable, KindInternal},
		{ErrEngineNotReady, KindInternal},
	}

	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	wrapped := fmt.Errorf("handling request: %w", ErrSessionRevoked)
	if got := KindOf(wrapped); got != KindForbidden {
		t.Fatalf("KindOf(wrapped) = %v", got)
	}
	if !errors.Is(wrapped, ErrSessionRevoked) {
		t.Fatal("wrapping broke errors.Is")
	}

	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("KindOf(plain) = %v, want KindInternal", got)
	}
	if got := KindOf(nil); got != KindInternal {
		t.Fatalf("KindOf(nil) = %v", got)
	}
}

func TestStoreErrPreservesSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	err := storeErr(cause)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("storeErr lost the sentinel: %v", err)
	}
	if KindOf(err) != KindInternal {
		t.Fatalf("KindOf(storeErr) = %v", KindOf(err))
	}
}

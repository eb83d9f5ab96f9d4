// Package authcore is the authentication core of an identity provider:
// it issues and revokes login sessions and runs the enrollment and
// verification state machines for multi-factor methods (mail OTP, TOTP,
// SMS OTP, and single-use backup codes).
//
// The package deliberately owns only session and challenge state. HTTP
// routing, password verification, account CRUD, and message delivery are
// external collaborators wired in through the [Builder]: an [AccountStore]
// for account flags, a [Notifier] for code dispatch, a Redis client for
// persistence, and an optional clock for deterministic tests.
//
// Engine methods are safe for concurrent use after [Builder.Build]. All
// persisted state lives in single Redis keys with native TTL eviction;
// there is no background sweeper and no in-process cache of valid tokens,
// so deleting a session row revokes its token pair on the very next
// Validate call anywhere.
package authcore

// Package internal holds the code-generation and hashing primitives
// shared by the engine's stores and method strategies.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"math/big"
	"strings"
)

// backupCodeAlphabet omits 0/O and 1/I to keep transcription unambiguous.
const backupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOTP generates a numeric one-time code of the given length using
// crypto/rand, one digit at a time so the value is uniform.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// NewBackupCode generates a random backup code of the given length over
// the unambiguous alphabet.
func NewBackupCode(length int) (string, error) {
	if length < 8 || length > 32 {
		return "", errors.New("invalid backup code length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(backupCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// FormatBackupCode inserts a hyphen every four characters for display.
func FormatBackupCode(code string) string {
	var b strings.Builder
	for i, r := range code {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CanonicalizeBackupCode strips separators and whitespace and uppercases,
// so user input compares against the generated form.
func CanonicalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// CodeHash hashes a one-time code salted with the account id, so equal
// codes on different accounts never share a stored hash.
func CodeHash(accountID, code string) [32]byte {
	return sha256.Sum256([]byte(accountID + ":" + code))
}

// HashToken hashes a full token string for use as a session index key.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// ConstantTimeEqual compares two hashes without leaking a timing signal.
func ConstantTimeEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

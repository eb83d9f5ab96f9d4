// Package token implements stateless signing and verification of the
// short, expiring strings the engine hands out. An issuer holds one
// secret per purpose; it never touches storage, so a verified token says
// nothing about revocation — that is the session store's job.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose labels what a token was minted for. Each purpose signs with its
// own secret, so a reset token can never verify against the access key.
// The label is additionally carried inside the payload; see [Claims.Purpose].
type Purpose string

const (
	// PurposeAccess is the short-lived bearer credential for API calls.
	PurposeAccess Purpose = "access"
	// PurposeRefresh is the longer-lived credential used solely to mint a
	// new pair.
	PurposeRefresh Purpose = "refresh"
	// PurposeVerification covers mail-address verification links.
	PurposeVerification Purpose = "verification"
	// PurposeActivation covers account activation links.
	PurposeActivation Purpose = "activation"
	// PurposeReset covers password reset links.
	PurposeReset Purpose = "reset"
)

// Purposes lists every purpose an issuer must hold a secret for.
var Purposes = []Purpose{
	PurposeAccess,
	PurposeRefresh,
	PurposeVerification,
	PurposeActivation,
	PurposeReset,
}

var (
	// ErrTokenMalformed is returned for structurally invalid tokens.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenInvalid is returned for signature mismatches.
	ErrTokenInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the payload embedded in every issued token.
//
// Purpose and Origin are informational: Verify selects the secret by the
// purpose the caller passes in, and does not reject a payload whose
// embedded purpose differs. Callers that want to forbid cross-purpose
// reuse can compare Claims.Purpose themselves.
type Claims struct {
	AccountID string  `json:"aid"`
	SessionID string  `json:"sid,omitempty"`
	Role      string  `json:"role,omitempty"`
	Purpose   Purpose `json:"purpose"`
	Origin    string  `json:"origin"`
	jwt.RegisteredClaims
}

// Config configures an [Issuer].
type Config struct {
	// Origin tags every issued token with the system that minted it.
	Origin string
	// Secrets maps each purpose to its HMAC signing secret. Every purpose
	// in [Purposes] must be present.
	Secrets map[Purpose][]byte
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Issuer signs and verifies purpose-scoped tokens. It is immutable after
// construction and safe for concurrent use.
type Issuer struct {
	origin  string
	secrets map[Purpose][]byte
	now     func() time.Time
}

// NewIssuer validates the secret set and returns an [Issuer].
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Origin == "" {
		return nil, errors.New("origin required")
	}
	secrets := make(map[Purpose][]byte, len(Purposes))
	for _, p := range Purposes {
		secret, ok := cfg.Secrets[p]
		if !ok || len(secret) == 0 {
			return nil, fmt.Errorf("missing secret for purpose %q", p)
		}
		secrets[p] = secret
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{origin: cfg.Origin, secrets: secrets, now: now}, nil
}

// Issue produces a signed, time-boxed token carrying the payload plus the
// purpose and origin labels. No side effects, no storage.
func (i *Issuer) Issue(purpose Purpose, payload Claims, ttl time.Duration) (string, error) {
	secret, ok := i.secrets[purpose]
	if !ok {
		return "", fmt.Errorf("unknown purpose %q", purpose)
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := i.now()
	payload.Purpose = purpose
	payload.Origin = i.origin
	payload.IssuedAt = jwt.NewNumericDate(now)
	payload.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	return tok.SignedString(secret)
}

// Verify checks the signature and expiry of a token against the secret
// for the given purpose and returns its payload. Failures are
// [ErrTokenMalformed], [ErrTokenInvalid], or [ErrTokenExpired].
func (i *Issuer) Verify(tokenStr string, purpose Purpose) (*Claims, error) {
	secret, ok := i.secrets[purpose]
	if !ok {
		return nil, fmt.Errorf("unknown purpose %q", purpose)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenInvalid
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

package authcore

import (
	"errors"
	"time"

	"github.com/solvrey/authcore/token"
)

// Config is the immutable engine configuration. Load it once at startup,
// pass it to [Builder.WithConfig], and treat it as read-only afterwards.
type Config struct {
	Token     TokenConfig
	Session   SessionConfig
	Challenge ChallengeConfig
	Backup    BackupConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// TokenConfig carries the signing secrets and lifetimes for every token
// purpose. Each purpose signs with its own secret so a token minted for
// one purpose can never verify under another purpose's key.
type TokenConfig struct {
	Origin     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	AccessSecret       []byte
	RefreshSecret      []byte
	VerificationSecret []byte
	ActivationSecret   []byte
	ResetSecret        []byte
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	RedisPrefix string
	// TTL is the fixed lifetime of a session row. Rows evict on their own
	// after this regardless of explicit logout or cancellation.
	TTL time.Duration
}

// ChallengeConfig controls the MFA challenge state machine.
type ChallengeConfig struct {
	// EnrollTTL bounds how long a pending enrollment stays confirmable.
	EnrollTTL time.Duration
	// LoginTTL bounds how long a sent login-time code stays verifiable.
	LoginTTL time.Duration
	// MaxWrongTries destroys a pending challenge when crossed.
	MaxWrongTries int
	// LockoutCooldown throttles wrong TOTP/backup submissions against a
	// confirmed secret, which has no row of its own to destroy.
	LockoutCooldown time.Duration
	// OTPDigits is the length of generated mail/SMS codes.
	OTPDigits int
	// TOTPIssuer is the label shown in authenticator apps.
	TOTPIssuer string
	// SealKey encrypts TOTP seeds at rest. Must be exactly 32 bytes.
	SealKey []byte
}

// BackupConfig controls backup-code batches.
type BackupConfig struct {
	Count  int
	Length int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production preset: 24h sessions, 10-minute
// enrollments, 5-minute login codes, three wrong tries, batches of ten
// backup codes.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Origin:     "authcore",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Session: SessionConfig{
			RedisPrefix: "as",
			TTL:         24 * time.Hour,
		},
		Challenge: ChallengeConfig{
			EnrollTTL:       10 * time.Minute,
			LoginTTL:        5 * time.Minute,
			MaxWrongTries:   3,
			LockoutCooldown: 5 * time.Minute,
			OTPDigits:       6,
			TOTPIssuer:      "authcore",
		},
		Backup: BackupConfig{
			Count:  10,
			Length: 8,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
func (c Config) Validate() error {
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.AccessTTL > c.Token.RefreshTTL {
		return errors.New("access TTL must not exceed refresh TTL")
	}
	for _, secret := range [][]byte{
		c.Token.AccessSecret,
		c.Token.RefreshSecret,
		c.Token.VerificationSecret,
		c.Token.ActivationSecret,
		c.Token.ResetSecret,
	} {
		if len(secret) < 32 {
			return errors.New("every token purpose needs a secret of at least 32 bytes")
		}
	}
	if sameSecret(c.Token.AccessSecret, c.Token.RefreshSecret) {
		return errors.New("access and refresh secrets must differ")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Session.RedisPrefix == "" {
		return errors.New("session redis prefix required")
	}
	if c.Challenge.EnrollTTL <= 0 || c.Challenge.LoginTTL <= 0 {
		return errors.New("challenge TTLs must be positive")
	}
	if c.Challenge.MaxWrongTries <= 0 {
		return errors.New("max wrong tries must be positive")
	}
	if c.Challenge.OTPDigits < 6 || c.Challenge.OTPDigits > 10 {
		return errors.New("otp digits must be between 6 and 10")
	}
	if len(c.Challenge.SealKey) != 32 {
		return errors.New("challenge seal key must be 32 bytes")
	}
	if c.Backup.Count <= 0 || c.Backup.Length < 8 {
		return errors.New("backup codes need a positive count and at least 8 characters")
	}
	return nil
}

func sameSecret(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (c Config) tokenSecrets() map[token.Purpose][]byte {
	return map[token.Purpose][]byte{
		token.PurposeAccess:       c.Token.AccessSecret,
		token.PurposeRefresh:      c.Token.RefreshSecret,
		token.PurposeVerification: c.Token.VerificationSecret,
		token.PurposeActivation:   c.Token.ActivationSecret,
		token.PurposeReset:        c.Token.ResetSecret,
	}
}

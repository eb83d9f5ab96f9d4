package authcore

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/solvrey/authcore/internal"
)

const (
	totpPeriod uint = 30
	totpSkew        = 1
)

// otpStrategy covers mail and SMS one-time codes: a random numeric code,
// stored as an account-salted hash, compared in constant time.
type otpStrategy struct {
	digits int
}

func (s otpStrategy) Generate(accountID string) (code string, hash [32]byte, err error) {
	code, err = internal.NewOTP(s.digits)
	if err != nil {
		return "", hash, err
	}
	return code, internal.CodeHash(accountID, code), nil
}

func (s otpStrategy) Compare(accountID string, stored [32]byte, code string) bool {
	given := internal.CodeHash(accountID, strings.TrimSpace(code))
	return internal.ConstantTimeEqual(stored, given)
}

// totpStrategy derives codes from a shared seed instead of storing them.
// The seed is sealed at rest; comparison walks the allowed time steps and
// reports the matched counter so replays of the same step can be refused.
type totpStrategy struct {
	issuer  string
	sealKey []byte
}

func (s totpStrategy) Generate(accountID string) (secret, uri string, sealed []byte, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountID,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", nil, err
	}

	sealed, err = internal.SealSecret(s.sealKey, []byte(key.Secret()))
	if err != nil {
		return "", "", nil, err
	}
	return key.Secret(), key.URL(), sealed, nil
}

// Verify checks code against the sealed seed within ±totpSkew time steps.
// On a match it returns the matched counter.
func (s totpStrategy) Verify(sealed []byte, code string, now time.Time) (bool, int64, error) {
	seed, err := internal.OpenSecret(s.sealKey, sealed)
	if err != nil {
		return false, 0, err
	}

	trimmed := strings.TrimSpace(code)
	base := now.Unix() / int64(totpPeriod)
	for step := -totpSkew; step <= totpSkew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		at := now.Add(time.Duration(step) * time.Duration(totpPeriod) * time.Second)
		want, err := totp.GenerateCodeCustom(string(seed), at, totp.ValidateOpts{
			Period:    totpPeriod,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(trimmed)) == 1 {
			return true, counter, nil
		}
	}
	return false, 0, nil
}

// backupStrategy generates a batch of single-use codes. Comparison is not
// implemented here: consumption happens in the backup-code store, where
// set removal is the one-shot primitive.
type backupStrategy struct {
	count  int
	length int
}

func (s backupStrategy) Generate(accountID string) (display []string, hashes [][32]byte, err error) {
	display = make([]string, 0, s.count)
	hashes = make([][32]byte, 0, s.count)
	for i := 0; i < s.count; i++ {
		code, err := internal.NewBackupCode(s.length)
		if err != nil {
			return nil, nil, err
		}
		display = append(display, internal.FormatBackupCode(code))
		hashes = append(hashes, internal.CodeHash(accountID, code))
	}
	return display, hashes, nil
}

func (s backupStrategy) Hash(accountID, code string) [32]byte {
	return internal.CodeHash(accountID, internal.CanonicalizeBackupCode(code))
}

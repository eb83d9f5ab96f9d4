package authcore

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidatesWithSecrets(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "zero access ttl",
			mutate: func(c *Config) { c.Token.AccessTTL = 0 },
			want:   "TTLs",
		},
		{
			name:   "access outlives refresh",
			mutate: func(c *Config) { c.Token.AccessTTL = 48 * time.Hour },
			want:   "access TTL",
		},
		{
			name:   "short secret",
			mutate: func(c *Config) { c.Token.ResetSecret = []byte("short") },
			want:   "32 bytes",
		},
		{
			name: "shared secret",
			mutate: func(c *Config) {
				c.Token.RefreshSecret = append([]byte(nil), c.Token.AccessSecret...)
			},
			want: "must differ",
		},
		{
			name:   "zero session ttl",
			mutate: func(c *Config) { c.Session.TTL = 0 },
			want:   "session TTL",
		},
		{
			name:   "empty prefix",
			mutate: func(c *Config) { c.Session.RedisPrefix = "" },
			want:   "prefix",
		},
		{
			name:   "zero enroll ttl",
			mutate: func(c *Config) { c.Challenge.EnrollTTL = 0 },
			want:   "challenge TTLs",
		},
		{
			name:   "zero wrong tries",
			mutate: func(c *Config) { c.Challenge.MaxWrongTries = 0 },
			want:   "wrong tries",
		},
		{
			name:   "otp digits out of range",
			mutate: func(c *Config) { c.Challenge.OTPDigits = 4 },
			want:   "otp digits",
		},
		{
			name:   "bad seal key",
			mutate: func(c *Config) { c.Challenge.SealKey = []byte("short") },
			want:   "seal key",
		},
		{
			name:   "short backup codes",
			mutate: func(c *Config) { c.Backup.Length = 4 },
			want:   "backup codes",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %q, want substring %q", err, tc.want)
			}
		})
	}
}

package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solvrey/authcore/internal/audit"
	"github.com/solvrey/authcore/session"
	"github.com/solvrey/authcore/token"
)

// Builder assembles an [Engine]. Collaborators are bound exactly once;
// Build validates the configuration and refuses to hand out a partially
// wired engine.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	accounts AccountStore
	notifier Notifier
	sink     AuditSink
	clock    Clock

	built bool
}

// New returns a [Builder] preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis binds the Redis client backing every store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore binds the external account entity.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithNotifier binds the mail/SMS code dispatcher. Optional for
// TOTP/backup-only deployments.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink binds the audit event consumer.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithClock overrides the wall clock for deterministic TTL tests.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// Build validates and assembles the engine. A builder can build once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}
	notifier := b.notifier
	if notifier == nil {
		notifier = NoOpNotifier{}
	}

	issuer, err := token.NewIssuer(token.Config{
		Origin:  b.config.Token.Origin,
		Secrets: b.config.tokenSecrets(),
		Now:     clock,
	})
	if err != nil {
		return nil, err
	}

	var dispatcher *audit.Dispatcher
	if b.config.Audit.Enabled {
		dispatcher = audit.NewDispatcher(b.sink, b.config.Audit.BufferSize, b.config.Audit.DropIfFull)
	}

	engine := &Engine{
		config:      b.config,
		accounts:    b.accounts,
		notifier:    notifier,
		tokens:      issuer,
		sessions:    session.NewStore(b.redis, b.config.Session.RedisPrefix, clock),
		enrollments: newChallengeStore(b.redis, enrollKeyPrefix, clock),
		logins:      newChallengeStore(b.redis, loginChallengeKeyPrefix, clock),
		backupCodes: newBackupCodeStore(b.redis),
		limiter:     newMethodLimiter(b.redis, b.config.Challenge.MaxWrongTries, b.config.Challenge.LockoutCooldown),
		audit:       dispatcher,
		metrics:     NewMetrics(b.config.Metrics),
		clock:       clock,
	}

	b.built = true
	return engine, nil
}

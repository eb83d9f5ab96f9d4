package authcore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	enrollKeyPrefix         = "amc"
	loginChallengeKeyPrefix = "alc"
	challengeRecordVersion1 = 1
)

type challengeState uint8

const (
	challengePending challengeState = iota + 1
	challengeConfirmed
)

var (
	errChallengeExists   = errors.New("challenge already exists")
	errChallengeNotFound = errors.New("challenge record not found")
	errChallengeExpired  = errors.New("challenge record expired")
	errChallengeReplay   = errors.New("totp counter replayed")
	errChallengeBackend  = errors.New("challenge backend unavailable")
)

// challengeRecord is the stored generalization of all four methods'
// state: a hashed one-time code for mail/SMS/backup proofs, or a sealed
// TOTP seed, plus the wrong-try counter and the pending/confirmed state.
type challengeRecord struct {
	AccountID  string
	Method     Method
	State      challengeState
	WrongTries uint16
	SecretHash [32]byte
	SealedSeed []byte
	// LastUsed is the highest TOTP counter already accepted, for replay
	// rejection. Zero for every other method.
	LastUsed  int64
	CreatedAt int64
	ExpiresAt int64 // 0 means no expiry (confirmed records)
}

// challengeStore persists at most one challenge per (account, method) per
// namespace: the key itself is the uniqueness constraint, and creation
// uses SET NX so two concurrent initiations can never both win.
type challengeStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func newChallengeStore(client redis.UniversalClient, prefix string, now func() time.Time) *challengeStore {
	if now == nil {
		now = time.Now
	}
	return &challengeStore{redis: client, prefix: prefix, now: now}
}

func (s *challengeStore) key(accountID string, method Method) string {
	return s.prefix + ":" + accountID + ":" + method.String()
}

// Create persists a new record. With replace unset the write is NX and a
// live existing record reports errChallengeExists. ttl <= 0 persists the
// record without expiry.
func (s *challengeStore) Create(ctx context.Context, rec *challengeRecord, ttl time.Duration, replace bool) error {
	encoded, err := encodeChallengeRecord(rec)
	if err != nil {
		return err
	}
	key := s.key(rec.AccountID, rec.Method)

	if replace {
		if err := s.redis.Set(ctx, key, encoded, maxDuration(ttl, 0)).Err(); err != nil {
			return fmt.Errorf("%w: %v", errChallengeBackend, err)
		}
		return nil
	}

	ok, err := s.redis.SetNX(ctx, key, encoded, maxDuration(ttl, 0)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	if !ok {
		// The occupant may be a leftover the TTL has not evicted but whose
		// stored expiry has passed; clear it and try once more.
		if _, getErr := s.Get(ctx, rec.AccountID, rec.Method); errors.Is(getErr, errChallengeExpired) || errors.Is(getErr, errChallengeNotFound) {
			ok, err = s.redis.SetNX(ctx, key, encoded, maxDuration(ttl, 0)).Result()
			if err != nil {
				return fmt.Errorf("%w: %v", errChallengeBackend, err)
			}
			if ok {
				return nil
			}
		}
		return errChallengeExists
	}
	return nil
}

// Get loads a record, lazily deleting and reporting errChallengeExpired
// when the stored expiry has passed.
func (s *challengeStore) Get(ctx context.Context, accountID string, method Method) (*challengeRecord, error) {
	key := s.key(accountID, method)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}

	rec, err := decodeChallengeRecord(data)
	if err != nil {
		return nil, err
	}
	if rec.ExpiresAt > 0 && s.now().Unix() > rec.ExpiresAt {
		_, _ = s.redis.Del(ctx, key).Result()
		return nil, errChallengeExpired
	}
	return rec, nil
}

// Delete removes a record, reporting whether anything was there.
func (s *challengeStore) Delete(ctx context.Context, accountID string, method Method) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(accountID, method)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure increments WrongTries under WATCH so concurrent wrong
// submissions serialize. It only counts; callers enforce the bound when
// they next load the record. The remaining TTL is derived from the
// stored expiry and the injected clock, never the wall clock.
func (s *challengeStore) RecordFailure(ctx context.Context, accountID string, method Method) error {
	const maxRetries = 16
	key := s.key(accountID, method)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			rec, err := decodeChallengeRecord(data)
			if err != nil {
				return err
			}
			now := s.now().Unix()
			if rec.ExpiresAt > 0 && now > rec.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errChallengeExpired
			}

			rec.WrongTries++

			ttl := time.Duration(0)
			if rec.ExpiresAt > 0 {
				ttl = time.Duration(rec.ExpiresAt-now) * time.Second
				if ttl <= 0 {
					ttl = time.Second
				}
			}

			updated, err := encodeChallengeRecord(rec)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return errChallengeNotFound
			}
			if errors.Is(err, errChallengeExpired) {
				return err
			}
			return fmt.Errorf("%w: %v", errChallengeBackend, err)
		}
		return nil
	}

	return fmt.Errorf("%w: watch contention", errChallengeBackend)
}

// Confirm flips a pending record to confirmed: the wrong-try counter is
// dropped, the expiry removed, and the record persisted without TTL. The
// mutate hook lets the caller clear a consumed secret in the same write.
func (s *challengeStore) Confirm(ctx context.Context, accountID string, method Method, mutate func(*challengeRecord)) error {
	const maxRetries = 4
	key := s.key(accountID, method)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			rec, err := decodeChallengeRecord(data)
			if err != nil {
				return err
			}

			rec.State = challengeConfirmed
			rec.WrongTries = 0
			rec.ExpiresAt = 0
			if mutate != nil {
				mutate(rec)
			}

			updated, err := encodeChallengeRecord(rec)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return errChallengeNotFound
			}
			return fmt.Errorf("%w: %v", errChallengeBackend, err)
		}
		return nil
	}

	return errChallengeNotFound
}

// AdvanceCounter records a newly accepted TOTP counter, rejecting any
// value at or below the stored one so a code is honored at most once
// even under concurrent submission.
func (s *challengeStore) AdvanceCounter(ctx context.Context, accountID string, method Method, counter int64) error {
	const maxRetries = 4
	key := s.key(accountID, method)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			rec, err := decodeChallengeRecord(data)
			if err != nil {
				return err
			}
			if counter <= rec.LastUsed {
				return errChallengeReplay
			}

			rec.LastUsed = counter
			updated, err := encodeChallengeRecord(rec)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return errChallengeNotFound
			}
			if errors.Is(err, errChallengeReplay) {
				return err
			}
			return fmt.Errorf("%w: %v", errChallengeBackend, err)
		}
		return nil
	}

	return errChallengeNotFound
}

func maxDuration(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	return d
}

func encodeChallengeRecord(rec *challengeRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)
	buf.WriteByte(byte(rec.Method))
	buf.WriteByte(byte(rec.State))

	if err := binary.Write(&buf, binary.BigEndian, rec.WrongTries); err != nil {
		return nil, err
	}

	if len(rec.AccountID) > 255 {
		return nil, errors.New("account id too long")
	}
	buf.WriteByte(byte(len(rec.AccountID)))
	buf.WriteString(rec.AccountID)

	buf.Write(rec.SecretHash[:])

	if len(rec.SealedSeed) > 65535 {
		return nil, errors.New("sealed seed too large")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(rec.SealedSeed))); err != nil {
		return nil, err
	}
	buf.Write(rec.SealedSeed)

	for _, v := range []int64{rec.LastUsed, rec.CreatedAt, rec.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*challengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	rec := &challengeRecord{}

	method, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	rec.Method = Method(method)

	state, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	rec.State = challengeState(state)

	if err := binary.Read(reader, binary.BigEndian, &rec.WrongTries); err != nil {
		return nil, err
	}

	accountLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	accountID := make([]byte, accountLen)
	if _, err := io.ReadFull(reader, accountID); err != nil {
		return nil, err
	}
	rec.AccountID = string(accountID)

	if _, err := io.ReadFull(reader, rec.SecretHash[:]); err != nil {
		return nil, err
	}

	var seedLen uint16
	if err := binary.Read(reader, binary.BigEndian, &seedLen); err != nil {
		return nil, err
	}
	if seedLen > 0 {
		rec.SealedSeed = make([]byte, seedLen)
		if _, err := io.ReadFull(reader, rec.SealedSeed); err != nil {
			return nil, err
		}
	}

	for _, target := range []*int64{&rec.LastUsed, &rec.CreatedAt, &rec.ExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, target); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

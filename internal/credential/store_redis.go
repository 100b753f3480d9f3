package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript returns 0 none, 1 mismatch, 2 expired, 3 consumed, -1 corrupt.
// Running it server-side makes check-and-delete a single atomic step.
var consumeScript = redis.NewScript(`
local h = redis.call('HMGET', KEYS[1], 'nonce', 'expires_at')
if not h[1] and not h[2] then
	return 0
end
if not h[1] or not h[2] then
	return -1
end
local exp = tonumber(h[2])
if not exp then
	return -1
end
if tonumber(ARGV[2]) >= exp then
	return 2
end
if h[1] ~= ARGV[1] then
	return 1
end
redis.call('DEL', KEYS[1])
return 3
`)

// RedisStore keeps one hash per student. Keys expire on their own some time
// after the credential does, so Sweep has nothing to do.
type RedisStore struct {
	client *redis.Client
	prefix string
	grace  time.Duration
}

// NewRedisStore builds a store. grace is how long an expired credential is
// kept so scans keep answering Expired rather than NoActiveCredential.
func NewRedisStore(client *redis.Client, prefix string, grace time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "qrattend:cred:"
	}
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, grace: grace}
}

func (s *RedisStore) key(studentID string) string { return s.prefix + studentID }

func (s *RedisStore) SetActive(ctx context.Context, cred Credential) error {
	if err := cred.validate(); err != nil {
		return err
	}
	key := s.key(cred.StudentID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"nonce", cred.Nonce,
			"roll", cred.RollNo,
			"issued_at", cred.IssuedAt.UnixMilli(),
			"expires_at", cred.ExpiresAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, cred.ExpiresAt.Add(s.grace))
		return nil
	})
	if err != nil {
		return fmt.Errorf("set active credential: %w", err)
	}
	return nil
}

func (s *RedisStore) PeekActive(ctx context.Context, studentID string) (Credential, error) {
	fields, err := s.client.HGetAll(ctx, s.key(studentID)).Result()
	if err != nil {
		return Credential{}, fmt.Errorf("peek credential: %w", err)
	}
	if len(fields) == 0 {
		return Credential{}, ErrNotFound
	}
	issued, err1 := strconv.ParseInt(fields["issued_at"], 10, 64)
	expires, err2 := strconv.ParseInt(fields["expires_at"], 10, 64)
	if fields["nonce"] == "" || err1 != nil || err2 != nil {
		return Credential{}, ErrCorrupt
	}
	return Credential{
		StudentID: studentID,
		RollNo:    fields["roll"],
		Nonce:     fields["nonce"],
		IssuedAt:  time.UnixMilli(issued).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, nil
}

func (s *RedisStore) Consume(ctx context.Context, studentID, nonce string, now time.Time) (ConsumeResult, error) {
	code, err := consumeScript.Run(ctx, s.client, []string{s.key(studentID)}, nonce, now.UnixMilli()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return NoActiveCredential, fmt.Errorf("consume credential: %w", err)
	}
	switch code {
	case 0:
		return NoActiveCredential, nil
	case 1:
		return NonceMismatch, nil
	case 2:
		return Expired, nil
	case 3:
		return Consumed, nil
	default:
		return NoActiveCredential, fmt.Errorf("consume %s: %w", studentID, ErrCorrupt)
	}
}

func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

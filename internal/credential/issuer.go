package credential

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"qrattend/internal/directory"
)

// NonceSize is the number of random bytes behind each nonce.
const NonceSize = 32

// Resolver is the part of the student directory the issuer needs.
type Resolver interface {
	Resolve(ctx context.Context, studentID string) (directory.Student, error)
}

// Issuer mints credentials and hands them to the store. It keeps no copy.
type Issuer struct {
	dir    Resolver
	store  Store
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// NewIssuer creates an issuer. A non-positive ttl falls back to DefaultTTL.
func NewIssuer(dir Resolver, store Store, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		dir:    dir,
		store:  store,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		random: rand.Reader,
	}
}

// WithClock overrides the time source.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// TTL returns the validity window applied to new credentials.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue creates a fresh credential for studentID, superseding any active one.
func (i *Issuer) Issue(ctx context.Context, studentID string) (Credential, error) {
	student, err := i.dir.Resolve(ctx, studentID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Credential{}, fmt.Errorf("%w: %s", ErrUnknownStudent, studentID)
		}
		return Credential{}, fmt.Errorf("resolve student: %w", err)
	}

	nonce, err := newNonce(i.random)
	if err != nil {
		return Credential{}, err
	}

	now := i.now()
	cred := Credential{
		StudentID: student.ID,
		RollNo:    student.RollNo,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	if err := i.store.SetActive(ctx, cred); err != nil {
		return Credential{}, err
	}
	return cred, nil
}

func newNonce(r io.Reader) (string, error) {
	buf := make([]byte, NonceSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

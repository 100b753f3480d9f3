// Package credential issues, stores and consumes the single-use tokens that
// back a student's QR code.
package credential

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnknownStudent is returned when issuing for an id the directory does not know.
	ErrUnknownStudent = errors.New("unknown student")
	// ErrNotFound is returned by PeekActive when the student has no active credential.
	ErrNotFound = errors.New("no active credential")
	// ErrCorrupt marks a store entry that cannot be interpreted. It is an
	// internal fault, never a user-facing rejection.
	ErrCorrupt = errors.New("corrupt credential entry")
	// ErrInvalidCredential is returned when storing a credential missing required fields.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrMalformedPayload is returned when a scanned payload cannot be decoded or verified.
	ErrMalformedPayload = errors.New("malformed payload")
)

// DefaultTTL is how long a freshly issued credential stays usable.
const DefaultTTL = 24 * time.Hour

// Credential is the active token for one student.
type Credential struct {
	StudentID string    `json:"studentId"`
	RollNo    string    `json:"rollNo,omitempty"`
	Nonce     string    `json:"-"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the credential is no longer usable at now.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

func (c Credential) validate() error {
	if c.StudentID == "" || c.Nonce == "" || c.ExpiresAt.IsZero() {
		return ErrInvalidCredential
	}
	return nil
}

// ConsumeResult is the outcome of an atomic check-and-invalidate.
type ConsumeResult int

const (
	NoActiveCredential ConsumeResult = iota
	NonceMismatch
	Expired
	Consumed
)

func (r ConsumeResult) String() string {
	switch r {
	case Consumed:
		return "consumed"
	case NonceMismatch:
		return "nonce_mismatch"
	case Expired:
		return "expired"
	default:
		return "no_active_credential"
	}
}

// Store is the authoritative mapping from student to active credential.
//
// SetActive and Consume for the same student are linearizable. Consume
// checks expiry before the nonce, so a credential past its expiry always
// yields Expired. Expired entries stay in place until superseded or swept.
type Store interface {
	SetActive(ctx context.Context, cred Credential) error
	PeekActive(ctx context.Context, studentID string) (Credential, error)
	Consume(ctx context.Context, studentID, nonce string, now time.Time) (ConsumeResult, error)
	// Sweep drops credentials expired at now and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

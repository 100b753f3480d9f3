package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qrattend/internal/credential"
	"qrattend/internal/directory"
	"qrattend/internal/ledger"
	"qrattend/internal/metrics"
)

// Options tunes a Service. The zero value is usable.
type Options struct {
	TTL     time.Duration
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Service issues credentials and turns scans into attendance records.
type Service struct {
	dir     directory.Directory
	creds   credential.Store
	ledger  ledger.Ledger
	codec   *credential.Codec
	issuer  *credential.Issuer
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService wires the core components together.
func NewService(dir directory.Directory, creds credential.Store, l ledger.Ledger, codec *credential.Codec, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		dir:     dir,
		creds:   creds,
		ledger:  l,
		codec:   codec,
		issuer:  credential.NewIssuer(dir, creds, opts.TTL).WithClock(now),
		metrics: opts.Metrics,
		now:     now,
	}
}

// IssueCredential mints a credential for studentID and returns it with its
// encoded QR payload. Unknown students yield credential.ErrUnknownStudent.
func (s *Service) IssueCredential(ctx context.Context, studentID string) (credential.Credential, string, error) {
	cred, err := s.issuer.Issue(ctx, studentID)
	if err != nil {
		return credential.Credential{}, "", err
	}
	payload, err := s.codec.Encode(cred)
	if err != nil {
		return credential.Credential{}, "", err
	}
	s.metrics.IncIssued()
	return cred, payload, nil
}

// ValidateScan decides a scan attempt. Rejections are reported through the
// Outcome; a non-nil error means an internal fault.
//
// The location check runs before the credential is consumed, so a scan
// without a usable location leaves the credential active. A scan that
// consumes its credential but lands on an already-filled day does not get
// the credential back.
func (s *Service) ValidateScan(ctx context.Context, attempt ScanAttempt) (out Outcome, err error) {
	start := time.Now()
	defer func() {
		if err == nil {
			s.metrics.ObserveScan(string(out.Kind), time.Since(start))
		}
	}()

	payload, err := s.codec.Decode(attempt.RawPayload)
	if err != nil {
		return Outcome{Kind: MalformedPayload}, nil
	}
	out = Outcome{StudentID: payload.StudentID}

	if _, err := s.dir.Resolve(ctx, payload.StudentID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			out.Kind = UnknownStudent
			return out, nil
		}
		return Outcome{}, fmt.Errorf("resolve student: %w", err)
	}

	if attempt.Location == nil || !attempt.Location.Valid() {
		out.Kind = MissingLocation
		return out, nil
	}

	res, err := s.creds.Consume(ctx, payload.StudentID, payload.Nonce, s.now())
	if err != nil {
		return Outcome{}, fmt.Errorf("consume credential: %w", err)
	}
	switch res {
	case credential.Consumed:
	case credential.NonceMismatch:
		out.Kind = NonceMismatch
		return out, nil
	case credential.Expired:
		out.Kind = Expired
		return out, nil
	default:
		out.Kind = NoActiveCredential
		return out, nil
	}

	ts := attempt.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	rec, err := s.ledger.Append(ctx, ledger.Entry{
		StudentID: payload.StudentID,
		Timestamp: ts,
		Location:  *attempt.Location,
		Nonce:     payload.Nonce,
		ScannedBy: attempt.ActorID,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateForDay) {
			out.Kind = DuplicateForDay
			return out, nil
		}
		return Outcome{}, fmt.Errorf("append attendance: %w", err)
	}

	out.Kind = Accepted
	out.Record = &rec
	return out, nil
}

// ListAllAttendance returns every record in insertion order.
func (s *Service) ListAllAttendance(ctx context.Context) ([]ledger.Record, error) {
	return s.ledger.ListAll(ctx)
}

// ListAttendanceFor returns one student's records in insertion order.
func (s *Service) ListAttendanceFor(ctx context.Context, studentID string) ([]ledger.Record, error) {
	return s.ledger.ListFor(ctx, studentID)
}

// Student resolves a single student.
func (s *Service) Student(ctx context.Context, studentID string) (directory.Student, error) {
	return s.dir.Resolve(ctx, studentID)
}

// Students lists the roster.
func (s *Service) Students(ctx context.Context) ([]directory.Student, error) {
	return s.dir.List(ctx)
}

// CredentialTTL is the validity window applied to newly issued credentials.
func (s *Service) CredentialTTL() time.Duration {
	return s.issuer.TTL()
}

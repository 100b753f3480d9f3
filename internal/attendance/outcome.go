package attendance

import (
	"time"

	"qrattend/internal/ledger"
)

// OutcomeKind classifies the result of a scan validation.
type OutcomeKind string

const (
	Accepted           OutcomeKind = "accepted"
	MalformedPayload   OutcomeKind = "malformed_payload"
	UnknownStudent     OutcomeKind = "unknown_student"
	MissingLocation    OutcomeKind = "missing_location"
	NoActiveCredential OutcomeKind = "no_active_credential"
	NonceMismatch      OutcomeKind = "nonce_mismatch"
	Expired            OutcomeKind = "expired"
	DuplicateForDay    OutcomeKind = "duplicate_for_day"
)

var messages = map[OutcomeKind]string{
	Accepted:           "Attendance marked successfully",
	MalformedPayload:   "QR code could not be read",
	UnknownStudent:     "Student not found",
	MissingLocation:    "Scanner location is required",
	NoActiveCredential: "QR code already used or not issued, please regenerate",
	NonceMismatch:      "QR code is no longer valid, please regenerate",
	Expired:            "QR code expired, please regenerate",
	DuplicateForDay:    "Attendance already marked today",
}

// Message is the user-facing text for the outcome.
func (k OutcomeKind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return string(k)
}

// ScanAttempt is one presentation of a QR payload. It is never stored.
type ScanAttempt struct {
	RawPayload string
	// Location is nil when the scanner did not report one.
	Location  *ledger.Location
	Timestamp time.Time
	ActorID   string
}

// Outcome is the decision for a scan attempt. Record is set only when Kind
// is Accepted. StudentID is set once the payload has been decoded.
type Outcome struct {
	Kind      OutcomeKind
	StudentID string
	Record    *ledger.Record
}

func (o Outcome) Accepted() bool { return o.Kind == Accepted }

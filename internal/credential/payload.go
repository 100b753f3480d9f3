package credential

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Payload is what a scanner reads back out of a QR code.
type Payload struct {
	StudentID string
	RollNo    string
	Nonce     string
	IssuedAt  time.Time
}

type payloadClaims struct {
	StudentID string `json:"sid"`
	RollNo    string `json:"roll,omitempty"`
	Nonce     string `json:"nonce"`
	jwt.RegisteredClaims
}

// Codec turns credentials into signed, compact QR payloads and back.
// Payloads carry no expiry; the store decides whether a nonce is still live.
type Codec struct {
	key []byte
}

func NewCodec(signingKey string) *Codec {
	return &Codec{key: []byte(signingKey)}
}

// Encode signs the credential fields a scanner needs.
func (c *Codec) Encode(cred Credential) (string, error) {
	claims := payloadClaims{
		StudentID: cred.StudentID,
		RollNo:    cred.RollNo,
		Nonce:     cred.Nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(cred.IssuedAt),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign payload: %w", err)
	}
	return raw, nil
}

// Decode verifies raw and returns its fields. Any failure wraps ErrMalformedPayload.
func (c *Codec) Decode(raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, fmt.Errorf("%w: empty", ErrMalformedPayload)
	}
	var claims payloadClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if claims.StudentID == "" || claims.Nonce == "" {
		return Payload{}, fmt.Errorf("%w: missing student or nonce", ErrMalformedPayload)
	}

	p := Payload{StudentID: claims.StudentID, RollNo: claims.RollNo, Nonce: claims.Nonce}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return p, nil
}

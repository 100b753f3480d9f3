package credential_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/credential"
)

func TestPayloadRoundTrip(t *testing.T) {
	codec := credential.NewCodec("qr-secret")
	c := cred("s1", "opaque-nonce_value", t0.Add(credential.DefaultTTL))
	c.RollNo = "CS001"
	c.IssuedAt = t0

	raw, err := codec.Encode(c)
	require.NoError(t, err)

	p, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, c.StudentID, p.StudentID)
	assert.Equal(t, c.Nonce, p.Nonce)
	assert.Equal(t, "CS001", p.RollNo)
	assert.True(t, t0.Equal(p.IssuedAt))
}

func TestPayloadDecodeRejects(t *testing.T) {
	codec := credential.NewCodec("qr-secret")
	good, err := codec.Encode(cred("s1", "n1", t0))
	require.NoError(t, err)

	otherKey, err := credential.NewCodec("other").Encode(cred("s1", "n1", t0))
	require.NoError(t, err)

	noNonce, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sid": "s1"}).SignedString([]byte("qr-secret"))
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"sid":"s2","nonce":"n1"}`))
	tampered := strings.Join(parts, ".")

	cases := map[string]string{
		"empty":        "   ",
		"json":         `{"studentId":"s1","nonce":"n1"}`,
		"tampered":     tampered,
		"wrong key":    otherKey,
		"missing part": strings.SplitN(good, ".", 2)[0],
		"no nonce":     noNonce,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decode(raw)
			assert.ErrorIs(t, err, credential.ErrMalformedPayload)
		})
	}
}

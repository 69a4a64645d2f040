package authsession

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testCodecConfig() CodecConfig {
	return CodecConfig{
		SigningKey:   "test-secret-key-that-is-at-least-32-bytes-long",
		Algorithm:    "HS256",
		AccessTTLMs:  60_000,
		RefreshTTLMs: 3_600_000,
		ClockSkew:    0,
		Issuer:       "test.authsession",
	}
}

func setupTestCodec(t *testing.T, opts ...CodecOption) *Codec {
	t.Helper()
	codec, err := NewCodec(testCodecConfig(), opts...)
	require.NoError(t, err)
	return codec
}

func mustSubject(t *testing.T, raw string) Subject {
	t.Helper()
	s, err := NewSubject(raw)
	require.NoError(t, err)
	return s
}

// Round-trip preserves type, subject, and role claim.
func TestCodec_IssueAndDecode_RoundTrip(t *testing.T) {
	codec := setupTestCodec(t)
	subject := mustSubject(t, "user-1")

	access, err := codec.IssueAccess(subject, RoleUser)
	require.NoError(t, err)

	decoded, err := codec.Decode(access.Encoded())
	require.NoError(t, err)

	require.True(t, decoded.IsAccess())
	require.Equal(t, subject, decoded.Subject())
	role, ok := decoded.RoleClaim()
	require.True(t, ok)
	require.Equal(t, RoleUser, role)
}

func TestCodec_IssueRefresh_HasRefreshTokenUse(t *testing.T) {
	codec := setupTestCodec(t)
	subject := mustSubject(t, "user-1")

	refresh, err := codec.IssueRefresh(subject, "")
	require.NoError(t, err)
	require.True(t, refresh.IsRefresh())

	use, ok := refresh.Claims().ClaimString(ClaimTokenUse)
	require.True(t, ok)
	require.Equal(t, TokenUseRefresh, use)
}

// A mutated signature must fail decode, not silently decode.
func TestCodec_Decode_TamperedSignature(t *testing.T) {
	codec := setupTestCodec(t)
	access, err := codec.IssueAccess(mustSubject(t, "user-1"), "")
	require.NoError(t, err)

	raw := []byte(access.Encoded().String())
	raw[len(raw)-1] ^= 0xFF
	tampered, err := NewEncodedToken(string(raw))
	require.NoError(t, err)

	_, err = codec.Decode(tampered)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBadSignature) || errors.Is(err, ErrMalformed))
}

// An expired token decodes to ErrExpired specifically, not a generic
// signature failure.
func TestCodec_Decode_Expired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	codec := setupTestCodec(t, WithClock(func() time.Time { return clock() }))

	access, err := codec.IssueAccess(mustSubject(t, "user-1"), "")
	require.NoError(t, err)

	clock = func() time.Time { return now.Add(61 * time.Second) }

	_, err = codec.Decode(access.Encoded())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrExpired))
}

func TestCodec_Decode_RejectsUnknownHeaderType(t *testing.T) {
	codec := setupTestCodec(t)
	_, err := ParseJwtType("unknown")
	require.Error(t, err)
	require.NotPanics(t, func() {
		_, _ = codec.Decode(EncodedToken{})
	})

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         "user-1",
		"iat":         jwt.NewNumericDate(now),
		"exp":         jwt.NewNumericDate(now.Add(time.Minute)),
		"iss":         "test.authsession",
		ClaimTokenUse: TokenUseAccess,
	})
	token.Header["typ"] = "unknown"
	signed, err := token.SignedString(codec.key)
	require.NoError(t, err)
	encoded, err := NewEncodedToken(signed)
	require.NoError(t, err)

	_, err = codec.Decode(encoded)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownType))
}

func TestCodec_Decode_EmptyToken(t *testing.T) {
	codec := setupTestCodec(t)
	_, err := codec.Decode(EncodedToken{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMalformed))
}

func TestNewCodec_RejectsShortSigningKey(t *testing.T) {
	_, err := NewCodec(CodecConfig{
		SigningKey:   "too-short",
		Algorithm:    "HS256",
		AccessTTLMs:  1000,
		RefreshTTLMs: 1000,
	})
	require.Error(t, err)
}

func TestNewCodec_RejectsUnsupportedAlgorithm(t *testing.T) {
	cfg := testCodecConfig()
	cfg.Algorithm = "RS256"
	_, err := NewCodec(cfg)
	require.Error(t, err)
}

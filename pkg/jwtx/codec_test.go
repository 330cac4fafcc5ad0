package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/lanternauth/lantern/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var (
	testSigningKey    = []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	testEncryptionKey = []byte("0123456789abcdef")
)

func newTestCodec(t *testing.T, clock func() time.Time) *jwtx.Codec {
	t.Helper()

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		SigningKey:    testSigningKey,
		EncryptionKey: testEncryptionKey,
		Issuer:        "lantern",
		Clock:         clock,
	})
	require.NoError(t, err)
	return codec
}

func TestNewCodecRejectsBadKeyMaterial(t *testing.T) {
	t.Run("short signing key", func(t *testing.T) {
		_, err := jwtx.NewCodec(jwtx.CodecConfig{
			SigningKey:    []byte("too-short"),
			EncryptionKey: testEncryptionKey,
			Issuer:        "lantern",
		})
		require.Error(t, err)
	})

	t.Run("32 byte signing key below HS512 minimum", func(t *testing.T) {
		_, err := jwtx.NewCodec(jwtx.CodecConfig{
			SigningKey:    testSigningKey[:32],
			EncryptionKey: testEncryptionKey,
			Issuer:        "lantern",
		})
		require.ErrorContains(t, err, "signing key must be at least 64 bytes")
	})

	t.Run("wrong encryption key size", func(t *testing.T) {
		_, err := jwtx.NewCodec(jwtx.CodecConfig{
			SigningKey:    testSigningKey,
			EncryptionKey: []byte("way-too-short"),
			Issuer:        "lantern",
		})
		require.Error(t, err)
	})

	t.Run("missing issuer", func(t *testing.T) {
		_, err := jwtx.NewCodec(jwtx.CodecConfig{
			SigningKey:    testSigningKey,
			EncryptionKey: testEncryptionKey,
		})
		require.Error(t, err)
	})
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	codec := newTestCodec(t, nil)

	in := jwtx.Claims{
		Username: "ada",
		Email:    "ada@example.com",
		Phone:    "+61400000001",
		Roles:    []string{"member"},
		Stamp:    "stamp-1",
	}
	in.Subject = "user-1"

	raw, err := codec.Issue(in, time.Now().Add(time.Hour))
	require.NoError(t, err)

	// Nested JWT: five JWE segments, payload opaque without the keys.
	require.Len(t, strings.Split(raw, "."), 5)
	require.NotContains(t, raw, "ada@example.com")

	out, err := codec.Validate(raw, jwtx.ValidateOptions{CheckExpiry: true})
	require.NoError(t, err)
	require.Equal(t, "user-1", out.Subject)
	require.Equal(t, "ada", out.Username)
	require.Equal(t, "stamp-1", out.Stamp)
	require.Equal(t, "lantern", out.Issuer)
	require.Contains(t, out.Audience, jwtx.WildcardAudience)
	require.NotEmpty(t, out.ID)
}

func TestValidateClassifiesFailures(t *testing.T) {
	codec := newTestCodec(t, nil)

	t.Run("garbage is malformed", func(t *testing.T) {
		_, err := codec.Validate("not-a-token", jwtx.ValidateOptions{CheckExpiry: true})
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("foreign keys fail integrity", func(t *testing.T) {
		other, err := jwtx.NewCodec(jwtx.CodecConfig{
			SigningKey:    []byte("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
			EncryptionKey: []byte("ffffffffffffffff"),
			Issuer:        "lantern",
		})
		require.NoError(t, err)

		raw, err := other.Issue(jwtx.Claims{}, time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = codec.Validate(raw, jwtx.ValidateOptions{CheckExpiry: true})
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("issuer mismatch", func(t *testing.T) {
		other, err := jwtx.NewCodec(jwtx.CodecConfig{
			SigningKey:    testSigningKey,
			EncryptionKey: testEncryptionKey,
			Issuer:        "someone-else",
		})
		require.NoError(t, err)

		raw, err := other.Issue(jwtx.Claims{}, time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = codec.Validate(raw, jwtx.ValidateOptions{CheckExpiry: true})
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("audience mismatch", func(t *testing.T) {
		other, err := jwtx.NewCodec(jwtx.CodecConfig{
			SigningKey:    testSigningKey,
			EncryptionKey: testEncryptionKey,
			Issuer:        "lantern",
			Audience:      "mobile-app",
		})
		require.NoError(t, err)

		raw, err := other.Issue(jwtx.Claims{}, time.Now().Add(time.Hour))
		require.NoError(t, err)

		_, err = codec.Validate(raw, jwtx.ValidateOptions{CheckExpiry: true})
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})
}

func TestValidateLifetime(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	now := t0
	codec := newTestCodec(t, func() time.Time { return now })

	raw, err := codec.Issue(jwtx.Claims{}, t0.Add(60*time.Minute))
	require.NoError(t, err)

	t.Run("valid one minute before expiry", func(t *testing.T) {
		now = t0.Add(59 * time.Minute)
		_, err := codec.Validate(raw, jwtx.ValidateOptions{CheckExpiry: true})
		require.NoError(t, err)
	})

	t.Run("expired one minute after expiry", func(t *testing.T) {
		now = t0.Add(61 * time.Minute)
		_, err := codec.Validate(raw, jwtx.ValidateOptions{CheckExpiry: true})
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("expired token recoverable without expiry check", func(t *testing.T) {
		now = t0.Add(61 * time.Minute)
		claims, err := codec.Validate(raw, jwtx.ValidateOptions{CheckExpiry: false})
		require.NoError(t, err)
		require.Equal(t, "lantern", claims.Issuer)
	})

	t.Run("not yet valid before nbf", func(t *testing.T) {
		now = t0.Add(-time.Minute)
		_, err := codec.Validate(raw, jwtx.ValidateOptions{CheckExpiry: true})
		require.ErrorIs(t, err, jwtx.ErrNotYetValid)
	})

	t.Run("missing expiration claim", func(t *testing.T) {
		// Mint a token without exp through go-jose directly; the codec
		// always stamps one, so this only happens with foreign tooling.
		signer, err := jose.NewSigner(
			jose.SigningKey{Algorithm: jose.HS512, Key: testSigningKey},
			(&jose.SignerOptions{}).WithType("JWT"),
		)
		require.NoError(t, err)
		encrypter, err := jose.NewEncrypter(
			jose.A128CBC_HS256,
			jose.Recipient{Algorithm: jose.A128KW, Key: testEncryptionKey},
			(&jose.EncrypterOptions{}).WithType("JWT").WithContentType("JWT"),
		)
		require.NoError(t, err)

		claims := jwt.Claims{Issuer: "lantern", Audience: jwt.Audience{"*"}}
		eternal, err := jwt.SignedAndEncrypted(signer, encrypter).Claims(claims).Serialize()
		require.NoError(t, err)

		now = t0
		_, err = codec.Validate(eternal, jwtx.ValidateOptions{CheckExpiry: true})
		require.ErrorIs(t, err, jwtx.ErrNoExpiration)
	})

	t.Run("leeway tolerates skew", func(t *testing.T) {
		lenient, err := jwtx.NewCodec(jwtx.CodecConfig{
			SigningKey:    testSigningKey,
			EncryptionKey: testEncryptionKey,
			Issuer:        "lantern",
			Leeway:        2 * time.Minute,
			Clock:         func() time.Time { return now },
		})
		require.NoError(t, err)

		now = t0.Add(61 * time.Minute)
		_, err = lenient.Validate(raw, jwtx.ValidateOptions{CheckExpiry: true})
		require.NoError(t, err)
	})
}

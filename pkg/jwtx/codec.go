package jwtx

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const (
	// MinSigningKeySize is the smallest HS512 key we accept. go-jose refuses
	// HMAC keys shorter than the hash output, so anything under 64 bytes
	// would pass construction only to fail every Issue call.
	MinSigningKeySize = 64

	// EncryptionKeySize is fixed by the A128KW key-wrap algorithm.
	EncryptionKeySize = 16
)

// ValidateOptions controls how much of the claim set Validate enforces.
// CheckExpiry is true for the normal bearer path; the refresh flow disables
// it so an expired token's identity can still be recovered.
type ValidateOptions struct {
	CheckExpiry bool
}

// Codec mints and verifies the service's access tokens. Tokens are nested
// JWTs: an HS512-signed JWS wrapped in a JWE using A128KW key wrap with
// A128CBC-HS256 content encryption, so holders cannot inspect or alter the
// payload while the token stays fully self-contained.
//
// A Codec is immutable once constructed and safe for concurrent use.
type Codec struct {
	signingKey    []byte
	encryptionKey []byte
	issuer        string
	audience      string
	leeway        time.Duration

	now func() time.Time
}

// CodecConfig carries the key material and claim expectations for a Codec.
type CodecConfig struct {
	// SigningKey is the HMAC-SHA512 key, at least MinSigningKeySize (64) bytes.
	SigningKey []byte

	// EncryptionKey is the AES-128 key-wrap key, exactly EncryptionKeySize bytes.
	EncryptionKey []byte

	// Issuer is the application scheme name stamped into and required of
	// every token.
	Issuer string

	// Audience defaults to WildcardAudience.
	Audience string

	// Leeway tolerates clock skew on exp/nbf checks. Defaults to zero.
	Leeway time.Duration

	// Clock overrides the time source. Nil means time.Now. Tests only.
	Clock func() time.Time
}

// NewCodec validates the key material and returns a ready Codec. Bad or
// missing keys are a configuration error: fail startup, don't limp along.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.SigningKey) < MinSigningKeySize {
		return nil, fmt.Errorf("jwtx: signing key must be at least %d bytes, got %d", MinSigningKeySize, len(cfg.SigningKey))
	}
	if len(cfg.EncryptionKey) != EncryptionKeySize {
		return nil, fmt.Errorf("jwtx: encryption key must be exactly %d bytes, got %d", EncryptionKeySize, len(cfg.EncryptionKey))
	}
	if cfg.Issuer == "" {
		return nil, errors.New("jwtx: issuer is required")
	}

	audience := cfg.Audience
	if audience == "" {
		audience = WildcardAudience
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Codec{
		signingKey:    cfg.SigningKey,
		encryptionKey: cfg.EncryptionKey,
		issuer:        cfg.Issuer,
		audience:      audience,
		leeway:        cfg.Leeway,
		now:           clock,
	}, nil
}

// Issue serializes claims into a signed and encrypted token expiring at the
// given time. The registered claims (iss, aud, iat, nbf, exp, jti) are owned
// by the codec and overwritten.
func (c *Codec) Issue(claims Claims, expiry time.Time) (string, error) {
	now := c.now().UTC()

	claims.Issuer = c.issuer
	claims.Audience = jwt.Audience{c.audience}
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.Expiry = jwt.NewNumericDate(expiry)
	claims.ID = NewJTI()

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS512, Key: c.signingKey},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("jwtx: build signer: %w", err)
	}

	encrypter, err := jose.NewEncrypter(
		jose.A128CBC_HS256,
		jose.Recipient{Algorithm: jose.A128KW, Key: c.encryptionKey},
		(&jose.EncrypterOptions{}).WithType("JWT").WithContentType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("jwtx: build encrypter: %w", err)
	}

	raw, err := jwt.SignedAndEncrypted(signer, encrypter).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("jwtx: serialize token: %w", err)
	}
	return raw, nil
}

// Validate decrypts and verifies a token, returning its claims. Failures are
// classified into the package's sentinel errors; callers should use
// errors.Is rather than matching messages.
func (c *Codec) Validate(raw string, opts ValidateOptions) (*Claims, error) {
	if len(c.signingKey) == 0 || len(c.encryptionKey) == 0 {
		return nil, ErrKeyNotFound
	}

	nested, err := jwt.ParseSignedAndEncrypted(raw,
		[]jose.KeyAlgorithm{jose.A128KW},
		[]jose.ContentEncryption{jose.A128CBC_HS256},
		[]jose.SignatureAlgorithm{jose.HS512},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	inner, err := nested.Decrypt(c.encryptionKey)
	if err != nil {
		// Decryption only fails when the token was not produced with our
		// key-wrap key, which is an integrity failure, not a parse error.
		return nil, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}

	var claims Claims
	if err := inner.Claims(c.signingKey, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}

	if !slices.Contains(claims.Audience, c.audience) {
		return nil, ErrAudience
	}
	if claims.Issuer != c.issuer {
		return nil, ErrIssuer
	}

	if opts.CheckExpiry {
		if err := c.validateLifetime(&claims); err != nil {
			return nil, err
		}
	}

	return &claims, nil
}

func (c *Codec) validateLifetime(claims *Claims) error {
	if claims.Expiry == nil {
		return ErrNoExpiration
	}

	now := c.now().UTC()
	if now.After(claims.Expiry.Time().Add(c.leeway)) {
		return ErrExpired
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time().Add(-c.leeway)) {
		return ErrNotYetValid
	}
	return nil
}

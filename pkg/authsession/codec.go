package authsession

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer mints signed tokens. Implemented by Codec.
type Issuer interface {
	IssueAccess(subject Subject, role Role) (Jwt, error)
	IssueRefresh(subject Subject, role Role) (Jwt, error)
}

// Decoder converts a wire token back into a validated Jwt, verifying
// signature, freshness, and every Jwt invariant. Implemented by Codec.
type Decoder interface {
	Decode(encoded EncodedToken) (Jwt, error)
}

// Codec is the cryptographic codec: it signs Jwt values at issuance and
// verifies+reconstructs them at decode time. Codec performs no I/O;
// signing key material is read-only after construction.
type Codec struct {
	cfg           CodecConfig
	signingMethod jwt.SigningMethod
	key           []byte
	clock         func() time.Time
}

// CodecOption customises Codec construction; used by tests to inject a
// deterministic clock.
type CodecOption func(*Codec)

// WithClock overrides the codec's notion of "now". Production callers
// never need this; it exists for deterministic tests of expiry and skew.
func WithClock(clock func() time.Time) CodecOption {
	return func(c *Codec) { c.clock = clock }
}

// NewCodec validates cfg and constructs a Codec. Mirrors gourdiantoken's
// initializeSigningMethod/validateConfig split, simplified to the HMAC-only
// algorithms this engine supports.
func NewCodec(cfg CodecConfig, opts ...CodecOption) (*Codec, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	}

	c := &Codec{
		cfg:           cfg,
		signingMethod: method,
		key:           []byte(cfg.SigningKey),
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) now() time.Time { return c.clock() }

// IssueAccess mints a signed access token for subject, with an optional
// role claim.
func (c *Codec) IssueAccess(subject Subject, role Role) (Jwt, error) {
	return c.issue(Access, subject, role, c.cfg.AccessTTLMs)
}

// IssueRefresh mints a signed refresh token for subject.
func (c *Codec) IssueRefresh(subject Subject, role Role) (Jwt, error) {
	return c.issue(Refresh, subject, role, c.cfg.RefreshTTLMs)
}

func (c *Codec) issue(typ JwtType, subject Subject, role Role, ttlMs int64) (Jwt, error) {
	if subject.IsZero() {
		return Jwt{}, wrap(ErrIssueFailed, fmt.Errorf("authsession: subject is required"))
	}

	now := c.now()
	issued := NewIssued(now)
	expiration := NewExpirationFromTTL(issued, ttlMs)

	claimValues := map[string]interface{}{
		ClaimTokenUse: typ.tokenUse(),
		ClaimJTI:      uuid.NewString(),
	}
	if role != "" {
		claimValues[ClaimRole] = role.String()
	}
	claims := NewClaims(claimValues)

	token := jwt.NewWithClaims(c.signingMethod, jwtMapClaims(subject, issued, expiration, claims, c.cfg.Issuer))
	token.Header["typ"] = typ.Header()

	signed, err := token.SignedString(c.key)
	if err != nil {
		return Jwt{}, wrap(ErrIssueFailed, fmt.Errorf("authsession: sign token: %w", err))
	}

	encoded, err := NewEncodedToken(signed)
	if err != nil {
		return Jwt{}, wrap(ErrIssueFailed, err)
	}

	jwtToken, err := NewJwt(encoded, typ, subject, claims, issued, expiration)
	if err != nil {
		return Jwt{}, wrap(ErrIssueFailed, err)
	}
	return jwtToken, nil
}

// jwtMapClaims assembles the wire payload: sub, iat, exp, plus every
// application claim from claims (token_use, role, jti).
func jwtMapClaims(subject Subject, issued Issued, expiration Expiration, claims Claims, issuerName string) jwt.MapClaims {
	mc := jwt.MapClaims{
		"sub": subject.String(),
		"iat": jwt.NewNumericDate(issued.Time()),
		"exp": jwt.NewNumericDate(expiration.Time()),
	}
	for k, v := range claims.Map() {
		mc[k] = v
	}
	if issuerName != "" {
		mc["iss"] = issuerName
	}
	return mc
}

// Decode parses, verifies, and reconstructs a Jwt from its wire form.
// Steps, in order:
//  1. parse compact form and verify signature;
//  2. verify exp > now (within clock skew);
//  3. verify the header typ tag parses to a JwtType;
//  4. reconstruct Claims;
//  5. validate the full Jwt invariants via NewJwt.
//
// Each step fails with a distinct sentinel; callers at the orchestration
// layer collapse all of them into a single InvalidJwt so that a caller
// probing for a valid token can't learn which check actually failed.
func (c *Codec) Decode(encoded EncodedToken) (Jwt, error) {
	if encoded.IsZero() {
		return Jwt{}, wrap(ErrMalformed, fmt.Errorf("authsession: empty token"))
	}

	var headerTyp string
	// Claims validation (exp/nbf/iat) is performed manually below so that
	// expiry failures are reported as ErrExpired rather than folded into
	// a generic signature/structure error; the parser here only confirms
	// well-formedness and signature authenticity.
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, err := parser.Parse(encoded.String(), func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != c.signingMethod.Alg() {
			return nil, fmt.Errorf("authsession: unexpected signing method %q", token.Header["alg"])
		}
		if typ, ok := token.Header["typ"].(string); ok {
			headerTyp = typ
		}
		return c.key, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Jwt{}, wrap(ErrMalformed, err)
		}
		return Jwt{}, wrap(ErrBadSignature, err)
	}
	if !parsed.Valid {
		return Jwt{}, wrap(ErrBadSignature, fmt.Errorf("authsession: token failed validation"))
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Jwt{}, wrap(ErrMalformed, fmt.Errorf("authsession: unexpected claims shape"))
	}

	typ, err := ParseJwtType(headerTyp)
	if err != nil {
		return Jwt{}, wrap(ErrUnknownType, err)
	}

	subjectRaw, _ := mapClaims["sub"].(string)
	subject, err := NewSubject(subjectRaw)
	if err != nil {
		return Jwt{}, wrap(ErrClaimMismatch, err)
	}

	issuedAt, err := mapClaims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return Jwt{}, wrap(ErrClaimMismatch, fmt.Errorf("authsession: missing or invalid iat"))
	}
	expiresAt, err := mapClaims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return Jwt{}, wrap(ErrClaimMismatch, fmt.Errorf("authsession: missing or invalid exp"))
	}

	issued := NewIssued(issuedAt.Time)
	expiration := NewExpiration(expiresAt.Time)

	if expiration.IsExpired(c.now(), c.cfg.ClockSkew) {
		return Jwt{}, wrap(ErrExpired, fmt.Errorf("authsession: token expired at %s", expiration.Time()))
	}

	if c.cfg.Issuer != "" {
		if iss, _ := mapClaims["iss"].(string); iss != c.cfg.Issuer {
			return Jwt{}, wrap(ErrClaimMismatch, fmt.Errorf("authsession: unexpected issuer %q", iss))
		}
	}

	appClaims := make(map[string]interface{}, len(mapClaims))
	for k, v := range mapClaims {
		switch k {
		case "sub", "iat", "exp", "nbf", "iss", "aud":
			continue
		default:
			appClaims[k] = v
		}
	}
	claims := NewClaims(appClaims)

	jwtToken, err := NewJwt(encoded, typ, subject, claims, issued, expiration)
	if err != nil {
		return Jwt{}, wrap(ErrClaimMismatch, err)
	}
	return jwtToken, nil
}

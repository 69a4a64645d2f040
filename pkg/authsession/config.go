package authsession

import (
	"fmt"
	"time"
)

// CodecConfig enumerates the codec's configuration surface: signing key
// and algorithm, token lifetimes, and the clock skew tolerance applied at
// decode time.
type CodecConfig struct {
	// SigningKey is the HMAC secret used to sign and verify tokens. A
	// single shared secret per deployment; multi-tenant key management is
	// out of scope.
	SigningKey string

	// Algorithm selects the HMAC variant: HS256, HS384, or HS512.
	Algorithm string

	// AccessTTLMs and RefreshTTLMs are the configured lifetimes for each
	// token type, in milliseconds.
	AccessTTLMs  int64
	RefreshTTLMs int64

	// ClockSkew tolerates a small amount of clock drift between issuer
	// and verifier when checking exp.
	ClockSkew time.Duration

	// Issuer, if non-empty, is asserted on decode against a single-issuer
	// deployment.
	Issuer string
}

// Validate checks the configuration is usable. Called once at codec
// construction, mirroring gourdiantoken's validateConfig.
func (c CodecConfig) Validate() error {
	if len(c.SigningKey) < 32 {
		return fmt.Errorf("authsession: signing key must be at least 32 bytes")
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("authsession: unsupported algorithm %q", c.Algorithm)
	}
	if c.AccessTTLMs <= 0 {
		return fmt.Errorf("authsession: access ttl must be positive")
	}
	if c.RefreshTTLMs <= 0 {
		return fmt.Errorf("authsession: refresh ttl must be positive")
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("authsession: clock skew must not be negative")
	}
	return nil
}

package authsession

import "fmt"

// Jwt is a typed token: encoded wire form, its JwtType, the subject it was
// issued to, its claims, and its issued/expiration timestamps.
//
// Construction enforces:
//   - all attributes are set (no zero EncodedToken/Subject/JwtType);
//   - claims contain a mandatory token_use claim drawn from
//     {"access", "refresh"};
//   - token_use agrees with Type;
//   - issued < expiration.
type Jwt struct {
	encoded    EncodedToken
	typ        JwtType
	subject    Subject
	claims     Claims
	issued     Issued
	expiration Expiration
}

// NewJwt validates and constructs a Jwt. Every invariant above is enforced
// here, so a constructed Jwt can never be caught violating them downstream.
func NewJwt(encoded EncodedToken, typ JwtType, subject Subject, claims Claims, issued Issued, expiration Expiration) (Jwt, error) {
	if encoded.IsZero() {
		return Jwt{}, fmt.Errorf("authsession: jwt requires a non-empty encoded token")
	}
	if typ.IsZero() {
		return Jwt{}, fmt.Errorf("authsession: jwt requires a type")
	}
	if subject.IsZero() {
		return Jwt{}, fmt.Errorf("authsession: jwt requires a subject")
	}
	if claims.Len() == 0 {
		return Jwt{}, fmt.Errorf("authsession: jwt requires non-empty claims")
	}

	use, ok := claims.ClaimString(ClaimTokenUse)
	if !ok {
		return Jwt{}, fmt.Errorf("authsession: jwt claims missing %s", ClaimTokenUse)
	}
	if use != TokenUseAccess && use != TokenUseRefresh {
		return Jwt{}, fmt.Errorf("authsession: jwt claim %s has unrecognised value %q", ClaimTokenUse, use)
	}
	if use != typ.tokenUse() {
		return Jwt{}, fmt.Errorf("authsession: jwt claim %s=%q does not match type %s", ClaimTokenUse, use, typ)
	}

	if !issued.Time().Before(expiration.Time()) {
		return Jwt{}, fmt.Errorf("authsession: jwt issued (%s) must be before expiration (%s)", issued.Time(), expiration.Time())
	}

	return Jwt{
		encoded:    encoded,
		typ:        typ,
		subject:    subject,
		claims:     claims,
		issued:     issued,
		expiration: expiration,
	}, nil
}

func (j Jwt) Encoded() EncodedToken   { return j.encoded }
func (j Jwt) Type() JwtType           { return j.typ }
func (j Jwt) Subject() Subject        { return j.subject }
func (j Jwt) Claims() Claims          { return j.claims }
func (j Jwt) Issued() Issued          { return j.issued }
func (j Jwt) Expiration() Expiration  { return j.expiration }
func (j Jwt) IsAccess() bool          { return j.typ.Equal(Access) }
func (j Jwt) IsRefresh() bool         { return j.typ.Equal(Refresh) }

// RoleClaim returns the token's role claim, if present and recognised.
func (j Jwt) RoleClaim() (Role, bool) {
	raw, ok := j.claims.ClaimString(ClaimRole)
	if !ok {
		return "", false
	}
	return ParseRole(raw)
}

package authsession

import "fmt"

// JwtType is a sum type with exactly two variants: ACCESS and REFRESH.
// Each carries a distinct header "typ" tag so the wire form self-describes
// which kind of token it is, independent of the token_use claim.
type JwtType struct {
	name   string
	header string
}

var (
	Access  = JwtType{name: "ACCESS", header: "at+jwt"}
	Refresh = JwtType{name: "REFRESH", header: "rt+jwt"}
)

func (t JwtType) String() string { return t.name }

// Header returns the JWT header "typ" tag for this type, e.g. "at+jwt".
func (t JwtType) Header() string { return t.header }

// IsZero reports the unset zero value of JwtType (neither Access nor
// Refresh), which is never a valid Jwt.Type.
func (t JwtType) IsZero() bool { return t.header == "" }

func (t JwtType) Equal(other JwtType) bool { return t.header == other.header }

// tokenUse returns the token_use claim value this type requires.
func (t JwtType) tokenUse() string {
	if t.Equal(Access) {
		return TokenUseAccess
	}
	return TokenUseRefresh
}

// ParseJwtType parses a header "typ" tag into a JwtType. Unknown tags fail
// rather than defaulting to either variant.
func ParseJwtType(header string) (JwtType, error) {
	switch header {
	case Access.header:
		return Access, nil
	case Refresh.header:
		return Refresh, nil
	default:
		return JwtType{}, fmt.Errorf("authsession: unrecognised jwt header type %q", header)
	}
}

package authsession

import "fmt"

// JwtPair aggregates exactly one access Jwt and one refresh Jwt. No
// cross-pair invariant is enforced beyond each component independently
// validating.
type JwtPair struct {
	access  Jwt
	refresh Jwt
}

// NewJwtPair validates that access is an access-type Jwt and refresh is a
// refresh-type Jwt, then constructs the pair.
func NewJwtPair(access, refresh Jwt) (JwtPair, error) {
	if !access.IsAccess() {
		return JwtPair{}, fmt.Errorf("authsession: pair access slot must hold an access token")
	}
	if !refresh.IsRefresh() {
		return JwtPair{}, fmt.Errorf("authsession: pair refresh slot must hold a refresh token")
	}
	return JwtPair{access: access, refresh: refresh}, nil
}

func (p JwtPair) Access() Jwt  { return p.access }
func (p JwtPair) Refresh() Jwt { return p.refresh }

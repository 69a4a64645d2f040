package authsession

import (
	"github.com/google/uuid"
)

// SessionId identifies a persisted session. The zero value (uuid.Nil)
// means "not yet assigned" and backs the unauthenticated lifecycle shape.
type SessionId struct {
	id uuid.UUID
}

// NewSessionId wraps an already-generated uuid.UUID (typically returned by
// the durable store after an insert).
func NewSessionId(id uuid.UUID) SessionId { return SessionId{id: id} }

func (s SessionId) UUID() uuid.UUID { return s.id }
func (s SessionId) IsZero() bool    { return s.id == uuid.Nil }
func (s SessionId) String() string  { return s.id.String() }

// JwtAuthentication is the session aggregate: a user-scoped identity and
// its current token pair. It has two lifecycle shapes:
//
//   - unauthenticated: Id absent (zero SessionId), Pair present — the
//     shape used before the durable store assigns an id;
//   - authenticated: Id present — the shape after persistence.
//
// Equality is identity-based: two authenticated sessions with the same Id
// are equal; unauthenticated sessions are equal only to themselves
// (pointer identity), since they have not yet been assigned a durable
// identity to compare by. Always hold and pass *JwtAuthentication.
type JwtAuthentication struct {
	id     SessionId
	userID Subject
	pair   JwtPair
}

// NewUnauthenticatedSession constructs the pre-persistence shape: no id
// yet, but the token pair is present. The user id never changes for the
// rest of the session's life.
func NewUnauthenticatedSession(userID Subject, pair JwtPair) *JwtAuthentication {
	return &JwtAuthentication{userID: userID, pair: pair}
}

// WithId returns the authenticated shape of the session: the same user id
// and current pair, now carrying the durable store's assigned identity.
// Used by the durable repository after an insert.
func (s *JwtAuthentication) WithId(id SessionId) *JwtAuthentication {
	return &JwtAuthentication{id: id, userID: s.userID, pair: s.pair}
}

func (s *JwtAuthentication) Id() SessionId       { return s.id }
func (s *JwtAuthentication) IsAuthenticated() bool { return !s.id.IsZero() }
func (s *JwtAuthentication) UserID() Subject      { return s.userID }
func (s *JwtAuthentication) Pair() JwtPair        { return s.pair }

// Rotate replaces the session's token pair in place. The id, if any, and
// the user id are preserved — rotate never changes who owns the session.
func (s *JwtAuthentication) Rotate(pair JwtPair) {
	s.pair = pair
}

// Equal is identity-based: authenticated sessions compare by assigned id;
// unauthenticated sessions are equal only to themselves.
func (s *JwtAuthentication) Equal(other *JwtAuthentication) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.IsAuthenticated() && other.IsAuthenticated() {
		return s.id.UUID() == other.id.UUID()
	}
	return s == other
}

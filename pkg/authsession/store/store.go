// Package store declares the two collaborating storage ports the session
// orchestrator depends on: DurableRepository, the record of truth, and
// FastIndex, the presence-only liveness check. Concrete implementations
// (Postgres, Redis) live under internal/ and depend on this package, not
// the other way around.
package store

import (
	"context"
	"time"

	"github.com/authflow/sessionengine/pkg/authsession"
)

// DurableRepository is the durable relational store: the record of truth
// for every session. Save is atomic — either both token rows and the
// session commit, or neither do.
type DurableRepository interface {
	// Save inserts when the session has no id, or updates the row for an
	// already-assigned id. Returns a session with its id populated.
	Save(ctx context.Context, session *authsession.JwtAuthentication) (*authsession.JwtAuthentication, error)

	// FindByAccessToken looks up the session owning encoded as its current
	// access token. Returns (nil, nil) when no session matches.
	FindByAccessToken(ctx context.Context, encoded authsession.EncodedToken) (*authsession.JwtAuthentication, error)

	// FindByRefreshToken looks up the session owning encoded as its
	// current refresh token. Returns (nil, nil) when no session matches.
	FindByRefreshToken(ctx context.Context, encoded authsession.EncodedToken) (*authsession.JwtAuthentication, error)

	// FindAllByUser lists every live session for a user.
	FindAllByUser(ctx context.Context, userID authsession.Subject) ([]*authsession.JwtAuthentication, error)

	// DeleteByID removes a single session.
	DeleteByID(ctx context.Context, id authsession.SessionId) error

	// DeleteAllByUser removes every session owned by a user.
	DeleteAllByUser(ctx context.Context, userID authsession.Subject) error

	// DeleteAllRefreshExpiredBefore removes every session whose refresh
	// token has expired before instant, returning the count removed. Used
	// by the background purger.
	DeleteAllRefreshExpiredBefore(ctx context.Context, instant time.Time) (int64, error)
}

// FastIndex is the presence-only, per-entry-TTL key store used to check
// token liveness without hitting the durable store. Absence means not
// live; presence is necessary but not sufficient — the durable store
// still has the last word.
type FastIndex interface {
	// Save writes both the access and refresh presence keys for pair,
	// atomically, each with TTL = max(1s, expiration-now).
	Save(ctx context.Context, pair authsession.JwtPair) error

	// Delete removes both presence keys for pair, atomically.
	Delete(ctx context.Context, pair authsession.JwtPair) error

	// AccessExists reports whether the access-token presence key exists.
	AccessExists(ctx context.Context, encoded authsession.EncodedToken) (bool, error)

	// RefreshExists reports whether the refresh-token presence key exists.
	RefreshExists(ctx context.Context, encoded authsession.EncodedToken) (bool, error)
}

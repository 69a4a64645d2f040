// Package orchestrator implements session lifecycle management: Grant,
// Verify, Refresh, Revoke, and the background purger, coordinating the
// cryptographic codec with the two session stores. Modelled on the
// logx.Logger-embedding logic structs in
// backend/services/gateway/internal/logic/auth.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"

	"github.com/authflow/sessionengine/pkg/authsession"
	"github.com/authflow/sessionengine/pkg/authsession/store"
)

// Orchestrator wires the codec and the two stores into the four session
// operations. Holds no mutable state of its own beyond its collaborators,
// which are read-only after construction.
type Orchestrator struct {
	logx.Logger

	codec   *authsession.Codec
	durable store.DurableRepository
	fast    store.FastIndex
}

// New constructs an Orchestrator. ctx seeds the embedded logger, following
// the NewXxxLogic(ctx, svcCtx) convention used throughout the gateway's
// logic layer.
func New(ctx context.Context, codec *authsession.Codec, durable store.DurableRepository, fast store.FastIndex) *Orchestrator {
	return &Orchestrator{
		Logger:  logx.WithContext(ctx),
		codec:   codec,
		durable: durable,
		fast:    fast,
	}
}

func causedBy(kind, cause error) error {
	return &authsession.CausedBy{Kind: kind, Cause: cause}
}

// Grant mints a fresh token pair for principal and persists the resulting
// session.
func (o *Orchestrator) Grant(ctx context.Context, principal authsession.Principal) (*authsession.JwtAuthentication, error) {
	access, err := o.codec.IssueAccess(principal.UserID, principal.Role)
	if err != nil {
		return nil, causedBy(authsession.ErrGrantFailed, err)
	}
	refresh, err := o.codec.IssueRefresh(principal.UserID, principal.Role)
	if err != nil {
		return nil, causedBy(authsession.ErrGrantFailed, err)
	}

	pair, err := authsession.NewJwtPair(access, refresh)
	if err != nil {
		return nil, causedBy(authsession.ErrGrantFailed, err)
	}

	session := authsession.NewUnauthenticatedSession(principal.UserID, pair)

	// Durable first: if the fast-index write below fails, the session is
	// still recoverable via a refresh-token Verify.
	session, err = o.durable.Save(ctx, session)
	if err != nil {
		return nil, causedBy(authsession.ErrGrantFailed, fmt.Errorf("authsession: durable save: %w", err))
	}

	if err := o.fast.Save(ctx, session.Pair()); err != nil {
		o.Logger.Errorf("authsession: fast-index save failed after durable commit for session %s: %v", session.Id(), err)
		// Best-effort compensation; an orphaned durable row is swept by
		// the background purger once its refresh token expires.
		if delErr := o.durable.DeleteByID(ctx, session.Id()); delErr != nil {
			o.Logger.Errorf("authsession: compensating delete failed for session %s: %v", session.Id(), delErr)
		}
		return nil, causedBy(authsession.ErrGrantFailed, fmt.Errorf("authsession: fast index save: %w", err))
	}

	return session, nil
}

// jwtType identifies which slot of the pair Verify is checking.
type jwtType int

const (
	verifyAccess jwtType = iota
	verifyRefresh
)

// Verify decodes encoded, confirms it is the expected type, confirms
// liveness via the fast-access index, and retrieves the owning session
// from the durable store. Every failure collapses into a single
// ErrInvalidJwt so that probing callers cannot distinguish cause.
func (o *Orchestrator) Verify(ctx context.Context, encoded authsession.EncodedToken, expected authsession.JwtType) (*authsession.JwtAuthentication, error) {
	jwt, err := o.codec.Decode(encoded)
	if err != nil {
		return nil, causedBy(authsession.ErrInvalidJwt, err)
	}

	if !jwt.Type().Equal(expected) {
		return nil, causedBy(authsession.ErrInvalidJwt, authsession.ErrUnexpectedJwtType)
	}

	kind := verifyAccess
	if jwt.IsRefresh() {
		kind = verifyRefresh
	}

	live, err := o.exists(ctx, kind, encoded)
	if err != nil {
		return nil, causedBy(authsession.ErrInvalidJwt, fmt.Errorf("authsession: fast index lookup: %w", err))
	}
	if !live {
		return nil, causedBy(authsession.ErrInvalidJwt, authsession.ErrNotFound)
	}

	session, err := o.find(ctx, kind, encoded)
	if err != nil {
		return nil, causedBy(authsession.ErrInvalidJwt, fmt.Errorf("authsession: durable lookup: %w", err))
	}
	if session == nil {
		return nil, causedBy(authsession.ErrInvalidJwt, authsession.ErrNotFound)
	}

	return session, nil
}

func (o *Orchestrator) exists(ctx context.Context, kind jwtType, encoded authsession.EncodedToken) (bool, error) {
	if kind == verifyAccess {
		return o.fast.AccessExists(ctx, encoded)
	}
	return o.fast.RefreshExists(ctx, encoded)
}

func (o *Orchestrator) find(ctx context.Context, kind jwtType, encoded authsession.EncodedToken) (*authsession.JwtAuthentication, error) {
	if kind == verifyAccess {
		return o.durable.FindByAccessToken(ctx, encoded)
	}
	return o.durable.FindByRefreshToken(ctx, encoded)
}

// Refresh rotates session's token pair: mints a new pair preserving
// subject and role, commits the durable update, then drops the old
// fast-index entries and writes the new ones. No compensation is
// attempted if the fast-index delete/save fails after the durable update
// commits: retrying here would mean holding a lock across two stores for
// every refresh, which costs more than the rare orphaned key it would
// avoid — an expired TTL cleans it up on its own.
func (o *Orchestrator) Refresh(ctx context.Context, session *authsession.JwtAuthentication) (*authsession.JwtAuthentication, error) {
	old := session.Pair()

	accessRole, _ := old.Access().RoleClaim()
	newAccess, err := o.codec.IssueAccess(old.Access().Subject(), accessRole)
	if err != nil {
		return nil, causedBy(authsession.ErrRefreshFailed, err)
	}
	refreshRole, _ := old.Refresh().RoleClaim()
	newRefresh, err := o.codec.IssueRefresh(old.Refresh().Subject(), refreshRole)
	if err != nil {
		return nil, causedBy(authsession.ErrRefreshFailed, err)
	}

	newPair, err := authsession.NewJwtPair(newAccess, newRefresh)
	if err != nil {
		return nil, causedBy(authsession.ErrRefreshFailed, err)
	}

	session.Rotate(newPair)

	session, err = o.durable.Save(ctx, session)
	if err != nil {
		return nil, causedBy(authsession.ErrRefreshFailed, fmt.Errorf("authsession: durable save: %w", err))
	}

	if err := o.fast.Delete(ctx, old); err != nil {
		o.Logger.Errorf("authsession: fast-index delete of old pair failed for session %s: %v", session.Id(), err)
	}
	if err := o.fast.Save(ctx, session.Pair()); err != nil {
		o.Logger.Errorf("authsession: fast-index save of new pair failed for session %s: %v", session.Id(), err)
		return nil, causedBy(authsession.ErrRefreshFailed, fmt.Errorf("authsession: fast index save: %w", err))
	}

	return session, nil
}

// Revoke removes session's durable row, and, when its pair is known,
// proactively clears the fast-index entries rather than waiting out
// their TTL.
func (o *Orchestrator) Revoke(ctx context.Context, session *authsession.JwtAuthentication) error {
	if err := o.durable.DeleteByID(ctx, session.Id()); err != nil {
		return causedBy(authsession.ErrRevokeFailed, fmt.Errorf("authsession: durable delete: %w", err))
	}

	if err := o.fast.Delete(ctx, session.Pair()); err != nil {
		o.Logger.Errorf("authsession: fast-index delete failed during revoke of session %s: %v", session.Id(), err)
	}

	return nil
}

// Purger periodically sweeps durable rows whose refresh token has
// expired. The fast-index is left untouched; its entries expire on their
// own TTL.
type Purger struct {
	logx.Logger

	durable  store.DurableRepository
	interval time.Duration
	stop     chan struct{}
}

// NewPurger constructs a Purger that ticks every interval once started.
func NewPurger(ctx context.Context, durable store.DurableRepository, interval time.Duration) *Purger {
	return &Purger{
		Logger:   logx.WithContext(ctx),
		durable:  durable,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start launches the purge loop on a background goroutine. Call Stop to
// terminate it.
func (p *Purger) Start(ctx context.Context) {
	threading.GoSafe(func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				count, err := p.durable.DeleteAllRefreshExpiredBefore(ctx, time.Now())
				if err != nil {
					p.Logger.Errorf("authsession: purge tick failed: %v", err)
					continue
				}
				if count > 0 {
					p.Logger.Infof("authsession: purged %d expired session(s)", count)
				}
			case <-p.stop:
				return
			}
		}
	})
}

// Stop terminates the purge loop.
func (p *Purger) Stop() {
	close(p.stop)
}

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/authflow/sessionengine/pkg/authsession"
)

// memoryDurable and memoryFast are in-process fakes standing in for the
// Postgres/Redis adapters, built against this engine's store interfaces
// (pkg/authsession/store).
type memoryDurable struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*authsession.JwtAuthentication
}

func newMemoryDurable() *memoryDurable {
	return &memoryDurable{sessions: make(map[uuid.UUID]*authsession.JwtAuthentication)}
}

func (m *memoryDurable) Save(ctx context.Context, session *authsession.JwtAuthentication) (*authsession.JwtAuthentication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := session.Id()
	if id.IsZero() {
		id = authsession.NewSessionId(uuid.New())
	}
	saved := session.WithId(id)
	m.sessions[id.UUID()] = saved
	return saved, nil
}

func (m *memoryDurable) FindByAccessToken(ctx context.Context, encoded authsession.EncodedToken) (*authsession.JwtAuthentication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Pair().Access().Encoded() == encoded {
			return s, nil
		}
	}
	return nil, nil
}

func (m *memoryDurable) FindByRefreshToken(ctx context.Context, encoded authsession.EncodedToken) (*authsession.JwtAuthentication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Pair().Refresh().Encoded() == encoded {
			return s, nil
		}
	}
	return nil, nil
}

func (m *memoryDurable) FindAllByUser(ctx context.Context, userID authsession.Subject) ([]*authsession.JwtAuthentication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*authsession.JwtAuthentication
	for _, s := range m.sessions {
		if s.UserID() == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryDurable) DeleteByID(ctx context.Context, id authsession.SessionId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id.UUID())
	return nil
}

func (m *memoryDurable) DeleteAllByUser(ctx context.Context, userID authsession.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID() == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memoryDurable) DeleteAllRefreshExpiredBefore(ctx context.Context, instant time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id, s := range m.sessions {
		if s.Pair().Refresh().Expiration().Before(instant) {
			delete(m.sessions, id)
			count++
		}
	}
	return count, nil
}

type memoryFast struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemoryFast() *memoryFast {
	return &memoryFast{keys: make(map[string]struct{})}
}

func (m *memoryFast) Save(ctx context.Context, pair authsession.JwtPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[pair.Access().Encoded().String()] = struct{}{}
	m.keys[pair.Refresh().Encoded().String()] = struct{}{}
	return nil
}

func (m *memoryFast) Delete(ctx context.Context, pair authsession.JwtPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, pair.Access().Encoded().String())
	delete(m.keys, pair.Refresh().Encoded().String())
	return nil
}

func (m *memoryFast) AccessExists(ctx context.Context, encoded authsession.EncodedToken) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[encoded.String()]
	return ok, nil
}

func (m *memoryFast) RefreshExists(ctx context.Context, encoded authsession.EncodedToken) (bool, error) {
	return m.AccessExists(ctx, encoded)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *memoryDurable, *memoryFast) {
	t.Helper()
	codec, err := authsession.NewCodec(authsession.CodecConfig{
		SigningKey:   "test-secret-key-that-is-at-least-32-bytes-long",
		Algorithm:    "HS256",
		AccessTTLMs:  60_000,
		RefreshTTLMs: 3_600_000,
	})
	require.NoError(t, err)

	durable := newMemoryDurable()
	fast := newMemoryFast()
	return New(context.Background(), codec, durable, fast), durable, fast
}

func testPrincipal(t *testing.T) authsession.Principal {
	t.Helper()
	userID, err := authsession.NewSubject("U1")
	require.NoError(t, err)
	return authsession.Principal{UserID: userID, Username: "u1", Role: authsession.RoleUser}
}

func TestGrant_ThenVerifyAccess(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	principal := testPrincipal(t)

	session, err := orch.Grant(context.Background(), principal)
	require.NoError(t, err)
	require.True(t, session.IsAuthenticated())

	verified, err := orch.Verify(context.Background(), session.Pair().Access().Encoded(), authsession.Access)
	require.NoError(t, err)
	require.True(t, verified.Equal(session))
	require.Equal(t, principal.UserID, verified.UserID())

	role, ok := verified.Pair().Access().RoleClaim()
	require.True(t, ok)
	require.Equal(t, authsession.RoleUser, role)
}

func TestGrant_ThenVerifyRefresh(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	session, err := orch.Grant(context.Background(), testPrincipal(t))
	require.NoError(t, err)

	verified, err := orch.Verify(context.Background(), session.Pair().Refresh().Encoded(), authsession.Refresh)
	require.NoError(t, err)
	require.True(t, verified.Equal(session))
}

func TestVerify_TamperedSignature(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	session, err := orch.Grant(context.Background(), testPrincipal(t))
	require.NoError(t, err)

	raw := []byte(session.Pair().Access().Encoded().String())
	raw[len(raw)-1] ^= 0xFF
	tampered, err := authsession.NewEncodedToken(string(raw))
	require.NoError(t, err)

	_, err = orch.Verify(context.Background(), tampered, authsession.Access)
	require.True(t, errors.Is(err, authsession.ErrInvalidJwt))
}

func TestRefresh_RotatesPair(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	session, err := orch.Grant(context.Background(), testPrincipal(t))
	require.NoError(t, err)
	oldAccess := session.Pair().Access().Encoded()

	verified, err := orch.Verify(context.Background(), session.Pair().Refresh().Encoded(), authsession.Refresh)
	require.NoError(t, err)

	rotated, err := orch.Refresh(context.Background(), verified)
	require.NoError(t, err)
	require.NotEqual(t, oldAccess, rotated.Pair().Access().Encoded())

	_, err = orch.Verify(context.Background(), oldAccess, authsession.Access)
	require.True(t, errors.Is(err, authsession.ErrInvalidJwt))

	_, err = orch.Verify(context.Background(), rotated.Pair().Access().Encoded(), authsession.Access)
	require.NoError(t, err)
}

func TestRevoke_InvalidatesSession(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	session, err := orch.Grant(context.Background(), testPrincipal(t))
	require.NoError(t, err)

	require.NoError(t, orch.Revoke(context.Background(), session))

	_, err = orch.Verify(context.Background(), session.Pair().Access().Encoded(), authsession.Access)
	require.True(t, errors.Is(err, authsession.ErrInvalidJwt))
}

func TestDeleteAllByUser_InvalidatesEverySession(t *testing.T) {
	orch, durable, _ := newTestOrchestrator(t)
	principal := testPrincipal(t)

	s1, err := orch.Grant(context.Background(), principal)
	require.NoError(t, err)
	s2, err := orch.Grant(context.Background(), principal)
	require.NoError(t, err)

	require.NoError(t, durable.DeleteAllByUser(context.Background(), principal.UserID))

	_, err = orch.Verify(context.Background(), s1.Pair().Access().Encoded(), authsession.Access)
	require.True(t, errors.Is(err, authsession.ErrInvalidJwt))
	_, err = orch.Verify(context.Background(), s2.Pair().Access().Encoded(), authsession.Access)
	require.True(t, errors.Is(err, authsession.ErrInvalidJwt))

	remaining, err := durable.FindAllByUser(context.Background(), principal.UserID)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestVerify_WrongExpectedType(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	session, err := orch.Grant(context.Background(), testPrincipal(t))
	require.NoError(t, err)

	_, err = orch.Verify(context.Background(), session.Pair().Access().Encoded(), authsession.Refresh)
	require.True(t, errors.Is(err, authsession.ErrInvalidJwt))
}

// The purge query a Purger tick runs (DeleteAllRefreshExpiredBefore)
// removes sessions whose refresh token has already expired.
func TestDeleteAllRefreshExpiredBefore_RemovesExpiredSessions(t *testing.T) {
	durable := newMemoryDurable()
	principal := testPrincipal(t)

	codec, err := authsession.NewCodec(authsession.CodecConfig{
		SigningKey:   "test-secret-key-that-is-at-least-32-bytes-long",
		Algorithm:    "HS256",
		AccessTTLMs:  1,
		RefreshTTLMs: 1,
	})
	require.NoError(t, err)

	access, err := codec.IssueAccess(principal.UserID, principal.Role)
	require.NoError(t, err)
	refresh, err := codec.IssueRefresh(principal.UserID, principal.Role)
	require.NoError(t, err)
	pair, err := authsession.NewJwtPair(access, refresh)
	require.NoError(t, err)

	_, err = durable.Save(context.Background(), authsession.NewUnauthenticatedSession(principal.UserID, pair))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	count, err := durable.DeleteAllRefreshExpiredBefore(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	remaining, err := durable.FindAllByUser(context.Background(), principal.UserID)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

// Package postgres implements the durable session repository on top of
// sqlx + lib/pq, following the connection and error-wrapping conventions
// of third_party/database.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/authflow/sessionengine/pkg/authsession"
)

// Repository is the sqlx-backed DurableRepository (pkg/authsession/store).
// A single row in sessions holds both the access and refresh token fields
// for one session.
type Repository struct {
	db *sqlx.DB
}

// New wraps an already-connected *sqlx.DB. Connection setup (DSN, pool
// sizing) stays with the caller, mirroring
// third_party/database.NewPostgresConnection.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// claimsBlob is an ordered-irrelevant serialized claim mapping stored as
// jsonb, following the Scan/Value pattern shared/models.StringArray uses
// for Postgres array columns.
type claimsBlob map[string]interface{}

func (c claimsBlob) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]interface{}(c))
}

func (c *claimsBlob) Scan(value interface{}) error {
	if value == nil {
		*c = claimsBlob{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("authsession/postgres: unsupported claims column type %T", value)
	}
	m := make(map[string]interface{})
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("authsession/postgres: decode claims: %w", err)
		}
	}
	*c = claimsBlob(m)
	return nil
}

// sessionRow is the wire shape of one sessions table row; see
// sql/schema.sql for the column definitions.
type sessionRow struct {
	ID                uuid.UUID  `db:"id"`
	UserID            string     `db:"user_id"`
	AccessToken       string     `db:"access_token"`
	AccessType        string     `db:"access_type"`
	AccessSubject     string     `db:"access_subject"`
	AccessClaims      claimsBlob `db:"access_claims"`
	AccessIssued      time.Time  `db:"access_issued"`
	AccessExpiration  time.Time  `db:"access_expiration"`
	RefreshToken      string     `db:"refresh_token"`
	RefreshType       string     `db:"refresh_type"`
	RefreshSubject    string     `db:"refresh_subject"`
	RefreshClaims     claimsBlob `db:"refresh_claims"`
	RefreshIssued     time.Time  `db:"refresh_issued"`
	RefreshExpiration time.Time  `db:"refresh_expiration"`
}

func toRow(session *authsession.JwtAuthentication) (sessionRow, error) {
	pair := session.Pair()
	access := pair.Access()
	refresh := pair.Refresh()

	row := sessionRow{
		UserID:            session.UserID().String(),
		AccessToken:       access.Encoded().String(),
		AccessType:        access.Type().Header(),
		AccessSubject:     access.Subject().String(),
		AccessClaims:      claimsBlob(access.Claims().Map()),
		AccessIssued:      access.Issued().Time(),
		AccessExpiration:  access.Expiration().Time(),
		RefreshToken:      refresh.Encoded().String(),
		RefreshType:       refresh.Type().Header(),
		RefreshSubject:    refresh.Subject().String(),
		RefreshClaims:     claimsBlob(refresh.Claims().Map()),
		RefreshIssued:     refresh.Issued().Time(),
		RefreshExpiration: refresh.Expiration().Time(),
	}
	if session.IsAuthenticated() {
		row.ID = session.Id().UUID()
	}
	return row, nil
}

func fromRow(row sessionRow) (*authsession.JwtAuthentication, error) {
	userID, err := authsession.NewSubject(row.UserID)
	if err != nil {
		return nil, fmt.Errorf("authsession/postgres: row user_id: %w", err)
	}

	access, err := jwtFromColumns(row.AccessToken, row.AccessType, row.AccessSubject, row.AccessClaims, row.AccessIssued, row.AccessExpiration)
	if err != nil {
		return nil, fmt.Errorf("authsession/postgres: row access token: %w", err)
	}
	refresh, err := jwtFromColumns(row.RefreshToken, row.RefreshType, row.RefreshSubject, row.RefreshClaims, row.RefreshIssued, row.RefreshExpiration)
	if err != nil {
		return nil, fmt.Errorf("authsession/postgres: row refresh token: %w", err)
	}

	pair, err := authsession.NewJwtPair(access, refresh)
	if err != nil {
		return nil, fmt.Errorf("authsession/postgres: row pair: %w", err)
	}

	session := authsession.NewUnauthenticatedSession(userID, pair)
	return session.WithId(authsession.NewSessionId(row.ID)), nil
}

func jwtFromColumns(encodedRaw, typeRaw, subjectRaw string, claimsRaw claimsBlob, issuedAt, expiresAt time.Time) (authsession.Jwt, error) {
	encoded, err := authsession.NewEncodedToken(encodedRaw)
	if err != nil {
		return authsession.Jwt{}, err
	}
	typ, err := authsession.ParseJwtType(typeRaw)
	if err != nil {
		return authsession.Jwt{}, err
	}
	subject, err := authsession.NewSubject(subjectRaw)
	if err != nil {
		return authsession.Jwt{}, err
	}
	claims := authsession.NewClaims(claimsRaw)
	issued := authsession.NewIssued(issuedAt)
	expiration := authsession.NewExpiration(expiresAt)
	return authsession.NewJwt(encoded, typ, subject, claims, issued, expiration)
}

const upsertQuery = `
INSERT INTO sessions (
	id, user_id,
	access_token, access_type, access_subject, access_claims, access_issued, access_expiration,
	refresh_token, refresh_type, refresh_subject, refresh_claims, refresh_issued, refresh_expiration
) VALUES (
	:id, :user_id,
	:access_token, :access_type, :access_subject, :access_claims, :access_issued, :access_expiration,
	:refresh_token, :refresh_type, :refresh_subject, :refresh_claims, :refresh_issued, :refresh_expiration
)
ON CONFLICT (id) DO UPDATE SET
	access_token = EXCLUDED.access_token,
	access_type = EXCLUDED.access_type,
	access_subject = EXCLUDED.access_subject,
	access_claims = EXCLUDED.access_claims,
	access_issued = EXCLUDED.access_issued,
	access_expiration = EXCLUDED.access_expiration,
	refresh_token = EXCLUDED.refresh_token,
	refresh_type = EXCLUDED.refresh_type,
	refresh_subject = EXCLUDED.refresh_subject,
	refresh_claims = EXCLUDED.refresh_claims,
	refresh_issued = EXCLUDED.refresh_issued,
	refresh_expiration = EXCLUDED.refresh_expiration`

// Save inserts when session has no id, or upserts the row for an
// already-assigned id. A single upsert statement keeps the token pair and
// the session row atomic without needing an explicit transaction.
func (r *Repository) Save(ctx context.Context, session *authsession.JwtAuthentication) (*authsession.JwtAuthentication, error) {
	row, err := toRow(session)
	if err != nil {
		return nil, fmt.Errorf("authsession/postgres: %w", err)
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	if _, err := r.db.NamedExecContext(ctx, upsertQuery, row); err != nil {
		logx.Errorf("authsession/postgres: save session failed: %v", err)
		return nil, fmt.Errorf("authsession/postgres: save session: %w", err)
	}

	return session.WithId(authsession.NewSessionId(row.ID)), nil
}

const selectColumns = `
	id, user_id,
	access_token, access_type, access_subject, access_claims, access_issued, access_expiration,
	refresh_token, refresh_type, refresh_subject, refresh_claims, refresh_issued, refresh_expiration
	FROM sessions`

func (r *Repository) findOne(ctx context.Context, query string, arg interface{}) (*authsession.JwtAuthentication, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logx.Errorf("authsession/postgres: lookup failed: %v", err)
		return nil, fmt.Errorf("authsession/postgres: lookup: %w", err)
	}
	return fromRow(row)
}

// FindByAccessToken looks up the session owning encoded as its current
// access token. Returns (nil, nil) when no session matches.
func (r *Repository) FindByAccessToken(ctx context.Context, encoded authsession.EncodedToken) (*authsession.JwtAuthentication, error) {
	return r.findOne(ctx, "SELECT "+selectColumns+" WHERE access_token = $1", encoded.String())
}

// FindByRefreshToken looks up the session owning encoded as its current
// refresh token. Returns (nil, nil) when no session matches.
func (r *Repository) FindByRefreshToken(ctx context.Context, encoded authsession.EncodedToken) (*authsession.JwtAuthentication, error) {
	return r.findOne(ctx, "SELECT "+selectColumns+" WHERE refresh_token = $1", encoded.String())
}

// FindAllByUser lists every live session for a user.
func (r *Repository) FindAllByUser(ctx context.Context, userID authsession.Subject) ([]*authsession.JwtAuthentication, error) {
	var rows []sessionRow
	err := r.db.SelectContext(ctx, &rows, "SELECT "+selectColumns+" WHERE user_id = $1", userID.String())
	if err != nil {
		logx.Errorf("authsession/postgres: list by user failed: %v", err)
		return nil, fmt.Errorf("authsession/postgres: list by user: %w", err)
	}

	sessions := make([]*authsession.JwtAuthentication, 0, len(rows))
	for _, row := range rows {
		session, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("authsession/postgres: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// DeleteByID removes a single session.
func (r *Repository) DeleteByID(ctx context.Context, id authsession.SessionId) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = $1", id.UUID()); err != nil {
		logx.Errorf("authsession/postgres: delete by id failed: %v", err)
		return fmt.Errorf("authsession/postgres: delete by id: %w", err)
	}
	return nil
}

// DeleteAllByUser removes every session owned by a user.
func (r *Repository) DeleteAllByUser(ctx context.Context, userID authsession.Subject) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = $1", userID.String()); err != nil {
		logx.Errorf("authsession/postgres: delete all by user failed: %v", err)
		return fmt.Errorf("authsession/postgres: delete all by user: %w", err)
	}
	return nil
}

// DeleteAllRefreshExpiredBefore removes every session whose refresh token
// has expired before instant, returning the count removed. Used by the
// background purger.
func (r *Repository) DeleteAllRefreshExpiredBefore(ctx context.Context, instant time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE refresh_expiration < $1", instant)
	if err != nil {
		logx.Errorf("authsession/postgres: purge failed: %v", err)
		return 0, fmt.Errorf("authsession/postgres: purge: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("authsession/postgres: purge row count: %w", err)
	}
	return count, nil
}

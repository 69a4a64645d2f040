// Package credentials provides a reference CredentialsVerifier
// (pkg/authsession) backed by bcrypt password hashes, grounded on
// backend/services/gateway/internal/model.HashPassword/CheckPasswordHash
// and the lookup-then-compare flow in
// backend/services/gateway/internal/logic/auth.LoginLogic.
package credentials

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/authflow/sessionengine/pkg/authsession"
)

// UserRecord is the subset of the user directory a BcryptVerifier needs:
// the stored password hash and the identity/role to mint a Principal
// from once the password checks out.
type UserRecord struct {
	UserID       authsession.Subject
	Username     string
	Role         authsession.Role
	PasswordHash string
}

// Directory looks up a user record by username. Implemented by whatever
// owns user storage; this engine only delegates credential verification
// to it.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
}

// BcryptVerifier implements authsession.CredentialsVerifier by looking a
// user up in Directory and comparing the supplied password against its
// stored bcrypt hash.
type BcryptVerifier struct {
	directory Directory
}

// New constructs a BcryptVerifier over directory.
func New(directory Directory) *BcryptVerifier {
	return &BcryptVerifier{directory: directory}
}

// Verify implements authsession.CredentialsVerifier.
func (v *BcryptVerifier) Verify(ctx context.Context, creds authsession.Credentials) (authsession.Principal, error) {
	if creds.Username == "" || creds.Password == "" {
		return authsession.Principal{}, authsession.ErrBadCredentials
	}

	record, err := v.directory.FindByUsername(ctx, creds.Username)
	if err != nil {
		return authsession.Principal{}, &authsession.CausedBy{
			Kind:  authsession.ErrBadCredentials,
			Cause: fmt.Errorf("authsession/credentials: directory lookup: %w", err),
		}
	}
	if record == nil {
		return authsession.Principal{}, authsession.ErrBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(creds.Password)); err != nil {
		return authsession.Principal{}, authsession.ErrBadCredentials
	}

	return authsession.Principal{
		UserID:   record.UserID,
		Username: record.Username,
		Role:     record.Role,
	}, nil
}

// HashPassword hashes password with bcrypt's default cost, for use by
// whatever owns user registration.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

package authsession

import "context"

// Principal is an authenticated user presented to Grant, or returned by a
// CredentialsVerifier.
type Principal struct {
	UserID   Subject
	Username string
	Role     Role
}

// Credentials is the username+password pair a CredentialsVerifier checks
// against the user directory.
type Credentials struct {
	Username string
	Password string
}

// CredentialsVerifier is the collaborator port the core calls exactly once
// in the sign-in flow that precedes Grant. The core depends only on the
// returned Principal shape; password hashing, storage, and the user
// directory itself are external collaborators.
type CredentialsVerifier interface {
	// Verify checks username+password and returns an authenticated
	// Principal, or ErrBadCredentials.
	Verify(ctx context.Context, creds Credentials) (Principal, error)
}

// Package authsession implements the JWT session engine: typed access and
// refresh tokens, the value objects and invariants that back them, and the
// cryptographic codec that signs and verifies their wire form.
//
// The package never performs I/O. Durable persistence and the fast-access
// liveness index are specified as ports (see the store subpackage) and
// implemented outside this package; the orchestrator that wires codec and
// stores together lives in internal/orchestrator.
package authsession

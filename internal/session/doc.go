// Package session holds the identity and bearer credential of the current
// process.
//
// A Store is created once per command, initialised from the persisted
// credential (validated with the portal exactly once) and injected into the
// portal client as its token source. Logout or any failed validation tears
// it down and removes the persisted credential.
package session

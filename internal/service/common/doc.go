// Package common holds helpers shared by the face-attendance services.
//
// It loads the settings, builds the portal client with the configured
// timeout, wires the session store into it as the token source and
// detects the local actor (user@host) recorded in the workflow lock.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

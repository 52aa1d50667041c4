// Package credential persists the portal bearer token between runs.
//
// The FileRepository stores the token as JSON on disk with owner-only
// permissions and exposes a Repository interface the session store depends on.
package credential

// Package version exposes build metadata of the face-attendance client.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// UserAgent renders them for the User-Agent header sent to the portal.
package version

// Package integration holds end-to-end tests that run the command services
// against the stub portal with real settings, credential and lock files.
package integration

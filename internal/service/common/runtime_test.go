//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/portaltest"
	"github.com/oshokin/face-attendance/internal/session"
)

// TestBootstrap_RestoreAndRequireRole wires the stack against the stub portal.
func TestBootstrap_RestoreAndRequireRole(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	id := stub.AddStudent("2101001", "Ani", "Informatika")

	rt, err := Bootstrap(context.Background(), &Options{ConfigPath: stub.WriteSettings(t, "")})
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, rt.Config.Timeout)

	_, err = rt.Restore(context.Background())
	require.ErrorIs(t, err, session.ErrNotAuthenticated)

	student, err := rt.Portal.GetStudent(context.Background(), id)
	require.Error(t, err)
	require.Nil(t, student)

	require.NoError(t, rt.Session.Set(context.Background(), stub.IssueToken(id, time.Hour), nil))

	identity, err := rt.RequireRole(context.Background(), domain.RoleStudent)
	require.NoError(t, err)
	require.Equal(t, "Ani", identity.DisplayName)

	_, err = rt.RequireRole(context.Background(), domain.RoleAdmin)
	require.ErrorIs(t, err, session.ErrForbidden)
}

// TestBootstrap_ServerURLOverride accepts a URL without any settings file.
func TestBootstrap_ServerURLOverride(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	rt, err := Bootstrap(context.Background(), &Options{
		ConfigPath: filepath.Join(dir, "missing.yaml"),
		ServerURL:  "http://127.0.0.1:1/api",
		LogLevel:   "debug",
	})
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:1/api", rt.Config.ServerURL)
}

// TestOptions_Output defaults to stdout.
func TestOptions_Output(t *testing.T) {
	t.Parallel()

	var opts *Options
	require.Equal(t, os.Stdout, opts.Output())

	var buf bytes.Buffer
	require.Equal(t, &buf, (&Options{Out: &buf}).Output())
}

package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/face-attendance/internal/api/portal"
	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/portaltest"
	"github.com/oshokin/face-attendance/internal/repository/credential"
)

var errTestProfile = errors.New("test profile error")

// fakeProfiler returns a scripted identity and records the token it saw.
type fakeProfiler struct {
	// store is read during Profile to verify the token is installed.
	store *Store
	// identity is returned on success.
	identity *domain.Identity
	// err is returned when set.
	err error
	// seenToken is the token visible during the call.
	seenToken string
	// calls counts Profile invocations.
	calls int
}

// Profile implements Profiler.
func (f *fakeProfiler) Profile(context.Context) (*domain.Identity, error) {
	f.calls++
	f.seenToken = f.store.Token()

	return f.identity, f.err
}

func newStore(t *testing.T) (*Store, *credential.FileRepository) {
	t.Helper()

	repo := credential.NewFileRepository(filepath.Join(t.TempDir(), "credential.json"))

	return NewStore(repo), repo
}

// TestInit_NoCredential reports not authenticated without calling the portal.
func TestInit_NoCredential(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	profiler := &fakeProfiler{store: store}

	identity, err := store.Init(context.Background(), profiler)
	require.ErrorIs(t, err, ErrNotAuthenticated)
	require.Nil(t, identity)
	require.Zero(t, profiler.calls)
}

// TestInit_ValidatesOnceAndInstallsToken restores a session from disk.
func TestInit_ValidatesOnceAndInstallsToken(t *testing.T) {
	t.Parallel()

	store, repo := newStore(t)
	require.NoError(t, repo.Save(context.Background(), &credential.Credential{Token: "opaque-token"}))

	want := &domain.Identity{ID: 3, Role: domain.RoleStudent, Username: "2101001", DisplayName: "Ani"}
	profiler := &fakeProfiler{store: store, identity: want}

	identity, err := store.Init(context.Background(), profiler)
	require.NoError(t, err)
	require.Equal(t, want, identity)
	require.Equal(t, 1, profiler.calls)
	require.Equal(t, "opaque-token", profiler.seenToken)
	require.Equal(t, "opaque-token", store.Token())

	_, err = store.Require(domain.RoleStudent)
	require.NoError(t, err)

	_, err = store.Require(domain.RoleAdmin)
	require.ErrorIs(t, err, ErrForbidden)
}

// TestInit_ProfileFailureClearsCredential tears down on any validation error.
func TestInit_ProfileFailureClearsCredential(t *testing.T) {
	t.Parallel()

	store, repo := newStore(t)
	require.NoError(t, repo.Save(context.Background(), &credential.Credential{Token: "opaque-token"}))

	_, err := store.Init(context.Background(), &fakeProfiler{store: store, err: errTestProfile})
	require.ErrorIs(t, err, ErrNotAuthenticated)
	require.ErrorIs(t, err, errTestProfile)
	require.Empty(t, store.Token())
	require.Nil(t, store.Identity())

	_, err = repo.Load(context.Background())
	require.ErrorIs(t, err, credential.ErrNotFound)
}

// TestInit_ExpiredTokenNeverReachesPortal checks the local exp claim inspection.
func TestInit_ExpiredTokenNeverReachesPortal(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	id := stub.AddStudent("2101001", "Ani", "Informatika")

	store, repo := newStore(t)
	require.NoError(t, repo.Save(context.Background(), &credential.Credential{Token: stub.IssueToken(id, -time.Minute)}))

	profiler := &fakeProfiler{store: store}

	_, err := store.Init(context.Background(), profiler)
	require.ErrorIs(t, err, ErrCredentialExpired)
	require.Zero(t, profiler.calls)

	_, err = repo.Load(context.Background())
	require.ErrorIs(t, err, credential.ErrNotFound)
}

// TestLoginInitTeardown runs the whole lifecycle against the stub portal.
func TestLoginInitTeardown(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	stub.AddStudent("2101001", "Ani", "Informatika")

	store, repo := newStore(t)

	client, err := portal.New(stub.URL(), portal.WithTokenSource(store))
	require.NoError(t, err)

	identity, err := store.Login(context.Background(), client, "2101001", "2101001", domain.RoleStudent)
	require.NoError(t, err)
	require.Equal(t, "Ani", identity.DisplayName)

	// A fresh process restores the session from the persisted token.
	restored := NewStore(repo)

	restoredClient, err := portal.New(stub.URL(), portal.WithTokenSource(restored))
	require.NoError(t, err)

	identity, err = restored.Init(context.Background(), restoredClient)
	require.NoError(t, err)
	require.Equal(t, "2101001", identity.StudentNumber)
	require.Equal(t, 1, stub.Calls(portaltest.EndpointProfile))

	require.NoError(t, restored.Teardown(context.Background()))
	require.Nil(t, restored.Identity())

	_, err = NewStore(repo).Init(context.Background(), restoredClient)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

// TestTokenExpired inspects non-JWT and JWT tokens.
func TestTokenExpired(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)

	require.False(t, tokenExpired("opaque", time.Now()))
	require.False(t, tokenExpired(stub.IssueToken(0, time.Hour), time.Now()))
	require.True(t, tokenExpired(stub.IssueToken(0, time.Hour), time.Now().Add(2*time.Hour)))
}

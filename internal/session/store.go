package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/logger"
	"github.com/oshokin/face-attendance/internal/repository/credential"
)

// Profiler fetches the identity behind the current credential.
type Profiler interface {
	Profile(ctx context.Context) (*domain.Identity, error)
}

// Authenticator exchanges login details for a credential.
type Authenticator interface {
	Login(ctx context.Context, username, password string, role domain.Role) (string, *domain.Identity, error)
}

var (
	// ErrNotAuthenticated is returned when no valid credential is available.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrCredentialExpired is returned when the persisted token has expired.
	ErrCredentialExpired = errors.New("credential expired, log in again")
	// ErrForbidden is returned when the identity lacks the required role.
	ErrForbidden = errors.New("this action is not allowed for the current user")
)

// Store is the process-scoped session context.
type Store struct {
	// repo persists the credential between runs.
	repo credential.Repository
	// now is the clock used for expiry checks.
	now func() time.Time

	// mu protects token and identity.
	mu sync.RWMutex
	// token is the bearer credential, empty when logged out.
	token string
	// identity is the validated principal, nil when logged out.
	identity *domain.Identity
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store backed by repo.
func NewStore(repo credential.Repository, opts ...Option) *Store {
	s := &Store{
		repo: repo,
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Init loads the persisted credential and validates it once with the portal.
// The token is installed before the profile call so the portal client can
// attach it. Any failure clears the persisted credential.
func (s *Store) Init(ctx context.Context, profiler Profiler) (*domain.Identity, error) {
	stored, err := s.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}

		return nil, fmt.Errorf("load credential: %w", err)
	}

	if tokenExpired(stored.Token, s.now()) {
		logger.Info(ctx, "Stored credential has expired, clearing it")
		s.teardownQuietly(ctx)

		return nil, ErrCredentialExpired
	}

	s.mu.Lock()
	s.token = stored.Token
	s.identity = nil
	s.mu.Unlock()

	identity, err := profiler.Profile(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Credential validation failed, clearing it", "error", err)
		s.teardownQuietly(ctx)

		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	s.mu.Lock()
	s.identity = identity.Clone()
	s.mu.Unlock()

	logger.DebugKV(ctx, "Session restored", "user", identity.Username, "role", identity.Role)

	return identity.Clone(), nil
}

// Login authenticates with the portal and persists the new credential.
func (s *Store) Login(
	ctx context.Context,
	auth Authenticator,
	username, password string,
	role domain.Role,
) (*domain.Identity, error) {
	token, identity, err := auth.Login(ctx, username, password, role)
	if err != nil {
		return nil, err
	}

	if err = s.Set(ctx, token, identity); err != nil {
		return nil, err
	}

	return identity.Clone(), nil
}

// Set replaces the current credential and identity and persists the token.
func (s *Store) Set(ctx context.Context, token string, identity *domain.Identity) error {
	if err := s.repo.Save(ctx, &credential.Credential{Token: token, SavedAt: s.now()}); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.identity = identity.Clone()

	return nil
}

// Teardown forgets the identity and removes the persisted credential.
func (s *Store) Teardown(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.identity = nil
	s.mu.Unlock()

	if err := s.repo.Delete(ctx); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	return nil
}

// Token implements the portal token source.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Identity returns a copy of the current identity, nil when logged out.
func (s *Store) Identity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.identity.Clone()
}

// Require checks that the session holds an identity with role.
func (s *Store) Require(role domain.Role) (*domain.Identity, error) {
	identity := s.Identity()
	if identity == nil {
		return nil, ErrNotAuthenticated
	}

	if identity.Role != role {
		return nil, fmt.Errorf("%w: requires %s, logged in as %s", ErrForbidden, role, identity.Role)
	}

	return identity, nil
}

// teardownQuietly tears down and only logs failures.
func (s *Store) teardownQuietly(ctx context.Context) {
	if err := s.Teardown(ctx); err != nil {
		logger.ErrorKV(ctx, "Failed to clear credential", "error", err)
	}
}

// tokenExpired inspects the exp claim without verifying the signature.
// Tokens that are not JWTs are left for the portal to judge.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}

	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}

	return !claims.VerifyExpiresAt(now.Unix(), false)
}

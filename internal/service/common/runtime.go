//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/face-attendance/internal/api/portal"
	"github.com/oshokin/face-attendance/internal/config"
	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/logger"
	"github.com/oshokin/face-attendance/internal/repository/credential"
	"github.com/oshokin/face-attendance/internal/session"
)

// Options are the settings shared by every command.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerURL overrides the portal URL from config when specified.
	ServerURL string

	// LogLevel overrides the log level from config when specified.
	LogLevel string

	// Out receives command output, defaults to stdout.
	Out io.Writer
}

// Output returns the writer for command output.
func (o *Options) Output() io.Writer {
	if o == nil || o.Out == nil {
		return os.Stdout
	}

	return o.Out
}

// Runtime bundles the configuration, portal client and session of a command.
type Runtime struct {
	// Config is the loaded configuration.
	Config *config.Config
	// Portal is the portal client authenticated by Session.
	Portal *portal.Client
	// Session is the process-scoped session store.
	Session *session.Store
}

// Bootstrap loads the settings and wires the portal client to the session
// store. The session is not restored yet; see Restore.
func Bootstrap(ctx context.Context, opts *Options) (*Runtime, error) {
	if opts == nil {
		opts = new(Options)
	}

	cfg, err := config.Load(opts.ConfigPath, config.WithServerURL(opts.ServerURL))
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}

	if parsed, ok := logger.ParseLogLevel(level); ok {
		logger.SetLevel(parsed)
	} else {
		logger.WarnKV(ctx, "Unknown log level, keeping the current one", "level", level)
	}

	store := session.NewStore(credential.NewFileRepository(cfg.CredentialFile))

	client, err := portal.New(
		cfg.ServerURL,
		portal.WithCallTimeout(cfg.Timeout),
		portal.WithTokenSource(store),
	)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Portal client ready", "server_url", cfg.ServerURL, "timeout", cfg.Timeout)

	return &Runtime{
		Config:  cfg,
		Portal:  client,
		Session: store,
	}, nil
}

// Restore validates the persisted credential with the portal.
func (r *Runtime) Restore(ctx context.Context) (*domain.Identity, error) {
	identity, err := r.Session.Init(ctx, r.Portal)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	return identity, nil
}

// RequireRole restores the session and checks the identity's role.
func (r *Runtime) RequireRole(ctx context.Context, role domain.Role) (*domain.Identity, error) {
	if _, err := r.Restore(ctx); err != nil {
		return nil, err
	}

	return r.Session.Require(role)
}

package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/logger"
	"github.com/oshokin/face-attendance/internal/service/common"
)

// errPasswordRequired is returned when no password was given or typed.
var errPasswordRequired = errors.New("password must be provided")

// LoginOptions configures the login command.
type LoginOptions struct {
	common.Options

	// Username is the admin username or the student's NIM.
	Username string

	// Password is used as is when not empty; otherwise it is prompted for.
	Password string

	// Role selects the admin or student login.
	Role domain.Role

	// Prompt reads the password, defaults to PromptPassword on stdin.
	Prompt func() (string, error)
}

// RegisterOptions configures the register command.
type RegisterOptions struct {
	common.Options

	// Student is the self-registration data.
	Student domain.NewStudent
}

// Login authenticates with the portal and persists the credential.
func Login(ctx context.Context, opts *LoginOptions) error {
	ctx = logger.WithName(ctx, "login")

	rt, err := common.Bootstrap(ctx, &opts.Options)
	if err != nil {
		return err
	}

	password := opts.Password
	if password == "" {
		prompt := opts.Prompt
		if prompt == nil {
			prompt = func() (string, error) {
				return PromptPassword(os.Stdin, os.Stderr)
			}
		}

		if password, err = prompt(); err != nil {
			return err
		}
	}

	if password == "" {
		return errPasswordRequired
	}

	identity, err := rt.Session.Login(ctx, rt.Portal, opts.Username, password, opts.Role)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	logger.InfoKV(ctx, "Logged in", "user", identity.Username, "role", identity.Role)

	_, err = fmt.Fprintf(opts.Output(), "Logged in as %s.\n", DescribeIdentity(identity))

	return err
}

// Logout forgets the persisted credential.
func Logout(ctx context.Context, opts *common.Options) error {
	ctx = logger.WithName(ctx, "logout")

	rt, err := common.Bootstrap(ctx, opts)
	if err != nil {
		return err
	}

	if err = rt.Session.Teardown(ctx); err != nil {
		return err
	}

	_, err = fmt.Fprintln(opts.Output(), "Logged out.")

	return err
}

// WhoAmI validates the credential and prints the identity.
func WhoAmI(ctx context.Context, opts *common.Options) error {
	ctx = logger.WithName(ctx, "whoami")

	rt, err := common.Bootstrap(ctx, opts)
	if err != nil {
		return err
	}

	identity, err := rt.Restore(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(opts.Output(), DescribeIdentity(identity))

	return err
}

// Register self-registers a student.
func Register(ctx context.Context, opts *RegisterOptions) error {
	ctx = logger.WithName(ctx, "register")

	rt, err := common.Bootstrap(ctx, &opts.Options)
	if err != nil {
		return err
	}

	message, err := rt.Portal.Register(ctx, opts.Student)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	if message == "" {
		message = "Registration completed."
	}

	_, err = fmt.Fprintln(opts.Output(), message)

	return err
}

// DescribeIdentity formats an identity for display.
func DescribeIdentity(identity *domain.Identity) string {
	if identity == nil {
		return "nobody"
	}

	if identity.IsAdmin() {
		return fmt.Sprintf("%s (admin)", identity.DisplayName)
	}

	parts := []string{"student", "NIM " + identity.StudentNumber}
	if identity.Department != "" {
		parts = append(parts, identity.Department)
	}

	return fmt.Sprintf("%s (%s)", identity.DisplayName, strings.Join(parts, ", "))
}

// PromptPassword reads a password from in. On a terminal the input is not
// echoed; otherwise one line is read.
func PromptPassword(in *os.File, out io.Writer) (string, error) {
	_, _ = fmt.Fprint(out, "Password: ")

	fd := int(in.Fd()) //nolint:gosec // File descriptors fit in int.
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(out)

		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

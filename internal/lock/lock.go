package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/face-attendance/internal/logger"
)

// ErrHeld is returned when another live process holds the lock.
var ErrHeld = errors.New("another attendance workflow is running on this machine")

// filePermissions is the mode of the marker file.
const filePermissions = 0o600

// Marker is the content of the lock file.
type Marker struct {
	// PID of the owner process.
	PID int `yaml:"pid"`
	// Executable is the owner's executable name as reported by the OS.
	Executable string `yaml:"executable"`
	// Owner is user@host of the owner.
	Owner string `yaml:"owner"`
	// AcquiredAt is when the lock was taken.
	AcquiredAt time.Time `yaml:"acquired_at"`
}

// Lock is a held marker file.
type Lock struct {
	// path of the marker file.
	path string
	// marker is what this process wrote.
	marker Marker
}

// Acquire takes the lock at path for owner. A stale marker left by a dead
// process is removed and the lock is retried once.
func Acquire(ctx context.Context, path, owner string) (*Lock, error) {
	marker := Marker{
		PID:        os.Getpid(),
		Executable: currentExecutable(),
		Owner:      owner,
		AcquiredAt: time.Now(),
	}

	data, err := yaml.Marshal(&marker)
	if err != nil {
		return nil, fmt.Errorf("marshal lock marker: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err = create(path, data)
		if err == nil {
			logger.DebugKV(ctx, "Workflow lock acquired", "path", path)

			return &Lock{path: path, marker: marker}, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock: %w", err)
		}

		holder, readErr := Read(path)
		if readErr == nil && Alive(holder) {
			return nil, fmt.Errorf("%w: pid %d (%s)", ErrHeld, holder.PID, holder.Owner)
		}

		logger.InfoKV(ctx, "Removing stale workflow lock", "path", path)

		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: lock at %s keeps reappearing", ErrHeld, path)
}

// Release removes the marker if it still belongs to this process.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	current, err := Read(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	if current.PID != l.marker.PID {
		return nil
	}

	if err = os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock: %w", err)
	}

	return nil
}

// Read parses the marker at path.
func Read(path string) (*Marker, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var marker Marker
	if err = yaml.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("unmarshal lock marker: %w", err)
	}

	return &marker, nil
}

// Alive reports whether the marker's process still runs the same executable.
func Alive(marker *Marker) bool {
	if marker == nil || marker.PID <= 0 {
		return false
	}

	process, err := ps.FindProcess(marker.PID)
	if err != nil || process == nil {
		return false
	}

	return marker.Executable == "" || process.Executable() == marker.Executable
}

// create writes data to a new file at path, failing if it exists.
func create(path string, data []byte) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePermissions)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(path)

		return err
	}

	return file.Close()
}

// currentExecutable returns this process's executable name as go-ps reports it.
func currentExecutable() string {
	process, err := ps.FindProcess(os.Getpid())
	if err != nil || process == nil {
		return ""
	}

	return process.Executable()
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/face-attendance/internal/config"
)

var (
	// ErrDeviceUnavailable is returned when the camera cannot be reached or read.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	// ErrNotReady is returned when the device has not produced a frame yet.
	ErrNotReady = errors.New("camera has not produced a frame yet")

	// errFramePathRequired is returned when the file source has no path.
	errFramePathRequired = errors.New("frame file path must be provided")
	// errCommandRequired is returned when the command source has no command.
	errCommandRequired = errors.New("grabber command must be provided")
	// errDeviceClosed is returned when a closed device is asked for a frame.
	errDeviceClosed = errors.New("device is closed")
)

// framePollInterval is how often FileDevice checks for a frame file.
const framePollInterval = 100 * time.Millisecond

// Geometry is the fixed frame size and encoding of captured images.
type Geometry struct {
	// Width in pixels.
	Width int
	// Height in pixels.
	Height int
	// Quality of the JPEG encoding, 1..100.
	Quality int
}

// Device is a source of raw image frames.
type Device interface {
	// Open acquires the device for frames of the given geometry.
	Open(ctx context.Context, geometry Geometry) error
	// Frame returns the current frame in any decodable image format, or
	// ErrNotReady when no frame is available yet.
	Frame(ctx context.Context) ([]byte, error)
	// Close releases the device.
	Close() error
}

// NewDevice builds a device and its geometry from the camera settings.
func NewDevice(cfg config.Camera) (Device, Geometry, error) {
	geometry := Geometry{
		Width:   cfg.Width,
		Height:  cfg.Height,
		Quality: cfg.JPEGQuality,
	}

	switch cfg.Source {
	case config.SourceFile, "":
		return NewFileDevice(cfg.Path, cfg.FrameWait), geometry, nil
	case config.SourceCommand:
		return NewCommandDevice(cfg.Command), geometry, nil
	default:
		return nil, Geometry{}, fmt.Errorf("%w: unknown source %q", ErrDeviceUnavailable, cfg.Source)
	}
}

// FileDevice reads frames from an image file. The file may be a still photo
// or be rewritten periodically by an external grabber.
type FileDevice struct {
	// path of the frame file.
	path string
	// wait is how long Frame waits for the file to appear after Open.
	wait time.Duration

	// mu protects openedAt and open.
	mu sync.Mutex
	// openedAt is when the device was opened.
	openedAt time.Time
	// open reports whether the device is held.
	open bool
}

// NewFileDevice creates a device reading frames from path.
func NewFileDevice(path string, wait time.Duration) *FileDevice {
	return &FileDevice{
		path: path,
		wait: wait,
	}
}

// Open checks that the frame directory is reachable.
func (d *FileDevice) Open(_ context.Context, _ Geometry) error {
	if strings.TrimSpace(d.path) == "" {
		return errFramePathRequired
	}

	info, err := os.Stat(filepath.Dir(d.path))
	if err != nil {
		return fmt.Errorf("stat frame directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("frame directory %s is not a directory", filepath.Dir(d.path))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.openedAt = time.Now()
	d.open = true

	return nil
}

// Frame returns the file contents, waiting up to the configured duration
// after Open for the file to appear.
func (d *FileDevice) Frame(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	open, deadline := d.open, d.openedAt.Add(d.wait)
	d.mu.Unlock()

	if !open {
		return nil, errDeviceClosed
	}

	for {
		data, err := os.ReadFile(d.path)

		switch {
		case err == nil && len(data) > 0:
			return data, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read frame: %w", err)
		}

		if !time.Now().Before(deadline) {
			return nil, ErrNotReady
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(framePollInterval):
		}
	}
}

// Close releases the device.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.open = false

	return nil
}

// CommandDevice runs an external grabber (for example fswebcam or ffmpeg)
// that writes one image to stdout per invocation. The placeholders {width}
// and {height} in arguments are replaced with the frame geometry.
type CommandDevice struct {
	// command is the grabber command line.
	command []string

	// mu protects args.
	mu sync.Mutex
	// args is the resolved command line, nil when closed.
	args []string
}

// NewCommandDevice creates a device running command for each frame.
func NewCommandDevice(command []string) *CommandDevice {
	return &CommandDevice{
		command: command,
	}
}

// Open resolves the grabber binary and the geometry placeholders.
func (d *CommandDevice) Open(_ context.Context, geometry Geometry) error {
	if len(d.command) == 0 {
		return errCommandRequired
	}

	binary, err := exec.LookPath(d.command[0])
	if err != nil {
		return fmt.Errorf("find grabber: %w", err)
	}

	replacer := strings.NewReplacer(
		"{width}", strconv.Itoa(geometry.Width),
		"{height}", strconv.Itoa(geometry.Height),
	)

	args := make([]string, 0, len(d.command))
	args = append(args, binary)

	for _, arg := range d.command[1:] {
		args = append(args, replacer.Replace(arg))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.args = args

	return nil
}

// Frame runs the grabber once and returns its stdout.
func (d *CommandDevice) Frame(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	args := d.args
	d.mu.Unlock()

	if args == nil {
		return nil, errDeviceClosed
	}

	//nolint:gosec // The grabber command line comes from the operator's settings.
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("run grabber: %w", err)
	}

	if len(out) == 0 {
		return nil, ErrNotReady
	}

	return out, nil
}

// Close releases the device.
func (d *CommandDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.args = nil

	return nil
}

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/logger"
)

// Controller owns one device and produces captured images on demand.
// It is safe for concurrent use.
type Controller struct {
	// device is the frame source.
	device Device
	// geometry is the fixed frame size.
	geometry Geometry
	// now is the capture clock.
	now func() time.Time

	// mu serialises device access.
	mu sync.Mutex
	// open reports whether the device is held.
	open bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithClock replaces the clock stamped on captured images.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a closed controller for device.
func NewController(device Device, geometry Geometry, opts ...ControllerOption) *Controller {
	c := &Controller{
		device:   device,
		geometry: geometry,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Open acquires the device. It is a no-op while the device is already open.
// Any failure is reported as ErrDeviceUnavailable and leaves nothing held.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return nil
	}

	if err := c.device.Open(ctx, c.geometry); err != nil {
		// Release whatever the device managed to acquire.
		_ = c.device.Close()

		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	c.open = true

	logger.DebugKV(ctx, "Camera opened", "width", c.geometry.Width, "height", c.geometry.Height)

	return nil
}

// Capture samples the current frame. It returns ErrNotReady when the device
// is not open or has no frame yet, and ErrDeviceUnavailable when reading or
// decoding the frame fails.
func (c *Controller) Capture(ctx context.Context) (*domain.CapturedImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrNotReady
	}

	raw, err := c.device.Frame(ctx)
	if err != nil {
		if errors.Is(err, ErrNotReady) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	encoded, err := encodeFrame(raw, c.geometry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	img := &domain.CapturedImage{
		ID:         uuid.NewString(),
		Encoded:    encoded,
		Width:      c.geometry.Width,
		Height:     c.geometry.Height,
		CapturedAt: c.now(),
	}

	logger.DebugKV(ctx, "Frame captured", "image_id", img.ID, "bytes", len(encoded))

	return img, nil
}

// Close releases the device. It is a no-op when already closed.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil
	}

	c.open = false

	if err := c.device.Close(); err != nil {
		return fmt.Errorf("close camera: %w", err)
	}

	return nil
}

// IsOpen reports whether the device is currently held.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.open
}

// Session opens the device, runs fn and closes the device on every exit
// path, including a panic in fn.
func (c *Controller) Session(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err = c.Open(ctx); err != nil {
		return err
	}

	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(ctx)
}

package attend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/face-attendance/internal/capture"
	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/lock"
	"github.com/oshokin/face-attendance/internal/logger"
	"github.com/oshokin/face-attendance/internal/service/common"
	"github.com/oshokin/face-attendance/internal/verification"
	"github.com/oshokin/face-attendance/internal/workflow"
)

// Options configures the attend command.
type Options struct {
	common.Options

	// ShootAttempts is how many times a capture is retried while the camera
	// has no frame yet. Zero means defaultShootAttempts.
	ShootAttempts int

	// Camera replaces the configured capture device, used by tests.
	Camera workflow.Camera
}

// ErrNotRecorded is returned when the attempt resolved without recording attendance.
var ErrNotRecorded = errors.New("attendance was not recorded")

const (
	// defaultShootAttempts bounds retries of a capture that is not ready.
	defaultShootAttempts = 5
	// shootRetryDelay separates capture retries.
	shootRetryDelay = 200 * time.Millisecond
)

// progress maps states to the log line shown when entering them.
//
//nolint:gochecknoglobals // Read-only lookup table.
var progress = map[workflow.State]string{
	workflow.StateCapturing:   "Camera opened, taking a photo",
	workflow.StateCaptured:    "Photo taken",
	workflow.StatePreChecking: "Checking the photo for a face",
	workflow.StateSubmitting:  "Submitting attendance",
}

// Run records today's attendance for the logged-in student.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "attend")

	rt, err := common.Bootstrap(ctx, &opts.Options)
	if err != nil {
		return err
	}

	// Only students record attendance.
	identity, err := rt.RequireRole(ctx, domain.RoleStudent)
	if err != nil {
		return err
	}

	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	// One workflow per machine so the camera is never shared.
	held, err := lock.Acquire(ctx, rt.Config.LockFile, actor.String())
	if err != nil {
		return err
	}

	defer func() {
		if releaseErr := held.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Failed to release workflow lock", "error", releaseErr)
		}
	}()

	camera := opts.Camera
	if camera == nil {
		device, geometry, deviceErr := capture.NewDevice(rt.Config.Camera)
		if deviceErr != nil {
			return deviceErr
		}

		camera = capture.NewController(device, geometry)
	}

	gateway := verification.New(rt.Portal, verification.WithTimeout(rt.Config.Timeout))

	machine := workflow.New(identity, camera, gateway, rt.Portal, workflow.WithObserver(func(t workflow.Transition) {
		if message, ok := progress[t.To]; ok {
			logger.Info(ctx, message)
		}
	}))

	// Abandon whatever is still running when the command ends.
	defer machine.Leave(context.WithoutCancel(ctx))

	snapshot, err := attempt(ctx, machine, opts.ShootAttempts)
	if err != nil {
		return err
	}

	if err = Render(opts.Output(), snapshot); err != nil {
		return err
	}

	if snapshot.State == workflow.StateResolved && !snapshot.Result.Succeeded() {
		return fmt.Errorf("%w: %s", ErrNotRecorded, snapshot.Result.Outcome)
	}

	return nil
}

// attempt drives the machine through one attendance attempt.
func attempt(ctx context.Context, machine *workflow.Machine, shootAttempts int) (workflow.Snapshot, error) {
	snapshot, err := machine.Enter(ctx)
	if err != nil || snapshot.State == workflow.StateAlreadyRecorded {
		return snapshot, err
	}

	if snapshot, err = machine.Start(ctx); err != nil || snapshot.State == workflow.StateResolved {
		return snapshot, err
	}

	if snapshot, err = shoot(ctx, machine, shootAttempts); err != nil || snapshot.State == workflow.StateResolved {
		return snapshot, err
	}

	return machine.Submit(ctx)
}

// shoot captures a frame, retrying while the camera is not ready.
func shoot(ctx context.Context, machine *workflow.Machine, attempts int) (workflow.Snapshot, error) {
	if attempts <= 0 {
		attempts = defaultShootAttempts
	}

	for i := 1; ; i++ {
		snapshot, err := machine.Shoot(ctx)
		if !errors.Is(err, capture.ErrNotReady) || i >= attempts {
			return snapshot, err
		}

		logger.DebugKV(ctx, "Camera not ready, retrying", "attempt", i)

		select {
		case <-ctx.Done():
			return snapshot, ctx.Err()
		case <-time.After(shootRetryDelay):
		}
	}
}

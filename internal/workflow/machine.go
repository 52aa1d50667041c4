package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/face-attendance/internal/api/portal"
	"github.com/oshokin/face-attendance/internal/capture"
	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/logger"
	"github.com/oshokin/face-attendance/internal/verification"
)

// Camera produces captured images.
type Camera interface {
	Open(ctx context.Context) error
	Capture(ctx context.Context) (*domain.CapturedImage, error)
	Close() error
}

// Verifier runs the face pre-check and the submission.
type Verifier interface {
	PrecheckFace(ctx context.Context, img *domain.CapturedImage) (verification.Precheck, error)
	SubmitAttendance(ctx context.Context, img *domain.CapturedImage, pre verification.Precheck) (*domain.Record, error)
}

// RecordLister fetches attendance records.
type RecordLister interface {
	ListAttendance(ctx context.Context, filter portal.AttendanceFilter) ([]domain.Record, error)
}

// Machine is one student's attendance workflow. Only one operation runs at
// a time; a concurrent call is refused with ErrBusy.
type Machine struct {
	// identity is the student recording attendance.
	identity *domain.Identity
	// camera is the capture device.
	camera Camera
	// verifier is the verification gateway.
	verifier Verifier
	// records looks up today's record at entry.
	records RecordLister
	// now is the clock deciding the current day.
	now func() time.Time
	// observer is notified of transitions, may be nil.
	observer Observer

	// mu protects everything below.
	mu sync.Mutex
	// state is the current state.
	state State
	// instanceID identifies the current workflow instance.
	instanceID string
	// generation is bumped on Enter and Leave; results of older generations are discarded.
	generation uint64
	// checked reports whether today's record was fetched for this instance.
	checked bool
	// busy reports whether an operation is in flight.
	busy bool
	// cancel aborts the in-flight portal call.
	cancel context.CancelFunc
	// image is the captured image owned by the machine.
	image *domain.CapturedImage
	// today is the student's record for the current day.
	today *domain.Record
	// result is the outcome of the last attempt.
	result *domain.Result
	// pending holds transitions not yet delivered to the observer.
	pending []Transition
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces the clock deciding the current day.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithObserver registers a transition observer.
func WithObserver(observer Observer) Option {
	return func(m *Machine) {
		m.observer = observer
	}
}

// New creates an idle machine for identity.
func New(identity *domain.Identity, camera Camera, verifier Verifier, records RecordLister, opts ...Option) *Machine {
	m := &Machine{
		identity: identity.Clone(),
		camera:   camera,
		verifier: verifier,
		records:  records,
		now:      time.Now,
		state:    StateIdle,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Enter starts a new workflow instance and fetches today's record once.
// When a record exists the machine short-circuits to alreadyRecorded and
// the camera is never touched. A failed lookup leaves the machine idle and
// not entered.
func (m *Machine) Enter(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	m.abandonLocked(ctx)
	m.instanceID = uuid.NewString()
	m.busy = true

	generation := m.generation
	callCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.unlock()

	defer cancel()

	today := domain.Today(m.now())

	records, err := m.records.ListAttendance(callCtx, portal.AttendanceFilter{
		Date:      today,
		StudentID: m.identity.ID,
	})

	m.mu.Lock()
	defer m.unlock()

	if generation != m.generation {
		return m.snapshotLocked(), ErrAbandoned
	}

	m.finishLocked()

	if err != nil {
		return m.snapshotLocked(), fmt.Errorf("fetch today's attendance: %w", err)
	}

	m.checked = true

	if record := findRecord(records, m.identity.ID, today); record != nil {
		m.today = record

		if err = m.transitionLocked(ctx, StateAlreadyRecorded); err != nil {
			return m.snapshotLocked(), err
		}
	}

	return m.snapshotLocked(), nil
}

// Start opens the camera. A failure to open resolves the machine with
// deviceUnavailable and leaves the camera released.
func (m *Machine) Start(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.unlock()

	if m.busy || m.state != StateIdle {
		return m.snapshotLocked(), fmt.Errorf("%w: state is %s", ErrBusy, m.state)
	}

	if !m.checked {
		return m.snapshotLocked(), ErrNotEntered
	}

	if m.today != nil {
		err := m.transitionLocked(ctx, StateAlreadyRecorded)

		return m.snapshotLocked(), err
	}

	if err := m.transitionLocked(ctx, StateCapturing); err != nil {
		return m.snapshotLocked(), err
	}

	m.openCameraLocked(ctx)

	return m.snapshotLocked(), nil
}

// Shoot captures a frame and releases the camera. capture.ErrNotReady
// leaves the machine capturing so the caller can shoot again; any other
// device failure resolves with deviceUnavailable.
func (m *Machine) Shoot(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()

	if err := m.beginLocked(StateCapturing); err != nil {
		snapshot := m.snapshotLocked()
		m.unlock()

		return snapshot, err
	}

	generation := m.generation
	m.unlock()

	img, err := m.camera.Capture(ctx)

	m.mu.Lock()
	defer m.unlock()

	if generation != m.generation {
		return m.snapshotLocked(), ErrAbandoned
	}

	m.finishLocked()

	if errors.Is(err, capture.ErrNotReady) {
		return m.snapshotLocked(), err
	}

	m.closeCameraLocked(ctx)

	if err != nil {
		logger.WarnKV(ctx, "Capture failed", "error", err)
		m.resolveLocked(ctx, deviceResult())

		return m.snapshotLocked(), nil
	}

	m.image = img

	err = m.transitionLocked(ctx, StateCaptured)

	return m.snapshotLocked(), err
}

// Retake discards the captured image and reopens the camera.
func (m *Machine) Retake(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.unlock()

	if err := m.beginLocked(StateCaptured); err != nil {
		return m.snapshotLocked(), err
	}

	m.busy = false
	m.image = nil

	if err := m.transitionLocked(ctx, StateCapturing); err != nil {
		return m.snapshotLocked(), err
	}

	m.openCameraLocked(ctx)

	return m.snapshotLocked(), nil
}

// Submit pre-checks the captured image and, when exactly one face is found,
// records attendance with the same image. The image is consumed by every
// outcome, so a second Submit is refused until a new capture.
//
//nolint:funlen // Two remote steps with a generation check after each.
func (m *Machine) Submit(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()

	if err := m.beginLocked(StateCaptured); err != nil {
		snapshot := m.snapshotLocked()
		m.unlock()

		return snapshot, err
	}

	img := m.image

	if err := m.transitionLocked(ctx, StatePreChecking); err != nil {
		m.busy = false
		snapshot := m.snapshotLocked()
		m.unlock()

		return snapshot, err
	}

	generation := m.generation
	callCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.unlock()

	defer cancel()

	pre, err := m.verifier.PrecheckFace(callCtx, img)

	m.mu.Lock()

	if generation != m.generation {
		snapshot := m.snapshotLocked()
		m.unlock()

		return snapshot, ErrAbandoned
	}

	switch {
	case err != nil:
		// The failure is reported through the resolved result.
		m.finishLocked()
		m.resolveLocked(ctx, failureResult(err))

		err = nil
	case !pre.Passed():
		m.finishLocked()
		m.resolveLocked(ctx, &domain.Result{Outcome: pre.Outcome(), Message: pre.Outcome().Instruction()})
	default:
		err = m.transitionLocked(ctx, StateSubmitting)
	}

	if m.state != StateSubmitting {
		snapshot := m.snapshotLocked()
		m.unlock()

		return snapshot, err
	}

	m.unlock()

	record, err := m.verifier.SubmitAttendance(callCtx, img, pre)

	m.mu.Lock()
	defer m.unlock()

	if generation != m.generation {
		return m.snapshotLocked(), ErrAbandoned
	}

	m.finishLocked()

	if err != nil {
		m.resolveLocked(ctx, failureResult(err))

		return m.snapshotLocked(), nil
	}

	record = m.completeRecord(record)
	m.today = record.Clone()

	m.resolveLocked(ctx, &domain.Result{
		Outcome: domain.OutcomeSuccess,
		Message: domain.OutcomeSuccess.Instruction(),
		Record:  record,
	})

	logger.InfoKV(ctx, "Attendance recorded", "date", record.Date, "time", record.Time)

	return m.snapshotLocked(), nil
}

// Retry starts over after a resolved attempt. When today's record is known
// the machine goes straight to alreadyRecorded.
func (m *Machine) Retry(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.unlock()

	if err := m.beginLocked(StateResolved); err != nil {
		return m.snapshotLocked(), err
	}

	m.busy = false
	m.result = nil

	if err := m.transitionLocked(ctx, StateIdle); err != nil {
		return m.snapshotLocked(), err
	}

	if m.today != nil {
		err := m.transitionLocked(ctx, StateAlreadyRecorded)

		return m.snapshotLocked(), err
	}

	return m.snapshotLocked(), nil
}

// Leave abandons the workflow: the camera is released, the in-flight call
// is cancelled and its result will be discarded.
func (m *Machine) Leave(ctx context.Context) Snapshot {
	m.mu.Lock()
	defer m.unlock()

	m.abandonLocked(ctx)

	return m.snapshotLocked()
}

// Snapshot returns the current read model.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked()
}

// beginLocked checks that no operation runs and the machine is in state,
// then marks it busy.
func (m *Machine) beginLocked(state State) error {
	if m.busy {
		return ErrBusy
	}

	if m.state != state {
		return fmt.Errorf("%w: expected %s, state is %s", ErrInvalidTransition, state, m.state)
	}

	m.busy = true

	return nil
}

// finishLocked clears the in-flight markers.
func (m *Machine) finishLocked() {
	m.busy = false
	m.cancel = nil
}

// transitionLocked moves the machine along the table and queues the
// observer notification.
func (m *Machine) transitionLocked(ctx context.Context, to State) error {
	from := m.state
	if !allowedTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	m.state = to
	m.queueLocked(from, to)

	logger.DebugKV(ctx, "Workflow transition", "instance", m.instanceID, "from", from, "to", to)

	return nil
}

// resolveLocked ends the attempt with result and drops the image.
func (m *Machine) resolveLocked(ctx context.Context, result *domain.Result) {
	m.image = nil
	m.result = result

	if err := m.transitionLocked(ctx, StateResolved); err != nil {
		logger.ErrorKV(ctx, "Failed to resolve workflow", "error", err)
	}
}

// abandonLocked releases everything and resets to idle.
func (m *Machine) abandonLocked(ctx context.Context) {
	if m.cancel != nil {
		m.cancel()
	}

	m.closeCameraLocked(ctx)

	m.generation++
	m.busy = false
	m.cancel = nil
	m.checked = false
	m.image = nil
	m.today = nil
	m.result = nil

	if m.state != StateIdle {
		from := m.state
		m.state = StateIdle
		m.queueLocked(from, StateIdle)
	}
}

// openCameraLocked opens the camera or resolves with deviceUnavailable.
func (m *Machine) openCameraLocked(ctx context.Context) {
	if err := m.camera.Open(ctx); err != nil {
		logger.WarnKV(ctx, "Camera is unavailable", "error", err)
		m.closeCameraLocked(ctx)
		m.resolveLocked(ctx, deviceResult())
	}
}

// closeCameraLocked releases the camera and logs failures.
func (m *Machine) closeCameraLocked(ctx context.Context) {
	if err := m.camera.Close(); err != nil {
		logger.WarnKV(ctx, "Failed to release camera", "error", err)
	}
}

// queueLocked records a transition for the observer.
func (m *Machine) queueLocked(from, to State) {
	if m.observer == nil {
		return
	}

	m.pending = append(m.pending, Transition{
		From:     from,
		To:       to,
		Snapshot: m.snapshotLocked(),
	})
}

// unlock releases the lock and delivers queued transitions.
func (m *Machine) unlock() {
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, t := range pending {
		m.observer(t)
	}
}

// snapshotLocked copies the current state.
func (m *Machine) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		InstanceID: m.instanceID,
		State:      m.state,
		Today:      m.today.Clone(),
		Result:     m.result.Clone(),
		Busy:       m.busy,
	}

	if m.image != nil {
		snapshot.ImageID = m.image.ID
	}

	return snapshot
}

// completeRecord fills fields the submission response leaves out.
func (m *Machine) completeRecord(record *domain.Record) *domain.Record {
	record = record.Clone()
	if record == nil {
		record = &domain.Record{}
	}

	if record.StudentID == 0 {
		record.StudentID = m.identity.ID
	}

	if record.StudentName == "" {
		record.StudentName = m.identity.DisplayName
	}

	if record.StudentNumber == "" {
		record.StudentNumber = m.identity.StudentNumber
	}

	if record.Date == "" {
		record.Date = domain.Today(m.now())
	}

	if record.Status == "" {
		record.Status = domain.StatusPresent
	}

	return record
}

// findRecord returns the student's record for date.
func findRecord(records []domain.Record, studentID int, date string) *domain.Record {
	for i := range records {
		r := &records[i]
		if r.Date == date && (r.StudentID == studentID || r.StudentID == 0) {
			return r.Clone()
		}
	}

	return nil
}

// deviceResult is the outcome of a camera failure.
func deviceResult() *domain.Result {
	return &domain.Result{
		Outcome: domain.OutcomeDeviceUnavailable,
		Message: domain.OutcomeDeviceUnavailable.Instruction(),
	}
}

// failureResult converts a gateway error into a result.
func failureResult(err error) *domain.Result {
	if failure, ok := verification.AsFailure(err); ok {
		message := failure.Message
		if message == "" {
			message = failure.Outcome.Instruction()
		}

		return &domain.Result{Outcome: failure.Outcome, Message: message}
	}

	return &domain.Result{
		Outcome: domain.OutcomeTransportError,
		Message: domain.OutcomeTransportError.Instruction(),
	}
}

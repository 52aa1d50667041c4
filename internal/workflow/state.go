package workflow

import (
	"errors"
	"slices"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
)

// State is a workflow state.
type State string

const (
	StateIdle            State = "idle"
	StateAlreadyRecorded State = "alreadyRecorded"
	StateCapturing       State = "capturing"
	StateCaptured        State = "captured"
	StatePreChecking     State = "preChecking"
	StateSubmitting      State = "submitting"
	StateResolved        State = "resolved"
)

// transitions lists the allowed edges. Enter and Leave reset to idle from
// any state and are not part of the table.
//
//nolint:gochecknoglobals // Read-only transition table.
var transitions = map[State][]State{
	StateIdle:            {StateCapturing, StateAlreadyRecorded},
	StateAlreadyRecorded: nil,
	StateCapturing:       {StateCaptured, StateResolved},
	StateCaptured:        {StateCapturing, StatePreChecking},
	StatePreChecking:     {StateSubmitting, StateResolved},
	StateSubmitting:      {StateResolved},
	StateResolved:        {StateIdle},
}

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid workflow transition")
	// ErrBusy is returned when the workflow is not idle or an operation is already running.
	ErrBusy = errors.New("attendance workflow is busy")
	// ErrAbandoned is returned when the workflow was left while the operation was running.
	// The operation's result has been discarded.
	ErrAbandoned = errors.New("attendance workflow was abandoned")
	// ErrNotEntered is returned when capturing starts before today's record was checked.
	ErrNotEntered = errors.New("attendance workflow has not been entered")
)

// allowedTransition reports whether from -> to is in the table.
func allowedTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Snapshot is a read model of the machine. Nested values are copies and may
// be retained by the caller.
type Snapshot struct {
	// InstanceID identifies the current workflow instance.
	InstanceID string
	// State is the current state.
	State State
	// ImageID is the captured image awaiting submission, if any.
	ImageID string
	// Today is the student's record for the current day, if known.
	Today *domain.Record
	// Result is set in StateResolved.
	Result *domain.Result
	// Busy reports whether an operation is in flight.
	Busy bool
}

// Transition is reported to the observer after every state change.
type Transition struct {
	// From is the previous state.
	From State
	// To is the new state.
	To State
	// Snapshot is the machine right after the change.
	Snapshot Snapshot
}

// Observer receives transitions. It is called without internal locks held
// and may read the machine.
type Observer func(Transition)

// Package workflow implements the attendance capture-and-verification
// state machine.
//
// The machine moves through
//
//	idle -> capturing -> captured -> preChecking -> submitting -> resolved
//
// with alreadyRecorded as a display-only state reached from idle when the
// student already has a record for today. Transitions outside the table are
// rejected with ErrInvalidTransition. Failures never escape as errors: they
// resolve the machine with one of the attendance outcomes. Errors returned
// by the operations only describe misuse (wrong state, concurrent calls) or
// abandonment.
package workflow

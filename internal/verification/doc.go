// Package verification adapts the portal's face endpoints for the
// attendance workflow.
//
// The Gateway runs the face pre-check and the attendance submission with a
// bounded timeout and converts every failure into a *Failure carrying one
// of the workflow outcomes, so callers never see raw transport errors.
package verification

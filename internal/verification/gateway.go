package verification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oshokin/face-attendance/internal/api/portal"
	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/logger"
)

// Portal is the subset of the portal client used by the gateway.
type Portal interface {
	VerifyFace(ctx context.Context, image string) (*portal.FaceCheck, error)
	SubmitAttendance(ctx context.Context, image string) (*domain.Record, error)
}

var (
	// ErrPrecheckMismatch is returned when a pre-check belongs to another image.
	ErrPrecheckMismatch = errors.New("pre-check belongs to a different image")
	// ErrPrecheckNotPassed is returned when submitting after a failed pre-check.
	ErrPrecheckNotPassed = errors.New("pre-check did not find exactly one face")
	// errImageRequired is returned for a nil or empty image.
	errImageRequired = errors.New("captured image is required")
)

const (
	// transportMessage is shown for every transport failure.
	transportMessage = "The attendance portal could not be reached. Check the connection and try again."
	// serverFaultMessage is shown when the portal failed internally.
	serverFaultMessage = "The attendance portal failed to process the request. Try again later."
	// cancelledMessage is shown when the caller abandoned the call.
	cancelledMessage = "The request was cancelled."
)

// Precheck is the face-presence result for one captured image.
type Precheck struct {
	// ImageID is the captured image the result belongs to.
	ImageID string
	// FaceDetected reports whether any face was found.
	FaceDetected bool
	// FaceCount is the number of faces found.
	FaceCount int
}

// Outcome maps the face count to a workflow outcome. Only exactly one face
// yields OutcomeSuccess.
func (p Precheck) Outcome() domain.Outcome {
	switch {
	case !p.FaceDetected || p.FaceCount <= 0:
		return domain.OutcomeFaceNotDetected
	case p.FaceCount > 1:
		return domain.OutcomeMultipleFaces
	default:
		return domain.OutcomeSuccess
	}
}

// Passed reports whether the image may be submitted.
func (p Precheck) Passed() bool {
	return p.Outcome() == domain.OutcomeSuccess
}

// Failure is a gateway call that did not succeed.
type Failure struct {
	// Outcome is domainRejected or transportError.
	Outcome domain.Outcome
	// Message is shown to the user.
	Message string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Outcome, f.Err)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}

	return nil, false
}

// Gateway runs face pre-checks and attendance submissions.
type Gateway struct {
	// portal is the remote service.
	portal Portal
	// timeout bounds each call, zero means no bound.
	timeout time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout bounds each gateway call.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = timeout
	}
}

// New creates a gateway over p.
func New(p Portal, opts ...Option) *Gateway {
	g := &Gateway{
		portal: p,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// PrecheckFace asks the portal how many faces the image contains.
func (g *Gateway) PrecheckFace(ctx context.Context, img *domain.CapturedImage) (Precheck, error) {
	if img == nil || img.Encoded == "" {
		return Precheck{}, errImageRequired
	}

	ctx, cancel := g.callContext(ctx)
	defer cancel()

	check, err := g.portal.VerifyFace(ctx, img.Encoded)
	if err != nil {
		return Precheck{}, classify(ctx, err)
	}

	result := Precheck{
		ImageID:      img.ID,
		FaceDetected: check.FaceDetected,
		FaceCount:    check.FaceCount,
	}

	logger.DebugKV(ctx, "Face pre-check finished", "image_id", img.ID, "face_count", result.FaceCount)

	return result, nil
}

// SubmitAttendance records attendance with img. pre must be a passing
// pre-check of the same image.
func (g *Gateway) SubmitAttendance(ctx context.Context, img *domain.CapturedImage, pre Precheck) (*domain.Record, error) {
	if img == nil || img.Encoded == "" {
		return nil, errImageRequired
	}

	if pre.ImageID != img.ID {
		return nil, ErrPrecheckMismatch
	}

	if !pre.Passed() {
		return nil, ErrPrecheckNotPassed
	}

	ctx, cancel := g.callContext(ctx)
	defer cancel()

	record, err := g.portal.SubmitAttendance(ctx, img.Encoded)
	if err != nil {
		return nil, classify(ctx, err)
	}

	logger.DebugKV(ctx, "Attendance submitted", "image_id", img.ID, "date", record.Date, "time", record.Time)

	return record, nil
}

// callContext applies the configured timeout.
func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}

	return context.WithCancel(ctx)
}

// classify converts a portal error into a Failure.
func classify(ctx context.Context, err error) *Failure {
	if apiErr, ok := portal.AsAPIError(err); ok {
		if apiErr.ServerFault() {
			return &Failure{Outcome: domain.OutcomeTransportError, Message: serverFaultMessage, Err: err}
		}

		message := apiErr.Message
		if message == "" {
			message = http.StatusText(apiErr.StatusCode)
		}

		return &Failure{Outcome: domain.OutcomeDomainRejected, Message: message, Err: err}
	}

	if errors.Is(err, context.Canceled) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Failure{Outcome: domain.OutcomeTransportError, Message: cancelledMessage, Err: err}
	}

	return &Failure{Outcome: domain.OutcomeTransportError, Message: transportMessage, Err: err}
}

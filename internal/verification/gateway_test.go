package verification

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/face-attendance/internal/api/portal"
	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/portaltest"
)

const testImage = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="

var errTestTransport = errors.New("connection refused")

// tokenSource returns a fixed token.
type tokenSource string

func (s tokenSource) Token() string { return string(s) }

// fakePortal returns scripted errors.
type fakePortal struct {
	verifyErr error
	submitErr error
}

func (f *fakePortal) VerifyFace(context.Context, string) (*portal.FaceCheck, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}

	return &portal.FaceCheck{FaceDetected: true, FaceCount: 1}, nil
}

func (f *fakePortal) SubmitAttendance(context.Context, string) (*domain.Record, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}

	return &domain.Record{Date: "2024-05-01", Time: "08:05:00", Status: domain.StatusPresent}, nil
}

func newImage(id string) *domain.CapturedImage {
	return &domain.CapturedImage{ID: id, Encoded: testImage}
}

// newGateway connects a gateway to the stub as a logged-in student.
func newGateway(t *testing.T, stub *portaltest.Server) *Gateway {
	t.Helper()

	id := stub.AddStudent("2101001", "Ani", "Informatika")

	client, err := portal.New(stub.URL(), portal.WithTokenSource(tokenSource(stub.IssueToken(id, time.Hour))))
	require.NoError(t, err)

	return New(client, WithTimeout(2*time.Second))
}

// TestPrecheck_Outcome checks the face count rule.
func TestPrecheck_Outcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		check Precheck
		want  domain.Outcome
	}{
		{name: "no face", check: Precheck{FaceDetected: false, FaceCount: 0}, want: domain.OutcomeFaceNotDetected},
		{name: "one face", check: Precheck{FaceDetected: true, FaceCount: 1}, want: domain.OutcomeSuccess},
		{name: "two faces", check: Precheck{FaceDetected: true, FaceCount: 2}, want: domain.OutcomeMultipleFaces},
		{name: "detected without count", check: Precheck{FaceDetected: true, FaceCount: 0}, want: domain.OutcomeFaceNotDetected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, tt.check.Outcome())
			require.Equal(t, tt.want == domain.OutcomeSuccess, tt.check.Passed())
		})
	}
}

// TestGateway_PrecheckAndSubmit runs the happy path against the stub.
func TestGateway_PrecheckAndSubmit(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	g := newGateway(t, stub)
	img := newImage("img-1")

	pre, err := g.PrecheckFace(context.Background(), img)
	require.NoError(t, err)
	require.Equal(t, Precheck{ImageID: "img-1", FaceDetected: true, FaceCount: 1}, pre)

	record, err := g.SubmitAttendance(context.Background(), img, pre)
	require.NoError(t, err)
	require.Equal(t, "Ani", record.StudentName)
	require.Equal(t, "97.40%", domain.FormatConfidence(*record.Confidence))
	require.Equal(t, []string{testImage, testImage}, stub.Images())
}

// TestGateway_SubmitGuards refuses pre-checks of other images or failed ones.
func TestGateway_SubmitGuards(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	g := newGateway(t, stub)

	_, err := g.SubmitAttendance(context.Background(), newImage("img-2"), Precheck{ImageID: "img-1", FaceDetected: true, FaceCount: 1})
	require.ErrorIs(t, err, ErrPrecheckMismatch)

	_, err = g.SubmitAttendance(context.Background(), newImage("img-1"), Precheck{ImageID: "img-1", FaceDetected: true, FaceCount: 2})
	require.ErrorIs(t, err, ErrPrecheckNotPassed)

	_, err = g.PrecheckFace(context.Background(), nil)
	require.Error(t, err)

	require.Zero(t, stub.Calls(portaltest.EndpointSubmit))
	require.Zero(t, stub.Calls(portaltest.EndpointVerifyFace))
}

// TestGateway_DomainRejectionIsVerbatim forwards the portal's message.
func TestGateway_DomainRejectionIsVerbatim(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	stub.RejectSubmissions("Wajah tidak dikenali")

	g := newGateway(t, stub)
	img := newImage("img-1")

	_, err := g.SubmitAttendance(context.Background(), img, Precheck{ImageID: img.ID, FaceDetected: true, FaceCount: 1})

	failure, ok := AsFailure(err)
	require.True(t, ok)
	require.Equal(t, domain.OutcomeDomainRejected, failure.Outcome)
	require.Equal(t, "Wajah tidak dikenali", failure.Message)
}

// TestGateway_TransportFailures covers timeouts, server faults and network errors.
func TestGateway_TransportFailures(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	stub.SetLatency(300 * time.Millisecond)

	id := stub.AddStudent("2101001", "Ani", "Informatika")
	client, err := portal.New(stub.URL(), portal.WithTokenSource(tokenSource(stub.IssueToken(id, time.Hour))))
	require.NoError(t, err)

	_, err = New(client, WithTimeout(20*time.Millisecond)).PrecheckFace(context.Background(), newImage("img-1"))

	failure, ok := AsFailure(err)
	require.True(t, ok)
	require.Equal(t, domain.OutcomeTransportError, failure.Outcome)
	require.Equal(t, transportMessage, failure.Message)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	tests := []struct {
		name    string
		err     error
		outcome domain.Outcome
		message string
	}{
		{
			name:    "server fault",
			err:     &portal.APIError{StatusCode: http.StatusBadGateway},
			outcome: domain.OutcomeTransportError,
			message: serverFaultMessage,
		},
		{
			name:    "network",
			err:     errTestTransport,
			outcome: domain.OutcomeTransportError,
			message: transportMessage,
		},
		{
			name:    "declined without message",
			err:     &portal.APIError{StatusCode: http.StatusNotFound},
			outcome: domain.OutcomeDomainRejected,
			message: "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			img := newImage("img-1")
			g := New(&fakePortal{submitErr: tt.err})

			_, err := g.SubmitAttendance(context.Background(), img, Precheck{ImageID: img.ID, FaceDetected: true, FaceCount: 1})

			failure, ok := AsFailure(err)
			require.True(t, ok)
			require.Equal(t, tt.outcome, failure.Outcome)
			require.Equal(t, tt.message, failure.Message)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

// TestGateway_Cancelled reports abandonment separately from network failures.
func TestGateway_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakePortal{verifyErr: context.Canceled}).PrecheckFace(ctx, newImage("img-1"))

	failure, ok := AsFailure(err)
	require.True(t, ok)
	require.Equal(t, cancelledMessage, failure.Message)
}

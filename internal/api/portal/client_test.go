package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/portaltest"
)

// staticToken is a TokenSource returning a fixed token.
type staticToken string

// Token implements TokenSource.
func (s staticToken) Token() string { return string(s) }

const testImage = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="

func newClient(t *testing.T, stub *portaltest.Server, token string) *Client {
	t.Helper()

	c, err := New(stub.URL(), WithCallTimeout(2*time.Second), WithTokenSource(staticToken(token)))
	require.NoError(t, err)

	return c
}

// TestNew_ValidatesBaseURL verifies that New rejects empty base URLs.
func TestNew_ValidatesBaseURL(t *testing.T) {
	t.Parallel()

	c, err := New("  ")
	require.Error(t, err)
	require.Nil(t, c)
}

// TestClient_callContext checks timeout vs cancel-only behavior of callContext.
func TestClient_callContext(t *testing.T) {
	t.Parallel()

	c := &Client{callTimeout: 0}

	ctx, cancel := c.callContext(context.Background())
	cancel()

	require.NotNil(t, ctx)

	c.callTimeout = 10 * time.Millisecond

	ctx, cancel = c.callContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 30*time.Millisecond)
}

// TestLogin covers admin and student logins and a declined attempt.
func TestLogin(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	id := stub.AddStudent("2101001", "Ani", "Informatika")
	c := newClient(t, stub, "")

	token, identity, err := c.Login(context.Background(), portaltest.AdminUsername, portaltest.AdminPassword, domain.RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, identity.IsAdmin())
	require.Equal(t, "Administrator", identity.DisplayName)

	token, identity, err = c.Login(context.Background(), "2101001", "2101001", domain.RoleStudent)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, &domain.Identity{
		ID:            id,
		Role:          domain.RoleStudent,
		Username:      "2101001",
		DisplayName:   "Ani",
		StudentNumber: "2101001",
		Department:    "Informatika",
	}, identity)

	_, _, err = c.Login(context.Background(), "2101001", "wrong", domain.RoleStudent)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Password salah", apiErr.Message)
}

// TestLogin_ValidatesBeforeSending makes sure invalid input never reaches the portal.
func TestLogin_ValidatesBeforeSending(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	c := newClient(t, stub, "")

	_, _, err := c.Login(context.Background(), "", "", domain.RoleStudent)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Contains(t, err.Error(), "username is required")

	_, _, err = c.Login(context.Background(), "x", "y", domain.Role("lecturer"))
	require.ErrorIs(t, err, ErrInvalidRequest)

	require.Zero(t, stub.Calls(portaltest.EndpointLogin))
}

// TestProfile_UsesBearerToken checks that the token source is attached.
func TestProfile_UsesBearerToken(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	id := stub.AddStudent("2101001", "Ani", "Informatika")

	identity, err := newClient(t, stub, stub.IssueToken(id, time.Hour)).Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, id, identity.ID)

	_, err = newClient(t, stub, "").Profile(context.Background())

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.True(t, apiErr.Unauthorized())
}

// TestFaceEndpoints runs the pre-check and the submission.
func TestFaceEndpoints(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	id := stub.AddStudent("2101001", "Ani", "Informatika")
	c := newClient(t, stub, stub.IssueToken(id, time.Hour))

	stub.SetFaceCount(2)

	check, err := c.VerifyFace(context.Background(), testImage)
	require.NoError(t, err)
	require.Equal(t, &FaceCheck{FaceDetected: true, FaceCount: 2}, check)

	record, err := c.SubmitAttendance(context.Background(), testImage)
	require.NoError(t, err)
	require.Equal(t, "Ani", record.StudentName)
	require.Equal(t, domain.StatusPresent, record.Status)
	require.NotNil(t, record.Confidence)
	require.InDelta(t, 97.4, *record.Confidence, 0.001)

	_, err = c.SubmitAttendance(context.Background(), testImage)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, portaltest.AlreadyRecordedMessage, apiErr.Message)
	require.False(t, apiErr.ServerFault())

	_, err = c.VerifyFace(context.Background(), "not-an-image")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

// TestListAttendanceAndStatistics exercises the query filters.
func TestListAttendanceAndStatistics(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	ani := stub.AddStudent("2101001", "Ani", "Informatika")
	budi := stub.AddStudent("2101002", "Budi", "Informatika")
	stub.AddRecord(ani, "2024-05-01", "08:05:00", "hadir")
	stub.AddRecord(ani, "2024-05-02", "08:10:00", "izin")
	stub.AddRecord(budi, "2024-05-01", "07:55:00", "alpa")

	c := newClient(t, stub, stub.IssueToken(0, time.Hour))

	records, err := c.ListAttendance(context.Background(), AttendanceFilter{StudentID: ani})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "2024-05-02", records[0].Date)
	require.Equal(t, domain.StatusExcused, records[0].Status)
	require.Equal(t, "Ani", records[0].StudentName)

	records, err = c.ListAttendance(context.Background(), AttendanceFilter{Date: "2024-05-01", Status: domain.StatusAbsent})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, budi, records[0].StudentID)

	stats, err := c.AttendanceStatistics(context.Background(), StatisticsFilter{StudentID: ani, From: "2024-05-01", To: "2024-05-31"})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Present)
	require.InDelta(t, 50.0, stats.PresentPercentage, 0.001)

	_, err = c.ListAttendance(context.Background(), AttendanceFilter{Status: domain.Status("late")})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.ListAttendance(context.Background(), AttendanceFilter{Date: "01/05/2024"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.Contains(t, err.Error(), "tanggal must be a date in 2006-01-02 format")

	_, err = c.AttendanceStatistics(context.Background(), StatisticsFilter{To: "yesterday"})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

// TestRecordAdministration updates and deletes a record as admin.
func TestRecordAdministration(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	ani := stub.AddStudent("2101001", "Ani", "Informatika")
	recordID := stub.AddRecord(ani, "2024-05-01", "08:05:00", "hadir")

	admin := newClient(t, stub, stub.IssueToken(0, time.Hour))

	updated, err := admin.UpdateAttendanceStatus(context.Background(), recordID, domain.StatusExcused)
	require.NoError(t, err)
	require.Equal(t, domain.StatusExcused, updated.Status)

	require.NoError(t, admin.DeleteAttendance(context.Background(), recordID))
	require.Empty(t, stub.Records())

	student := newClient(t, stub, stub.IssueToken(ani, time.Hour))
	err = student.DeleteAttendance(context.Background(), recordID)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

// TestStudentRoster runs the roster CRUD including the multipart upload.
func TestStudentRoster(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	c := newClient(t, stub, stub.IssueToken(0, time.Hour))

	created, err := c.CreateStudent(
		context.Background(),
		domain.NewStudent{StudentNumber: " 2101003 ", Name: "Citra", Department: "Sistem Informasi"},
		"/tmp/citra.jpg",
		strings.NewReader("jpeg-bytes"),
	)
	require.NoError(t, err)
	require.Equal(t, "2101003", created.StudentNumber)
	require.Equal(t, "static/uploads/citra.jpg", created.PhotoPath)

	students, err := c.ListStudents(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 1)

	got, err := c.GetStudent(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)

	require.NoError(t, c.DeleteStudent(context.Background(), created.ID))

	_, err = c.GetStudent(context.Background(), created.ID)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = c.CreateStudent(context.Background(), domain.NewStudent{StudentNumber: "1"}, "a.jpg", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrInvalidRequest)
}

// TestRegister self-registers a student and rejects a duplicate NIM.
func TestRegister(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	c := newClient(t, stub, "")

	student := domain.NewStudent{StudentNumber: "2101009", Name: "Dewi", Department: "Informatika"}

	message, err := c.Register(context.Background(), student)
	require.NoError(t, err)
	require.Equal(t, "Registrasi berhasil", message)

	_, err = c.Register(context.Background(), student)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, "NIM sudah terdaftar", apiErr.Message)
}

// TestTransportFailures covers unreachable portals, timeouts and garbage responses.
func TestTransportFailures(t *testing.T) {
	t.Parallel()

	stub := portaltest.New(t)
	id := stub.AddStudent("2101001", "Ani", "Informatika")
	token := stub.IssueToken(id, time.Hour)

	// Timeout.
	stub.SetLatency(200 * time.Millisecond)

	slow, err := New(stub.URL(), WithCallTimeout(20*time.Millisecond), WithTokenSource(staticToken(token)))
	require.NoError(t, err)

	_, err = slow.VerifyFace(context.Background(), testImage)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded), err)

	_, isAPI := AsAPIError(err)
	require.False(t, isAPI)

	// Unreachable.
	stub.Close()

	_, err = newClient(t, stub, token).Profile(context.Background())
	require.Error(t, err)

	_, isAPI = AsAPIError(err)
	require.False(t, isAPI)

	// Not an envelope.
	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>proxy</html>"))
	}))
	t.Cleanup(html.Close)

	c, err := New(html.URL)
	require.NoError(t, err)

	_, err = c.Profile(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

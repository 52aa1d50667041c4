package integration

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/portaltest"
	"github.com/oshokin/face-attendance/internal/service/admin"
	"github.com/oshokin/face-attendance/internal/service/attend"
	"github.com/oshokin/face-attendance/internal/service/auth"
	"github.com/oshokin/face-attendance/internal/service/common"
	"github.com/oshokin/face-attendance/internal/service/report"
	"github.com/oshokin/face-attendance/internal/session"
)

// writePhoto writes a small PNG face photo.
func writePhoto(t *testing.T, name string) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := range 64 {
		for y := range 48 {
			img.Set(x, y, color.RGBA{R: 180, G: 140, B: 110, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), name)

	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())

	return path
}

// TestJourney_EnrolAttendReport runs enrolment, attendance and reporting in one settings directory.
func TestJourney_EnrolAttendReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stub := portaltest.New(t)
	photo := writePhoto(t, "budi.png")

	// Setup settings with the camera reading the enrolment photo.
	settings := stub.WriteSettings(t, "camera:\n  source: file\n  path: "+photo+"\n  frame_wait: 200ms\n")

	var out bytes.Buffer

	opts := common.Options{ConfigPath: settings, Out: &out}

	// Self-registration needs no session.
	require.NoError(t, auth.Register(ctx, &auth.RegisterOptions{
		Options: opts,
		Student: domain.NewStudent{StudentNumber: "2101001", Name: "Ani", Department: "Informatika"},
	}))
	require.Contains(t, out.String(), "Registrasi berhasil")

	// Administrator enrols a second student with a photo.
	out.Reset()
	require.NoError(t, auth.Login(ctx, &auth.LoginOptions{
		Options:  opts,
		Username: portaltest.AdminUsername,
		Password: portaltest.AdminPassword,
		Role:     domain.RoleAdmin,
	}))
	require.Equal(t, "Logged in as Administrator (admin).\n", out.String())

	out.Reset()
	require.NoError(t, admin.AddStudent(ctx, &admin.AddStudentOptions{
		Options:   opts,
		Student:   domain.NewStudent{StudentNumber: "2101002", Name: "Budi", Department: "Informatika"},
		PhotoPath: photo,
	}))
	require.Contains(t, out.String(), "2101002")

	out.Reset()
	require.NoError(t, admin.ListStudents(ctx, &opts))
	require.Contains(t, out.String(), "Ani")
	require.Contains(t, out.String(), "Budi")

	// Attendance is refused for the administrator.
	err := attend.Run(ctx, &attend.Options{Options: opts})
	require.ErrorIs(t, err, session.ErrForbidden)

	// The student logs in with the NIM and records attendance.
	require.NoError(t, auth.Logout(ctx, &opts))

	out.Reset()
	require.NoError(t, auth.Login(ctx, &auth.LoginOptions{
		Options:  opts,
		Username: "2101002",
		Password: "2101002",
		Role:     domain.RoleStudent,
	}))
	require.Equal(t, "Logged in as Budi (student, NIM 2101002, Informatika).\n", out.String())

	out.Reset()
	require.NoError(t, attend.Run(ctx, &attend.Options{Options: opts}))
	require.Contains(t, out.String(), "Attendance recorded for Budi on "+domain.Today(time.Now()))
	require.Contains(t, out.String(), "Confidence: 97.40%")

	out.Reset()
	require.NoError(t, attend.Run(ctx, &attend.Options{Options: opts}))
	require.Contains(t, out.String(), "Attendance already recorded today")
	require.Equal(t, 1, stub.Calls(portaltest.EndpointSubmit))

	// Reports only show the student's own record.
	out.Reset()
	require.NoError(t, report.History(ctx, &report.HistoryOptions{Options: opts}))
	require.Contains(t, out.String(), "Budi")
	require.NotContains(t, out.String(), "Ani")

	out.Reset()
	require.NoError(t, report.Stats(ctx, &report.StatsOptions{Options: opts}))
	require.Contains(t, out.String(), "Total:")
	require.Contains(t, out.String(), "100.00%")

	// After logout nothing is authenticated.
	require.NoError(t, auth.Logout(ctx, &opts))

	err = auth.WhoAmI(ctx, &opts)
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
}

// TestJourney_ExpiredCredential removes a stored credential the portal no longer accepts.
func TestJourney_ExpiredCredential(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stub := portaltest.New(t)
	id := stub.AddStudent("2101001", "Ani", "Informatika")
	settings := stub.WriteSettings(t, "")
	credentialPath := filepath.Join(filepath.Dir(settings), "credential.json")

	require.NoError(t, os.WriteFile(
		credentialPath,
		[]byte(`{"token":"`+stub.IssueToken(id, -time.Minute)+`"}`),
		0o600,
	))

	var out bytes.Buffer

	err := auth.WhoAmI(ctx, &common.Options{ConfigPath: settings, Out: &out})
	require.ErrorIs(t, err, session.ErrCredentialExpired)
	require.Empty(t, out.String())
	require.Zero(t, stub.Calls(portaltest.EndpointProfile))

	_, err = os.Stat(credentialPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}

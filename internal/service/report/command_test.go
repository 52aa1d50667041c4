package report

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/portaltest"
	"github.com/oshokin/face-attendance/internal/repository/credential"
	"github.com/oshokin/face-attendance/internal/service/common"
)

// seeded is a stub with two students and three records.
type seeded struct {
	stub *portaltest.Server
	ani  int
	budi int
}

func newSeeded(t *testing.T) *seeded {
	t.Helper()

	stub := portaltest.New(t)
	ani := stub.AddStudent("2101001", "Ani", "Informatika")
	budi := stub.AddStudent("2101002", "Budi", "Informatika")

	stub.AddRecord(ani, "2024-05-01", "08:05:00", "hadir")
	stub.AddRecord(ani, "2024-05-02", "08:10:00", "izin")
	stub.AddRecord(budi, "2024-05-01", "07:55:00", "alpa")

	return &seeded{stub: stub, ani: ani, budi: budi}
}

// options returns options for a session of studentID (0 for admin).
func (s *seeded) options(t *testing.T, studentID int, out *bytes.Buffer) common.Options {
	t.Helper()

	settings := s.stub.WriteSettings(t, "")

	repo := credential.NewFileRepository(filepath.Join(filepath.Dir(settings), "credential.json"))
	require.NoError(t, repo.Save(context.Background(), &credential.Credential{Token: s.stub.IssueToken(studentID, time.Hour)}))

	return common.Options{ConfigPath: settings, Out: out}
}

// lines splits output into non-empty lines.
func lines(out string) []string {
	return strings.Split(strings.TrimRight(out, "\n"), "\n")
}

// TestHistory_Admin lists everything and filters.
func TestHistory_Admin(t *testing.T) {
	t.Parallel()

	s := newSeeded(t)

	var out bytes.Buffer

	opts := s.options(t, 0, &out)

	require.NoError(t, History(context.Background(), &HistoryOptions{Options: opts}))

	got := lines(out.String())
	require.Len(t, got, 4)
	require.True(t, strings.HasPrefix(got[0], "ID"))
	require.Contains(t, got[1], "2024-05-02")
	require.Contains(t, got[1], "excused")

	out.Reset()
	require.NoError(t, History(context.Background(), &HistoryOptions{Options: opts, Status: domain.StatusAbsent}))

	got = lines(out.String())
	require.Len(t, got, 2)
	require.Contains(t, got[1], "Budi")

	out.Reset()
	require.NoError(t, History(context.Background(), &HistoryOptions{Options: opts, Date: "2024-06-01"}))
	require.Equal(t, "No attendance records.\n", out.String())
}

// TestHistory_StudentSeesOwnRecords ignores another student's ID.
func TestHistory_StudentSeesOwnRecords(t *testing.T) {
	t.Parallel()

	s := newSeeded(t)

	var out bytes.Buffer

	require.NoError(t, History(context.Background(), &HistoryOptions{
		Options:   s.options(t, s.ani, &out),
		StudentID: s.budi,
	}))

	got := lines(out.String())
	require.Len(t, got, 3)
	require.NotContains(t, out.String(), "Budi")
}

// TestStats prints totals with percentages.
func TestStats(t *testing.T) {
	t.Parallel()

	s := newSeeded(t)

	var out bytes.Buffer

	require.NoError(t, Stats(context.Background(), &StatsOptions{Options: s.options(t, 0, &out)}))
	require.Equal(t, ""+
		"Total:    3\n"+
		"Present:  1  33.33%\n"+
		"Excused:  1  33.33%\n"+
		"Absent:   1  33.33%\n", out.String())

	out.Reset()

	require.NoError(t, Stats(context.Background(), &StatsOptions{
		Options: s.options(t, s.ani, &out),
		From:    "2024-05-01",
		To:      "2024-05-01",
	}))
	require.Contains(t, out.String(), "Present:  1  100.00%\n")

	err := Stats(context.Background(), &StatsOptions{Options: s.options(t, 0, &out), From: "May 1st"})
	require.Error(t, err)
}

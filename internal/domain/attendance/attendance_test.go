package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestIdentityClone verifies that Clone returns a copy and handles nil safely.
func TestIdentityClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Identity)(nil).Clone())

	a := &Identity{
		ID:            7,
		Role:          RoleStudent,
		Username:      "2101001",
		DisplayName:   "Ani",
		StudentNumber: "2101001",
		Department:    "Informatika",
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
	require.True(t, b.IsStudent())
	require.False(t, b.IsAdmin())
}

// TestRecordClone verifies that the confidence pointer is deep-copied.
func TestRecordClone(t *testing.T) {
	t.Parallel()

	confidence := 97.4
	r := &Record{
		StudentName: "Ani",
		Date:        "2024-05-01",
		Time:        "08:05:00",
		Status:      StatusPresent,
		Confidence:  &confidence,
	}

	c := r.Clone()
	require.Equal(t, r, c)
	require.NotSame(t, r.Confidence, c.Confidence)

	*c.Confidence = 10
	require.InDelta(t, 97.4, *r.Confidence, 0.0001)
}

// TestFormatConfidence checks the two-decimal percentage rendering.
func TestFormatConfidence(t *testing.T) {
	t.Parallel()

	require.Equal(t, "97.40%", FormatConfidence(97.4))
	require.Equal(t, "100.00%", FormatConfidence(100))
	require.Equal(t, "0.01%", FormatConfidence(0.005001))
}

// TestToday formats the calendar date in the portal layout.
func TestToday(t *testing.T) {
	t.Parallel()

	require.Equal(t, "2024-05-01", Today(time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)))
}

// TestStatusAndRoleValid rejects unknown values.
func TestStatusAndRoleValid(t *testing.T) {
	t.Parallel()

	require.True(t, StatusExcused.Valid())
	require.False(t, Status("hadir").Valid())
	require.True(t, RoleAdmin.Valid())
	require.False(t, Role("mahasiswa").Valid())
}

// TestResult covers Succeeded, Clone and the corrective instructions.
func TestResult(t *testing.T) {
	t.Parallel()

	var nilResult *Result
	require.False(t, nilResult.Succeeded())

	r := &Result{Outcome: OutcomeSuccess, Record: &Record{Time: "08:05:00"}}
	require.True(t, r.Succeeded())

	c := r.Clone()
	require.Equal(t, r, c)
	require.NotSame(t, r.Record, c.Record)

	for _, o := range []Outcome{
		OutcomeSuccess, OutcomeFaceNotDetected, OutcomeMultipleFaces,
		OutcomeDomainRejected, OutcomeTransportError, OutcomeDeviceUnavailable,
	} {
		require.NotEmpty(t, o.Instruction(), o)
	}
}

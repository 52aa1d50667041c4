package attend

import (
	"fmt"
	"io"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/workflow"
)

// Render writes the user-facing view of a workflow snapshot.
func Render(w io.Writer, snapshot workflow.Snapshot) error {
	var err error

	switch snapshot.State {
	case workflow.StateAlreadyRecorded:
		record := snapshot.Today
		_, err = fmt.Fprintf(w, "Attendance already recorded today at %s (%s).\n", record.Time, record.Status)
	case workflow.StateResolved:
		err = renderResult(w, snapshot.Result)
	default:
		_, err = fmt.Fprintf(w, "Attendance workflow is %s.\n", snapshot.State)
	}

	return err
}

// renderResult writes a resolved attempt.
func renderResult(w io.Writer, result *domain.Result) error {
	if result == nil {
		_, err := fmt.Fprintln(w, "Attendance attempt finished without a result.")

		return err
	}

	if !result.Succeeded() {
		_, err := fmt.Fprintf(w, "Attendance not recorded: %s\n", result.Message)

		return err
	}

	record := result.Record

	if _, err := fmt.Fprintf(w, "Attendance recorded for %s on %s at %s (%s).\n",
		record.StudentName, record.Date, record.Time, record.Status); err != nil {
		return err
	}

	if record.Confidence == nil {
		return nil
	}

	_, err := fmt.Fprintf(w, "Confidence: %s\n", domain.FormatConfidence(*record.Confidence))

	return err
}

package attendance

import (
	"fmt"
	"time"
)

// Status is the attendance status of a record.
type Status string

const (
	// StatusPresent marks a recorded presence.
	StatusPresent Status = "present"
	// StatusExcused marks an excused absence.
	StatusExcused Status = "excused"
	// StatusAbsent marks an unexcused absence.
	StatusAbsent Status = "absent"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusExcused, StatusAbsent:
		return true
	default:
		return false
	}
}

const (
	// DateLayout is the calendar date format used by the portal.
	DateLayout = "2006-01-02"
	// TimeLayout is the wall clock format used by the portal.
	TimeLayout = "15:04:05"
)

// Record is the client's read-only projection of a server attendance entry.
type Record struct {
	// ID is the server identifier, zero when the server did not return one.
	ID int
	// StudentID is the owner of the record.
	StudentID int
	// StudentName is the display name of the owner.
	StudentName string
	// StudentNumber is the NIM of the owner.
	StudentNumber string
	// Date is the calendar day in DateLayout.
	Date string
	// Time is the recording time in TimeLayout.
	Time string
	// Status is present, excused or absent.
	Status Status
	// Confidence is the recognition confidence in percent, set only on fresh submissions.
	Confidence *float64
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	cloned := *r

	if r.Confidence != nil {
		c := *r.Confidence
		cloned.Confidence = &c
	}

	return &cloned
}

// Today formats now as a portal calendar date.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// FormatConfidence renders a confidence percentage with two decimals, e.g. "97.40%".
func FormatConfidence(confidence float64) string {
	return fmt.Sprintf("%.2f%%", confidence)
}

package report

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/oshokin/face-attendance/internal/api/portal"
	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/logger"
	"github.com/oshokin/face-attendance/internal/service/common"
)

// HistoryOptions configures the history command.
type HistoryOptions struct {
	common.Options

	// Date restricts to one day (YYYY-MM-DD).
	Date string

	// StudentID restricts to one student; ignored for students.
	StudentID int

	// Status restricts to one status.
	Status domain.Status
}

// StatsOptions configures the stats command.
type StatsOptions struct {
	common.Options

	// StudentID restricts to one student; ignored for students.
	StudentID int

	// From is the first day included (YYYY-MM-DD).
	From string

	// To is the last day included (YYYY-MM-DD).
	To string
}

// History prints attendance records, newest first.
func History(ctx context.Context, opts *HistoryOptions) error {
	ctx = logger.WithName(ctx, "history")

	rt, identity, err := restore(ctx, &opts.Options)
	if err != nil {
		return err
	}

	filter := portal.AttendanceFilter{
		Date:      opts.Date,
		StudentID: scopedStudent(identity, opts.StudentID),
		Status:    opts.Status,
	}

	records, err := rt.Portal.ListAttendance(ctx, filter)
	if err != nil {
		return fmt.Errorf("list attendance: %w", err)
	}

	logger.DebugKV(ctx, "Attendance history fetched", "records", len(records))

	out := opts.Output()

	if len(records) == 0 {
		_, err = fmt.Fprintln(out, "No attendance records.")

		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tTIME\tNIM\tNAME\tSTATUS")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Date, r.Time, r.StudentNumber, r.StudentName, r.Status)
	}

	return w.Flush()
}

// Stats prints attendance totals and percentages.
func Stats(ctx context.Context, opts *StatsOptions) error {
	ctx = logger.WithName(ctx, "stats")

	rt, identity, err := restore(ctx, &opts.Options)
	if err != nil {
		return err
	}

	stats, err := rt.Portal.AttendanceStatistics(ctx, portal.StatisticsFilter{
		StudentID: scopedStudent(identity, opts.StudentID),
		From:      opts.From,
		To:        opts.To,
	})
	if err != nil {
		return fmt.Errorf("attendance statistics: %w", err)
	}

	w := tabwriter.NewWriter(opts.Output(), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Total:\t%d\n", stats.Total)
	_, _ = fmt.Fprintf(w, "Present:\t%d\t%.2f%%\n", stats.Present, stats.PresentPercentage)
	_, _ = fmt.Fprintf(w, "Excused:\t%d\t%.2f%%\n", stats.Excused, stats.ExcusedPercentage)
	_, _ = fmt.Fprintf(w, "Absent:\t%d\t%.2f%%\n", stats.Absent, stats.AbsentPercentage)

	return w.Flush()
}

// restore bootstraps and validates the session.
func restore(ctx context.Context, opts *common.Options) (*common.Runtime, *domain.Identity, error) {
	rt, err := common.Bootstrap(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	identity, err := rt.Restore(ctx)
	if err != nil {
		return nil, nil, err
	}

	return rt, identity, nil
}

// scopedStudent limits students to their own records.
func scopedStudent(identity *domain.Identity, requested int) int {
	if identity.IsStudent() {
		return identity.ID
	}

	return requested
}

package cmd

import (
	"github.com/spf13/cobra"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/service/report"
)

var (
	// historyDate restricts history to one day.
	historyDate string
	// historyStudent restricts history to one student.
	historyStudent int
	// historyStatus restricts history to one status.
	historyStatus string

	// statsStudent restricts statistics to one student.
	statsStudent int
	// statsFrom is the first day of the statistics period.
	statsFrom string
	// statsTo is the last day of the statistics period.
	statsTo string

	// historyCmd lists attendance records.
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List attendance records.",
		Long:  "Lists attendance records, newest first. Students only see their own records.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return report.History(ctx, &report.HistoryOptions{
				Options:   commonOptions(cmd),
				Date:      historyDate,
				StudentID: historyStudent,
				Status:    domain.Status(historyStatus),
			})
		},
	}

	// statsCmd prints attendance statistics.
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show attendance statistics.",
		Long:  "Shows attendance totals and percentages per status. Students only see their own statistics.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return report.Stats(ctx, &report.StatsOptions{
				Options:   commonOptions(cmd),
				StudentID: statsStudent,
				From:      statsFrom,
				To:        statsTo,
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	historyCmd.Flags().StringVar(&historyDate, "date", "", "day to list (YYYY-MM-DD)")
	historyCmd.Flags().IntVar(&historyStudent, "student", 0, "student ID (admin only)")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "status: present, excused or absent")

	statsCmd.Flags().IntVar(&statsStudent, "student", 0, "student ID (admin only)")
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "first day included (YYYY-MM-DD)")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "last day included (YYYY-MM-DD)")

	rootCmd.AddCommand(historyCmd, statsCmd)
}

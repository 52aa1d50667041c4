package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/face-attendance/internal/service/attend"
)

var (
	// shootAttempts bounds capture retries while the camera has no frame.
	shootAttempts int

	// attendCmd records today's attendance.
	attendCmd = &cobra.Command{
		Use:   "attend",
		Short: "Record today's attendance with a face photo.",
		Long: `Records today's attendance for the logged-in student.

If attendance is already recorded for today the existing record is shown and
the camera is not used. Otherwise a photo is taken from the configured camera
source, checked for exactly one face and submitted for recognition. Failures
are reported and never retried automatically; run the command again to retry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return attend.Run(ctx, &attend.Options{
				Options:       commonOptions(cmd),
				ShootAttempts: shootAttempts,
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	attendCmd.Flags().IntVar(&shootAttempts, "shoot-attempts", 0, "capture attempts while the camera has no frame (0 uses the default)")

	rootCmd.AddCommand(attendCmd)
}

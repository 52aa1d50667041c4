package cmd

import (
	"github.com/spf13/cobra"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/service/admin"
)

var (
	// newStudent holds the students add flags.
	newStudent domain.NewStudent
	// newStudentPhoto is the enrolment face photo.
	newStudentPhoto string

	// studentsCmd groups roster management.
	studentsCmd = &cobra.Command{
		Use:   "students",
		Short: "Manage the student roster (admin).",
	}

	// studentsListCmd prints the roster.
	studentsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List students.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			opts := commonOptions(cmd)

			return admin.ListStudents(ctx, &opts)
		},
	}

	// studentsAddCmd enrols a student.
	studentsAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Enrol a student with a face photo.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return admin.AddStudent(ctx, &admin.AddStudentOptions{
				Options:   commonOptions(cmd),
				Student:   newStudent,
				PhotoPath: newStudentPhoto,
			})
		},
	}

	// studentsShowCmd prints one student.
	studentsShowCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Show a student.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			opts := commonOptions(cmd)

			return admin.ShowStudent(ctx, &opts, id)
		},
	}

	// studentsDeleteCmd removes a student.
	studentsDeleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a student.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			opts := commonOptions(cmd)

			return admin.DeleteStudent(ctx, &opts, id)
		},
	}

	// recordsCmd groups attendance record corrections.
	recordsCmd = &cobra.Command{
		Use:   "records",
		Short: "Correct attendance records (admin).",
	}

	// recordsSetStatusCmd changes a record's status.
	recordsSetStatusCmd = &cobra.Command{
		Use:       "set-status <id> <present|excused|absent>",
		Short:     "Change the status of a record.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(domain.StatusPresent), string(domain.StatusExcused), string(domain.StatusAbsent)},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			opts := commonOptions(cmd)

			return admin.SetRecordStatus(ctx, &opts, id, domain.Status(args[1]))
		},
	}

	// recordsDeleteCmd removes a record.
	recordsDeleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			opts := commonOptions(cmd)

			return admin.DeleteRecord(ctx, &opts, id)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	studentsAddCmd.Flags().StringVar(&newStudent.StudentNumber, "nim", "", "student number")
	studentsAddCmd.Flags().StringVar(&newStudent.Name, "name", "", "full name")
	studentsAddCmd.Flags().StringVar(&newStudent.Department, "department", "", "study program")
	studentsAddCmd.Flags().StringVar(&newStudentPhoto, "photo", "", "face photo (png, jpg, jpeg or gif)")

	if err := studentsAddCmd.MarkFlagRequired("photo"); err != nil {
		panic(err)
	}

	studentsCmd.AddCommand(studentsListCmd, studentsAddCmd, studentsShowCmd, studentsDeleteCmd)
	recordsCmd.AddCommand(recordsSetStatusCmd, recordsDeleteCmd)

	rootCmd.AddCommand(studentsCmd, recordsCmd)
}

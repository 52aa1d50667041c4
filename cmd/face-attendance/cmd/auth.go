package cmd

import (
	"github.com/spf13/cobra"

	domain "github.com/oshokin/face-attendance/internal/domain/attendance"
	"github.com/oshokin/face-attendance/internal/service/auth"
)

var (
	// loginUsername is the admin username or the student's NIM.
	loginUsername string
	// loginPassword skips the password prompt when set.
	loginPassword string
	// loginAsAdmin selects the administrator login.
	loginAsAdmin bool

	// registerStudent holds the register flags.
	registerStudent domain.NewStudent

	// loginCmd logs in and persists the credential.
	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in to the attendance portal.",
		Long: `Logs in to the attendance portal and stores the credential for later commands.

Students log in with their NIM, administrators with --admin and their username.
The password is prompted for without echo unless --password is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			role := domain.RoleStudent
			if loginAsAdmin {
				role = domain.RoleAdmin
			}

			return auth.Login(ctx, &auth.LoginOptions{
				Options:  commonOptions(cmd),
				Username: loginUsername,
				Password: loginPassword,
				Role:     role,
			})
		},
	}

	// logoutCmd forgets the stored credential.
	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			opts := commonOptions(cmd)

			return auth.Logout(ctx, &opts)
		},
	}

	// whoamiCmd prints the logged-in identity.
	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user.",
		Long:  "Validates the stored credential with the portal and prints the identity behind it. An invalid credential is removed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			opts := commonOptions(cmd)

			return auth.WhoAmI(ctx, &opts)
		},
	}

	// registerCmd self-registers a student.
	registerCmd = &cobra.Command{
		Use:   "register",
		Short: "Register as a new student.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			return auth.Register(ctx, &auth.RegisterOptions{
				Options: commonOptions(cmd),
				Student: registerStudent,
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "NIM, or the admin username with --admin")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password, prompted for when omitted")
	loginCmd.Flags().BoolVar(&loginAsAdmin, "admin", false, "log in as administrator")

	if err := loginCmd.MarkFlagRequired("username"); err != nil {
		panic(err)
	}

	registerCmd.Flags().StringVar(&registerStudent.StudentNumber, "nim", "", "student number")
	registerCmd.Flags().StringVar(&registerStudent.Name, "name", "", "full name")
	registerCmd.Flags().StringVar(&registerStudent.Department, "department", "", "study program")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, registerCmd)
}

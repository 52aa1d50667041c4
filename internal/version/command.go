package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand adds a `version` subcommand to root and enables `--version`.
func AttachCobraVersionCommand(root *cobra.Command) {
	root.Version = Short()
	root.SetVersionTemplate(Full() + "\n")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long:  "Print the client version together with the commit hash and build timestamp injected at build time.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	})
}

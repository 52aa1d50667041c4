package version

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures the rendered strings agree with each other.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
	require.Equal(t, "face-attendance/"+Short(), UserAgent())
}

// TestAttachCobraVersionCommand runs the attached subcommand.
func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{Use: "face-attendance"}
	AttachCobraVersionCommand(root)

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), Full())
}

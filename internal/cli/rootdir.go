package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbakker/cairn/mount"
)

// NewRootDirCommand creates the root command that prints the marker path.
func NewRootDirCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "root",
		Short: "Print the marker directory path",
		Long: `Print the absolute path of the ` + mount.RootDir + ` marker directory found by
walking upward from the working directory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(rootOpts.Verbose)
			marker, err := mount.FindRoot("")
			if err != nil {
				return WrapExitError(ExitCommandError, "no marker directory found", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), marker)
			return nil
		},
	}
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wbakker/cairn/mount"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create the marker directory",
		Long: `Create the ` + mount.RootDir + ` marker directory that anchors all saves.

Sessions opened without an explicit base walk upward from the working
directory until they find the marker. Run init once at the project root.

Example:
  cairn init
  cairn init ./experiments`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging(rootOpts.Verbose)
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			marker, err := mount.CreateRoot(dir)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create marker directory", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), marker)
			return nil
		},
	}
	return cmd
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wbakker/cairn/mount"
)

// CleanOptions holds flags for the clean command.
type CleanOptions struct {
	*RootOptions
	Generator string
	Subdir    string
	Base      string
}

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "clean <key>",
		Short: "Remove the cached files of a key",
		Long: `Remove everything saved under a key: the manifest, all payload files and
the key directory itself. The entry for the key is dropped from the parent
ignore list.

The key directory is resolved the same way sessions resolve it, so pass the
same --generator and --subdir the saving script used.

Example:
  cairn clean experiment
  cairn clean experiment --generator cache/train`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Generator, "generator", "", "generator label the key was saved under")
	cmd.Flags().StringVar(&opts.Subdir, "subdir", "", "subdirectory below the generator folder")
	cmd.Flags().StringVar(&opts.Base, "base", "", "base directory (defaults to the marker directory)")

	return cmd
}

func runClean(opts *CleanOptions, key string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	var mopts []mount.Option
	if opts.Generator != "" {
		mopts = append(mopts, mount.WithGenerator(opts.Generator))
	}
	if opts.Subdir != "" {
		mopts = append(mopts, mount.WithSubdir(opts.Subdir))
	}
	if opts.Base != "" {
		mopts = append(mopts, mount.WithBase(opts.Base))
	}
	mnt, err := mount.New(key, mopts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve key directory", err)
	}
	dir := mnt.Dir()

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitFailure, fmt.Sprintf("key %q has no cached files", key))
	}
	slog.Info("removing cached files", "key", key, "dir", dir)
	if err := os.RemoveAll(dir); err != nil {
		return WrapExitError(ExitCommandError, "failed to remove cached files", err)
	}
	if err := mount.DropIgnoreEntries(filepath.Dir(dir), filepath.Base(dir)); err != nil {
		return WrapExitError(ExitCommandError, "failed to update ignore list", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omeyang/logkit/storage"
)

func newPurgeCmd(opts *options, fs storage.Storage) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete the active log file and every backup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := opts.resolve(cmd, fs)
			if err != nil {
				return err
			}
			failed := t.rotator().DeleteAll(t.config.Dir, t.config.Name)
			if len(failed) > 0 {
				return fmt.Errorf("failed to delete %d path(s): %s", len(failed), strings.Join(failed, ", "))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", t.activePath())
			return nil
		},
	}
}

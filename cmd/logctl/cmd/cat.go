package cmd

import (
	"github.com/spf13/cobra"

	"github.com/omeyang/logkit/storage"
)

func newCatCmd(opts *options, fs storage.Storage) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "cat",
		Short: "Print the active log file",
		Long:  `Print the active log file. With --all the backups are printed first, oldest to newest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := opts.resolve(cmd, fs)
			if err != nil {
				return err
			}
			return runCat(cmd, t, all)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include backups")
	return cmd
}

func runCat(cmd *cobra.Command, t target, all bool) error {
	var paths []string
	if all {
		chain, err := t.rotator().Chain(t.config.Dir, t.config.Name)
		if err != nil {
			return err
		}
		for i := len(chain) - 1; i >= 0; i-- {
			paths = append(paths, chain[i].Path)
		}
	}
	paths = append(paths, t.activePath())

	out := cmd.OutOrStdout()
	for _, p := range paths {
		data, err := t.fs.Contents(p)
		if storage.IsNotExist(err) {
			continue
		}
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	}
	return nil
}

package cmd

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/omeyang/logkit/storage"
	"github.com/omeyang/logkit/xlog/filewriter"
)

// maxLineSize 从标准输入读取时单条消息的上限
const maxLineSize = 1 << 20

func newWriteCmd(opts *options, fs storage.Storage) *cobra.Command {
	return &cobra.Command{
		Use:   "write [message...]",
		Short: "Append messages to the active log file",
		Long: `Append each argument as one message, rotating first whenever the
policy requires it. Without arguments every line read from stdin is one message.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := opts.resolve(cmd, fs)
			if err != nil {
				return err
			}
			return runWrite(cmd, t, args)
		},
	}
}

func runWrite(cmd *cobra.Command, t target, args []string) error {
	w, err := filewriter.New(filewriter.Config{
		Dir:     t.config.Dir,
		Name:    t.config.Name,
		Ext:     t.config.Ext,
		Policy:  t.policy,
		Mode:    t.mode(),
		Storage: t.fs,
	})
	if err != nil {
		return err
	}

	var errs error
	if len(args) > 0 {
		for _, msg := range args {
			errs = multierr.Append(errs, w.Write(msg))
		}
	} else {
		scanner := bufio.NewScanner(cmd.InOrStdin())
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			errs = multierr.Append(errs, w.Write(scanner.Text()))
		}
		errs = multierr.Append(errs, scanner.Err())
	}
	errs = multierr.Append(errs, w.Close())

	st := w.Stats()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: appended %d, collapsed %d, rotations %d, failures %d\n",
		w.Path(), st.Writes, st.Collapsed, st.Rotations, st.Failures)
	return errs
}

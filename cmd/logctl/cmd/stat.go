package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/omeyang/logkit/storage"
	"github.com/omeyang/logkit/xlog/rotation"
)

// FileStat 单个日志文件的统计
type FileStat struct {
	Path    string    `json:"path"`
	Seq     int       `json:"seq"`
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

// StatOutput stat 命令的 JSON 输出
type StatOutput struct {
	Policy     string     `json:"policy"`
	Mode       string     `json:"mode"`
	Files      []FileStat `json:"files"`
	TotalBytes int64      `json:"total_bytes"`
}

func newStatCmd(opts *options, fs storage.Storage) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "stat",
		Short: "Show the active file and backups with their sizes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := opts.resolve(cmd, fs)
			if err != nil {
				return err
			}
			out, err := collectStats(t)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			return printStats(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// collectStats 活动文件的 Seq 为 0，备份按编号升序
func collectStats(t target) (StatOutput, error) {
	out := StatOutput{Policy: t.policy.String(), Mode: t.mode().String(), Files: []FileStat{}}
	chain, err := t.rotator().Chain(t.config.Dir, t.config.Name)
	if err != nil {
		return out, err
	}
	candidates := append([]rotation.Backup{{Path: t.activePath()}}, chain...)
	for _, c := range candidates {
		info, err := t.fs.Stat(c.Path)
		if storage.IsNotExist(err) {
			continue
		}
		if err != nil {
			return out, err
		}
		out.Files = append(out.Files, FileStat{Path: c.Path, Seq: c.Seq, Size: info.Size, Created: info.Created})
		out.TotalBytes += info.Size
	}
	return out, nil
}

func printStats(cmd *cobra.Command, out StatOutput) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "policy: %s (%s)\n", out.Policy, out.Mode)
	if len(out.Files) == 0 {
		_, _ = fmt.Fprintln(w, "no log files")
		return w.Flush()
	}
	_, _ = fmt.Fprintln(w, "FILE\tSIZE\tCREATED")
	for _, f := range out.Files {
		created := "-"
		if !f.Created.IsZero() {
			created = f.Created.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", f.Path, rotation.HumanBytes(uint64(f.Size)), created)
	}
	_, _ = fmt.Fprintf(w, "total\t%s\t\n", rotation.HumanBytes(uint64(out.TotalBytes)))
	return w.Flush()
}

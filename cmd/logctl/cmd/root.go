// Package cmd logctl 的子命令：写入、查看、统计与清理轮转日志
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omeyang/logkit/storage"
	"github.com/omeyang/logkit/xlog"
	"github.com/omeyang/logkit/xlog/filewriter"
	"github.com/omeyang/logkit/xlog/rotation"
)

var errNoDir = errors.New("log dir is required (--dir, LOG_DIR or config file)")

// options 根命令的公共参数，命令行上显式给出的值覆盖配置文件与环境变量
type options struct {
	configPath string
	dir        string
	name       string
	ext        string
	policy     string
	maxSize    uint64
	maxAge     string
	maxFiles   int
	brief      bool
}

// target 解析后的操作对象
type target struct {
	config xlog.LogConfig
	policy rotation.Policy
	fs     storage.Storage
}

// NewRootCmd 创建根命令，日志存放在本地文件系统
func NewRootCmd() *cobra.Command {
	return newRootCmd(storage.NewOS())
}

func newRootCmd(fs storage.Storage) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "logctl",
		Short: "Write, inspect and purge rotating log files",
		Long: `logctl works on the log files produced by logkit's file writer:
an active file <dir>/<name>.<ext> plus numbered backups <name>.<ext>.1 (newest)
up to <name>.<ext>.9 (oldest).

Settings come from the config file, then LOG_* environment variables,
then explicit flags.`,
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML or JSON log config file")
	f.StringVar(&opts.dir, "dir", "", "Log directory")
	f.StringVar(&opts.name, "name", "", "Log file base name")
	f.StringVar(&opts.ext, "ext", "", "Log file extension")
	f.StringVar(&opts.policy, "policy", "", "Rotation preset: none, standard or custom")
	f.Uint64Var(&opts.maxSize, "max-size", 0, "Rotate when the active file would reach this many bytes (implies --policy custom)")
	f.StringVar(&opts.maxAge, "max-age", "", "Rotate when the active file is older than this, e.g. 12h or 7d (implies --policy custom)")
	f.IntVar(&opts.maxFiles, "max-files", 0, "Backups to keep, 0-9, 0 keeps up to 9 (implies --policy custom)")
	f.BoolVar(&opts.brief, "brief", false, "Collapse consecutive duplicate messages")

	cmd.AddCommand(newWriteCmd(opts, fs))
	cmd.AddCommand(newCatCmd(opts, fs))
	cmd.AddCommand(newStatCmd(opts, fs))
	cmd.AddCommand(newPurgeCmd(opts, fs))
	return cmd
}

// Execute 运行根命令
func Execute() error {
	return NewRootCmd().Execute()
}

// resolve 合并配置文件、环境变量与命令行参数
func (o *options) resolve(cmd *cobra.Command, fs storage.Storage) (target, error) {
	c, err := xlog.LoadConfig(o.configPath)
	if err != nil {
		return target{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		c.Dir = o.dir
	}
	if flags.Changed("name") {
		c.Name = o.name
	}
	if flags.Changed("ext") {
		c.Ext = o.ext
	}
	if flags.Changed("brief") {
		c.Brief = o.brief
	}
	if flags.Changed("policy") {
		c.Policy = o.policy
	}
	if flags.Changed("max-size") {
		c.MaxSize, c.Policy = o.maxSize, xlog.PolicyCustom
	}
	if flags.Changed("max-age") {
		c.MaxAge, c.Policy = o.maxAge, xlog.PolicyCustom
	}
	if flags.Changed("max-files") {
		c.MaxFiles, c.Policy = o.maxFiles, xlog.PolicyCustom
	}

	if c.Dir == "" {
		return target{}, errNoDir
	}
	if err := c.Validate(); err != nil {
		return target{}, fmt.Errorf("invalid log settings: %w", err)
	}
	policy, err := c.RotationPolicy()
	if err != nil {
		return target{}, err
	}
	return target{config: c, policy: policy, fs: fs}, nil
}

func (t target) rotator() *rotation.Rotator {
	return rotation.NewRotator(t.fs, rotation.WithExt(t.config.Ext))
}

func (t target) activePath() string {
	return t.rotator().ActivePath(t.config.Dir, t.config.Name)
}

func (t target) mode() filewriter.Mode {
	if t.config.Brief {
		return filewriter.Brief
	}
	return filewriter.Standard
}

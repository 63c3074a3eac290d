package xlog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/omeyang/logkit/cfg"
	"github.com/omeyang/logkit/metrics"
	"github.com/omeyang/logkit/metrics/sample"
	"github.com/omeyang/logkit/storage"
	"github.com/omeyang/logkit/xlog/filewriter"
	"github.com/omeyang/logkit/xlog/rotation"
)

// 轮转策略预置名称
const (
	PolicyNone     = "none"
	PolicyStandard = "standard"
	PolicyCustom   = "custom"
)

// SamplingConfig 低级别日志采样配置
type SamplingConfig struct {
	// 采样器类型，为空时不采样
	Type sample.SamplerType `yaml:"type" json:"type"`
	// 采样率（0.0-1.0）
	Rate float64 `yaml:"rate" json:"rate"`
	// 两次命中的最小间隔（仅用于 jitter），例如 "100ms"
	Jitter string `yaml:"jitter" json:"jitter"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 最低级别
	Level Severity `yaml:"level" json:"level"`
	// 关闭全部日志
	Disabled bool `yaml:"disabled" json:"disabled"`
	// 是否输出到终端
	Console bool `yaml:"console" json:"console"`
	// 日志行格式：standard、minimal、naive
	Format string `yaml:"format" json:"format"`
	// 订阅的频道，为空表示全部
	Channels []string `yaml:"channels" json:"channels"`

	// 日志目录，为空时不写文件
	Dir  string `yaml:"dir" json:"dir"`
	Name string `yaml:"name" json:"name"`
	Ext  string `yaml:"ext" json:"ext"`
	// 是否折叠连续重复的日志
	Brief bool `yaml:"brief" json:"brief"`

	// 轮转策略：none、standard 或 custom；custom 时使用下面三项
	Policy   string `yaml:"policy" json:"policy"`
	MaxSize  uint64 `yaml:"max_size" json:"max_size"`
	MaxAge   string `yaml:"max_age" json:"max_age"`
	MaxFiles int    `yaml:"max_files" json:"max_files"`

	Sampling SamplingConfig `yaml:"sampling" json:"sampling"`
}

// DefaultConfig 默认配置
func DefaultConfig() LogConfig {
	return LogConfig{
		Level:   Debug,
		Console: true,
		Format:  "standard",
		Name:    "app",
		Ext:     rotation.DefaultExt,
		Policy:  PolicyStandard,
	}
}

// LoadConfig 先从环境变量、再从配置文件（.yaml/.yml/.json）加载配置，文件中的值覆盖环境变量
func LoadConfig(configPath string) (LogConfig, error) {
	config := DefaultConfig()
	var errs error
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		errs = multierr.Append(errs, config.Level.UnmarshalText([]byte(v)))
	}
	config.Dir = getEnvString("LOG_DIR", config.Dir)
	config.Name = getEnvString("LOG_NAME", config.Name)
	config.MaxAge = getEnvString("LOG_MAX_AGE", config.MaxAge)
	config.Brief = getEnvBool("LOG_BRIEF", config.Brief)
	if v := getEnvString("LOG_CHANNELS", ""); v != "" {
		config.Channels = splitList(v)
	}
	if v, ok := os.LookupEnv("LOG_MAX_SIZE"); ok {
		size, err := strconv.ParseUint(v, 10, 64)
		errs = multierr.Append(errs, err)
		config.MaxSize = size
		config.Policy = PolicyCustom
	}
	if v, ok := os.LookupEnv("LOG_MAX_FILES"); ok {
		files, err := strconv.Atoi(v)
		errs = multierr.Append(errs, err)
		config.MaxFiles = files
		config.Policy = PolicyCustom
	}
	if _, ok := os.LookupEnv("LOG_MAX_AGE"); ok {
		config.Policy = PolicyCustom
	}
	if errs != nil {
		return config, fmt.Errorf("invalid log environment: %w", errs)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return config, fmt.Errorf("failed to read config file: %w", err)
		}
		parsed, err := parserFor(configPath, func() LogConfig { return config })
		if err != nil {
			return config, err
		}
		if config, err = parsed.Parse(data); err != nil {
			return config, err
		}
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func parserFor(configPath string, defaults func() LogConfig) (cfg.Parser[LogConfig], error) {
	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".json":
		return cfg.JSONParser[LogConfig]{Defaults: defaults}, nil
	case ".yaml", ".yml":
		return cfg.YAMLParser[LogConfig]{Defaults: defaults}, nil
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// Validate 校验配置
func (c LogConfig) Validate() error {
	if !c.Level.Valid() {
		return fmt.Errorf("invalid log level: %d", int(c.Level))
	}
	if _, ok := FormatByName(c.Format); !ok {
		return fmt.Errorf("unknown log format: %q", c.Format)
	}
	if c.Dir != "" && strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("log name is required when dir is set")
	}
	if _, err := c.RotationPolicy(); err != nil {
		return err
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling rate %v out of range [0,1]", c.Sampling.Rate)
	}
	if _, err := c.sampler(); err != nil {
		return err
	}
	return nil
}

// RotationPolicy 按配置构造轮转策略
func (c LogConfig) RotationPolicy() (rotation.Policy, error) {
	switch strings.ToLower(c.Policy) {
	case PolicyNone:
		return rotation.None, nil
	case PolicyStandard, "":
		return rotation.Standard, nil
	case PolicyCustom:
		age, err := ParseAge(c.MaxAge)
		if err != nil {
			return rotation.Policy{}, err
		}
		return rotation.NewPolicy(c.MaxSize, age, c.MaxFiles)
	default:
		return rotation.Policy{}, fmt.Errorf("%w: unknown preset %q", rotation.ErrInvalidPolicy, c.Policy)
	}
}

// ParseAge 解析时长，除 time.ParseDuration 的格式外还接受以 d 结尾的天数，例如 "7d"
func ParseAge(text string) (time.Duration, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(text, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid max age %q: %w", text, err)
		}
		return rotation.Days(n), nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("invalid max age %q: %w", text, err)
	}
	return d, nil
}

func (c LogConfig) sampler() (sample.Sampler, error) {
	if c.Sampling.Type == "" {
		return nil, nil
	}
	var jitter time.Duration
	if c.Sampling.Jitter != "" {
		d, err := time.ParseDuration(c.Sampling.Jitter)
		if err != nil {
			return nil, fmt.Errorf("invalid sampling jitter: %w", err)
		}
		jitter = d
	}
	return sample.New(c.Sampling.Type, c.Sampling.Rate, jitter)
}

// Outputs 按配置构建 Registry 时使用的外部依赖，零值即可使用
type Outputs struct {
	// Console 终端输出目标，默认 os.Stdout
	Console io.Writer
	// Storage 日志文件存储，默认本地文件系统
	Storage storage.Storage
	Metrics *metrics.WriterMetrics
	// Logger 写入器与 Registry 自身的诊断日志
	Logger *zap.Logger
}

// NewFromConfig 按配置创建 Registry 并注册终端与文件 Provider
func NewFromConfig(c LogConfig, out Outputs, opts ...RegistryOption) (*Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	format, _ := FormatByName(c.Format)
	sampler, _ := c.sampler()

	base := []RegistryOption{WithMinSeverity(c.Level), WithDiagnostics(out.Logger)}
	if sampler != nil {
		base = append(base, WithSampler(sampler))
	}
	reg := NewRegistry(append(base, opts...)...)
	reg.SetEnabled(!c.Disabled)

	providerOpts := []ProviderOption{WithFormat(format), WithChannels(c.Channels...)}
	if c.Console {
		reg.Register(NewConsoleProvider(out.Console, append(providerOpts, WithID("console"))...))
	}
	if c.Dir != "" {
		policy, _ := c.RotationPolicy()
		mode := filewriter.Standard
		if c.Brief {
			mode = filewriter.Brief
		}
		w, err := filewriter.New(filewriter.Config{
			Dir:     c.Dir,
			Name:    c.Name,
			Ext:     c.Ext,
			Policy:  policy,
			Mode:    mode,
			Storage: out.Storage,
			Logger:  out.Logger,
			Metrics: out.Metrics,
		})
		if err != nil {
			return nil, err
		}
		reg.Register(NewFileProvider(w, append(providerOpts, WithID("file"))...))
	}
	return reg, nil
}

// WatchConfig 监控配置文件，返回的 Config 在文件变更时自动更新
func WatchConfig(ctx context.Context, configPath string, logger *zap.Logger) (*cfg.BaseConfig[LogConfig], error) {
	parser, err := parserFor(configPath, DefaultConfig)
	if err != nil {
		return nil, err
	}
	source := cfg.NewFileSource(configPath, cfg.WithSourceLogger(logger))
	validated := cfg.Validated[LogConfig](parser, func(c LogConfig) error { return c.Validate() })
	return cfg.NewBaseConfig[LogConfig](ctx, source, validated, cfg.WithLogger(logger))
}

// WatchLevel 把配置中的级别与开关应用到 reg，直到 ctx 结束或配置停止
func WatchLevel(ctx context.Context, reg *Registry, config cfg.Config[LogConfig]) error {
	ch, err := config.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for c := range ch {
			if err := reg.SetMinSeverity(c.Level); err != nil {
				reg.logger.Warn("ignore invalid log level", zap.Error(err))
				continue
			}
			reg.SetEnabled(!c.Disabled)
		}
	}()
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// 辅助函数，从环境变量中读取布尔值
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

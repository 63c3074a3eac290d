package xlog

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// 终端配色
const (
	colorGray   = "245"
	colorWhite  = "255"
	colorBlue   = "39"
	colorYellow = "220"
	colorRed    = "196"
)

func severityStyles() map[Severity]lipgloss.Style {
	return map[Severity]lipgloss.Style{
		Verbose: lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Debug:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorWhite)),
		Info:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorBlue)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorRed)),
	}
}

// ConsoleProvider 输出到终端（默认 stdout）
// 输出目标是终端且未设置 NO_COLOR 时按级别着色
type ConsoleProvider struct {
	*ChannelSet
	mu       sync.Mutex
	out      io.Writer
	composer *Composer
	styles   map[Severity]lipgloss.Style
}

// NewConsoleProvider 创建终端 Provider；out 为 nil 时使用 os.Stdout
func NewConsoleProvider(out io.Writer, opts ...ProviderOption) *ConsoleProvider {
	if out == nil {
		out = os.Stdout
	}
	o := applyProviderOptions(opts)
	p := &ConsoleProvider{
		ChannelSet: NewChannelSet(o.id, o.channels...),
		out:        out,
		composer:   NewComposer(o.format, o.layout),
	}
	if IsTTY(out) && !noColor() {
		p.styles = severityStyles()
	}
	return p
}

// Log 输出一行
func (p *ConsoleProvider) Log(msg LogMessage) error {
	line := p.composer.Compose(msg)
	if style, ok := p.styles[msg.Severity]; ok {
		line = style.Render(line)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.out, line+"\n")
	return err
}

// IsTTY 判断输出目标是否为终端
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func noColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Logo is printed at the start of interactive runs.
const Logo = `
  ┌─────────────────────────────────────┐
  │  m e d i a m i r r o r              │
  │  resumable library synchronisation  │
  └─────────────────────────────────────┘
`

var (
	cyan    = lipgloss.Color("#00FFFF")
	yellow  = lipgloss.Color("#FFFF00")
	red     = lipgloss.Color("#FF3030")
	green   = lipgloss.Color("#39FF14")
	magenta = lipgloss.Color("#FF00FF")
	dim     = lipgloss.Color("#808080")
)

// Printer writes styled messages. Colors are dropped when the output is
// not a terminal or when disabled.
type Printer struct {
	out   io.Writer
	color bool

	label     lipgloss.Style
	value     lipgloss.Style
	errStyle  lipgloss.Style
	okStyle   lipgloss.Style
	warnStyle lipgloss.Style
	highlight lipgloss.Style
	dimStyle  lipgloss.Style
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	r := lipgloss.NewRenderer(out)
	return &Printer{
		out:       out,
		color:     !noColor && IsTerminal(out),
		label:     r.NewStyle().Foreground(cyan).Bold(true),
		value:     r.NewStyle().Foreground(yellow),
		errStyle:  r.NewStyle().Foreground(red).Bold(true),
		okStyle:   r.NewStyle().Foreground(green).Bold(true),
		warnStyle: r.NewStyle().Foreground(yellow),
		highlight: r.NewStyle().Foreground(magenta),
		dimStyle:  r.NewStyle().Foreground(dim),
	}
}

// Stdout is the default printer.
var Stdout = NewPrinter(os.Stdout, false)

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Logo prints the banner.
func (p *Printer) Logo() {
	fmt.Fprint(p.out, p.render(p.label, Logo))
}

// Error prints msg, followed by the first arg when given.
func (p *Printer) Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(p.out, p.render(p.errStyle, msg))
}

// Success prints msg in green.
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.out, p.render(p.okStyle, msg))
}

// Info prints a labelled value.
func (p *Printer) Info(label, value string) {
	fmt.Fprintf(p.out, "%s: %s\n", p.render(p.label, label), p.render(p.value, value))
}

// Warning prints msg, followed by the first arg when given.
func (p *Printer) Warning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(p.out, p.render(p.warnStyle, msg))
}

// Highlight prints msg in magenta.
func (p *Printer) Highlight(msg string) {
	fmt.Fprintln(p.out, p.render(p.highlight, msg))
}

// Dim prints msg in grey.
func (p *Printer) Dim(msg string) {
	fmt.Fprintln(p.out, p.render(p.dimStyle, msg))
}

// PrintError prints an error message on the default printer.
func PrintError(msg string, args ...interface{}) { Stdout.Error(msg, args...) }

// PrintSuccess prints a success message on the default printer.
func PrintSuccess(msg string) { Stdout.Success(msg) }

// PrintInfo prints a labelled value on the default printer.
func PrintInfo(label, value string) { Stdout.Info(label, value) }

// PrintWarning prints a warning on the default printer.
func PrintWarning(msg string, args ...interface{}) { Stdout.Warning(msg, args...) }

// Package ux renders reaper output for terminals. Plain printers emit no
// escape sequences and are used when stdout is not a terminal.
package ux

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"reaper-go/internal/reaper"
)

var (
	ColorGhost   = lipgloss.Color("#9AA5B1")
	ColorDemon   = lipgloss.Color("#E74C3C")
	ColorZombie  = lipgloss.Color("#27AE60")
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#2C4A54")
)

var Styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Ghost   lipgloss.Style
	Demon   lipgloss.Style
	Zombie  lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError).Bold(true),
	Ghost:   lipgloss.NewStyle().Foreground(ColorGhost).Italic(true),
	Demon:   lipgloss.NewStyle().Foreground(ColorDemon).Bold(true),
	Zombie:  lipgloss.NewStyle().Foreground(ColorZombie),
}

type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Printer writes user-facing lines to w.
type Printer struct {
	w     io.Writer
	plain bool
}

// NewPrinter returns a Printer. With plain set no styling is applied.
func NewPrinter(w io.Writer, plain bool) *Printer {
	return &Printer{w: w, plain: plain}
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

func (p *Printer) Title(text string) {
	fmt.Fprintln(p.w, p.render(Styles.Title, text))
}

func (p *Printer) Info(text string) {
	fmt.Fprintln(p.w, text)
}

func (p *Printer) Muted(text string) {
	fmt.Fprintln(p.w, p.render(Styles.Muted, text))
}

func (p *Printer) Success(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.render(Styles.Success, string(IconSuccess)), text)
}

func (p *Printer) Warning(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.render(Styles.Warning, string(IconWarning)), text)
}

func (p *Printer) Error(text string) {
	fmt.Fprintf(p.w, "%s %s\n", p.render(Styles.Error, string(IconError)), text)
}

// Label renders a single classification name.
func (p *Printer) Label(c reaper.Classification) string {
	switch c {
	case reaper.Ghost:
		return p.render(Styles.Ghost, c.String())
	case reaper.Demon:
		return p.render(Styles.Demon, c.String())
	case reaper.Zombie:
		return p.render(Styles.Zombie, c.String())
	default:
		return c.String()
	}
}

// Labels renders every member of set, comma separated.
func (p *Printer) Labels(set reaper.ClassificationSet) string {
	list := set.List()
	parts := make([]string, len(list))
	for i, c := range list {
		parts[i] = p.Label(c)
	}
	return strings.Join(parts, ",")
}

// File writes one numbered scan result line:
//
//	  3  ghost,zombie  12.0 KiB  /home/u/a/1.txt  (duplicate of /home/u/a/2.txt)
func (p *Printer) File(n int, f reaper.ClassifiedFile) {
	line := fmt.Sprintf("%3d  %s  %9s  %s", n, p.Labels(f.Classifications), FormatSize(f.Size), f.Path)
	if f.DuplicateOf != "" {
		line += p.render(Styles.Muted, fmt.Sprintf("  (duplicate of %s)", f.DuplicateOf))
	}
	fmt.Fprintln(p.w, line)
}

// Moved writes "src → dst".
func (p *Printer) Moved(src, dst string) {
	fmt.Fprintf(p.w, "%s %s %s\n", src, p.render(Styles.Muted, string(IconArrow)), dst)
}

// LogEntry writes one operation log line, local time first:
//
//	2024-06-15 14:30:45  banish     /home/u/a.txt → /g/a.txt  ghost
func (p *Printer) LogEntry(e reaper.LogEntry) {
	line := fmt.Sprintf("%s  %-9s  %s", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, e.FilePath)
	switch e.Action {
	case reaper.ActionBanish:
		line += fmt.Sprintf(" %s %s", p.render(Styles.Muted, string(IconArrow)), e.GraveyardPath)
	case reaper.ActionRestore:
		line += p.render(Styles.Muted, fmt.Sprintf("  (from %s)", e.GraveyardPath))
	}
	if !e.Classifications.Empty() {
		line += "  " + p.Labels(e.Classifications)
	}
	if e.Error != "" {
		line += "  " + p.render(Styles.Error, e.Error)
	}
	fmt.Fprintln(p.w, line)
}

// Pending writes one undoable banish with the whole seconds it has left.
func (p *Printer) Pending(e reaper.UndoEntry, now time.Time) {
	left := e.ExpiresAt.Sub(now).Truncate(time.Second)
	if left < 0 {
		left = 0
	}
	fmt.Fprintf(p.w, "%s  %s  %s\n", e.ID, e.FileName, p.render(Styles.Muted, fmt.Sprintf("(%s left)", left)))
}

// FormatSize renders a byte count with binary units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 4; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTP"[exp])
}

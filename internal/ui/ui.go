// Package ui renders phase banners, run summaries and prompts for the
// terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Colors
var (
	Accent  = lipgloss.AdaptiveColor{Light: "#5B21B6", Dark: "#A78BFA"}
	Success = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	Warning = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	Failure = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	Muted   = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#9CA3AF"}
)

// Printer writes styled output.
type Printer struct {
	w io.Writer

	accent  lipgloss.Style
	pass    lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	muted   lipgloss.Style
	heading lipgloss.Style
}

// New creates a Printer for w. Colour is used only when w is a terminal and
// noColor is false.
func New(w io.Writer, noColor bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if noColor || !IsTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Printer{
		w:       w,
		accent:  r.NewStyle().Foreground(Accent).Bold(true),
		pass:    r.NewStyle().Foreground(Success),
		warn:    r.NewStyle().Foreground(Warning),
		fail:    r.NewStyle().Foreground(Failure).Bold(true),
		muted:   r.NewStyle().Foreground(Muted),
		heading: r.NewStyle().Bold(true).Underline(true),
	}
}

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w any) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// Phase prints a banner for the start of a phase.
func (p *Printer) Phase(title string) {
	fmt.Fprintf(p.w, "%s %s\n", p.accent.Render("==>"), p.heading.Render(title))
}

// Summary is what a run reports at the end.
type Summary struct {
	DryRun   bool
	Updated  []string
	Skipped  []string
	Planned  []string
	Deleted  []string
	Failed   []string
	Duration time.Duration
}

// Summary prints the end-of-run report.
func (p *Printer) Summary(s Summary) {
	deletedLabel := "deleted"
	if s.DryRun {
		deletedLabel = "to delete"
	}

	parts := []string{
		p.pass.Render(fmt.Sprintf("%d updated", len(s.Updated))),
		p.muted.Render(fmt.Sprintf("%d unchanged", len(s.Skipped))),
	}
	if s.DryRun {
		parts = append(parts, p.warn.Render(fmt.Sprintf("%d to update", len(s.Planned))))
	}
	parts = append(parts, p.warn.Render(fmt.Sprintf("%d %s", len(s.Deleted), deletedLabel)))
	if len(s.Failed) > 0 {
		parts = append(parts, p.fail.Render(fmt.Sprintf("%d failed", len(s.Failed))))
	}

	fmt.Fprintf(p.w, "%s %s %s\n",
		p.accent.Render("Summary:"),
		strings.Join(parts, ", "),
		p.muted.Render("("+s.Duration.Round(time.Millisecond).String()+")"))

	p.list("Failed", s.Failed, p.fail)
	if s.DryRun {
		p.list("Would update", s.Planned, p.warn)
		p.list("Would delete", s.Deleted, p.warn)
	}
}

func (p *Printer) list(label string, items []string, style lipgloss.Style) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(p.w, "  %s\n", style.Render(label+":"))
	for _, item := range items {
		fmt.Fprintf(p.w, "    - %s\n", item)
	}
}

// Pass prints a success line.
func (p *Printer) Pass(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.pass.Render("✓"), msg)
}

// Warn prints a warning line.
func (p *Printer) Warn(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.warn.Render("!"), msg)
}

// Fail prints an error line.
func (p *Printer) Fail(msg string) {
	fmt.Fprintf(p.w, "%s %s\n", p.fail.Render("✗"), msg)
}

// ConfirmDeletion asks on the terminal whether the listed pages may be
// deleted. It fails when stdin is not a terminal.
func ConfirmDeletion(titles []string) (bool, error) {
	if !IsTerminal(os.Stdin) {
		return false, fmt.Errorf("cannot ask for confirmation: stdin is not a terminal")
	}

	confirmed := false
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Delete %d remote pages?", len(titles))).
		Description(strings.Join(titles, "\n")).
		Affirmative("Delete").
		Negative("Keep").
		Value(&confirmed).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}

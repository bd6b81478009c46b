package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ui renders command output with lipgloss styles bound to the output writer,
// so colors are dropped when the writer is not a terminal.
type ui struct {
	out     io.Writer
	title   lipgloss.Style
	ok      lipgloss.Style
	bad     lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
	keyName lipgloss.Style
}

func newUI(out io.Writer) *ui {
	r := lipgloss.NewRenderer(out)
	return &ui{
		out:     out,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("10")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("9")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		dim:     r.NewStyle().Faint(true),
		keyName: r.NewStyle().Bold(true),
	}
}

func (u *ui) Title(text string) {
	fmt.Fprintln(u.out, u.title.Render(text))
	fmt.Fprintln(u.out, u.title.Render(strings.Repeat("=", len([]rune(text)))))
}

func (u *ui) Success(format string, args ...any) {
	fmt.Fprintln(u.out, u.ok.Render("✓ "+fmt.Sprintf(format, args...)))
}

func (u *ui) Warn(format string, args ...any) {
	fmt.Fprintln(u.out, u.warn.Render(fmt.Sprintf(format, args...)))
}

func (u *ui) Println(args ...any) {
	fmt.Fprintln(u.out, args...)
}

func (u *ui) Printf(format string, args ...any) {
	fmt.Fprintf(u.out, format, args...)
}

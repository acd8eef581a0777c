package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"
)

var (
	keywordStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"})
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#02BF87"})
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))

	paragraphStyle = lipgloss.NewStyle().Padding(0, 0, 0, 2)
)

func keyword(s string) string {
	return keywordStyle.Render(s)
}

func paragraph(s string) string {
	return paragraphStyle.Render(wordwrap.String(s, 78))
}

// isTerminal reports whether stdout is a TTY. Styled status lines degrade
// to plain text when output is piped.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// render applies style only when writing to a terminal.
func render(style lipgloss.Style, s string) string {
	if !isTerminal() {
		return s
	}
	return style.Render(s)
}

package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// palette colours CLI output. The zero value renders plain text, which keeps
// piped output and tests free of escape codes.
type palette struct {
	enabled bool
	header  lipgloss.Style
	current lipgloss.Style
	label   lipgloss.Style
	dim     lipgloss.Style
	warn    lipgloss.Style
}

func newPalette(enabled bool) palette {
	return palette{
		enabled: enabled,
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true),
		current: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// stdoutPalette enables colour only when stdout is a terminal.
func stdoutPalette() palette {
	return newPalette(terminalWidth() > 0)
}

func (p palette) render(s lipgloss.Style, text string) string {
	if !p.enabled || text == "" {
		return text
	}
	return s.Render(text)
}

// colorTable styles an already aligned table. Colouring after tabwriter has
// run keeps escape codes out of the column width computation.
func (p palette) colorTable(table string) string {
	if !p.enabled {
		return table
	}
	lines := strings.Split(strings.TrimSuffix(table, "\n"), "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			lines[i] = p.render(p.header, line)
		case strings.HasPrefix(line, "* "):
			lines[i] = p.render(p.current, line)
		case strings.Contains(line, "placeholder"), strings.Contains(line, "pending"):
			lines[i] = p.render(p.dim, line)
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

// statusColor picks a style for a restore or process status word.
func (p palette) statusColor(status string) string {
	switch strings.TrimSpace(status) {
	case "applied":
		return p.render(p.current, status)
	case "count_mismatch", "no_cache", "space_unavailable":
		return p.render(p.warn, status)
	default:
		return p.render(p.dim, status)
	}
}

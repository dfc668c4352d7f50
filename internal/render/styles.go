package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/obsidianstack/diskhealth/internal/model"
)

var (
	colorRed     = lipgloss.Color("#FF5555")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorMagenta = lipgloss.Color("#FF79C6")
	colorWhite   = lipgloss.Color("#F8F8F2")
	colorGray    = lipgloss.Color("#6272A4")

	headerStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true).
			Border(lipgloss.DoubleBorder(), true, false).
			BorderForeground(colorMagenta)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	labelStyle = lipgloss.NewStyle().Foreground(colorGray)
	infoStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	warnStyle  = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	critStyle  = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(colorGreen)
	dimStyle   = lipgloss.NewStyle().Foreground(colorGray)
	cmdStyle   = lipgloss.NewStyle().Foreground(colorGreen)
)

func classStyle(c model.Class) lipgloss.Style {
	switch c {
	case model.ClassCritical:
		return critStyle
	case model.ClassWarning:
		return warnStyle
	case model.ClassInfo:
		return infoStyle
	default:
		return okStyle
	}
}

func classSymbol(c model.Class) string {
	switch c {
	case model.ClassCritical:
		return "✗"
	case model.ClassWarning:
		return "⚠"
	case model.ClassInfo:
		return "ℹ"
	default:
		return "✓"
	}
}

func severityStyle(sev model.Severity) lipgloss.Style {
	switch sev {
	case model.SeverityCritical:
		return critStyle
	case model.SeverityWarning:
		return warnStyle
	default:
		return infoStyle
	}
}

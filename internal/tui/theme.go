package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/ledgerview/internal/notify"
)

var (
	colorText     lipgloss.Color = "#cdd6f4"
	colorMuted    lipgloss.Color = "#a6adc8"
	colorBorder   lipgloss.Color = "#585b70"
	colorAccent   lipgloss.Color = "#89b4fa"
	colorSuccess  lipgloss.Color = "#a6e3a1"
	colorError    lipgloss.Color = "#f38ba8"
	colorWarning  lipgloss.Color = "#f9e2af"
	colorMantle   lipgloss.Color = "#181825"
	colorSurface0 lipgloss.Color = "#313244"
)

// styles
var (
	titleStyle    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Underline(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	selectedStyle = lipgloss.NewStyle().Foreground(colorText).Background(colorSurface0).Bold(true)
	badgeStyle    = lipgloss.NewStyle().Foreground(colorMantle).Background(colorWarning).Padding(0, 1)
	modalStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
	creditStyle   = lipgloss.NewStyle().Foreground(colorSuccess)
	debitStyle    = lipgloss.NewStyle().Foreground(colorError)

	keyStyle      = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	helpDescStyle = lipgloss.NewStyle().Foreground(colorMuted)
	footerStyle   = lipgloss.NewStyle().Background(colorMantle)

	severityStyles = map[notify.Severity]lipgloss.Style{
		notify.Success: lipgloss.NewStyle().Foreground(colorSuccess),
		notify.Error:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
		notify.Info:    lipgloss.NewStyle().Foreground(colorAccent),
		notify.Warning: lipgloss.NewStyle().Foreground(colorWarning),
	}
	severityIcons = map[notify.Severity]string{
		notify.Success: "✓",
		notify.Error:   "✗",
		notify.Info:    "i",
		notify.Warning: "!",
	}
)

// renderFooter lists the shortcuts of scope, first key of each binding.
func renderFooter(keys *KeyRegistry, scope string, width int) string {
	bindings := keys.BindingsForScope(scope)
	parts := make([]string, 0, len(bindings))
	seen := map[string]bool{}
	for _, b := range bindings {
		if len(b.Keys) == 0 || seen[b.Action] {
			continue
		}
		seen[b.Action] = true
		parts = append(parts, keyStyle.Render(b.Keys[0])+" "+helpDescStyle.Render(b.Description))
	}
	line := strings.Join(parts, "  ")
	if line == "" {
		line = helpDescStyle.Render("No shortcuts")
	}
	st := footerStyle
	if width > 0 {
		st = st.Width(width)
	}
	return st.Render(line)
}

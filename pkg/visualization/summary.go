package visualization

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(18)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

// SummaryLine is one labelled line of a summary box
type SummaryLine struct {
	Label string
	Value string
}

// Summary renders a titled box of label/value lines
func Summary(title string, fields []SummaryLine) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(title))
	for _, f := range fields {
		sb.WriteString("\n")
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(f.Label), valueStyle.Render(f.Value)))
	}
	return boxStyle.Render(sb.String())
}

// RunFields describes a finished run
func RunFields(input string, size, angles, cores int, filterMode string, elapsed time.Duration) []SummaryLine {
	return []SummaryLine{
		{Label: "Input", Value: input},
		{Label: "Field size", Value: fmt.Sprintf("%dx%d", size, size)},
		{Label: "Angles", Value: fmt.Sprintf("%d", angles)},
		{Label: "Cores", Value: fmt.Sprintf("%d", cores)},
		{Label: "Filter", Value: filterMode},
		{Label: "Elapsed", Value: elapsed.Round(time.Millisecond).String()},
	}
}

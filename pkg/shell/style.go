package shell

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"netreport/pkg/reporter"
)

var stateColors = map[reporter.State]lipgloss.Color{
	reporter.Idle:       lipgloss.Color("241"),
	reporter.Collecting: lipgloss.Color("12"),
	reporter.Sending:    lipgloss.Color("12"),
	reporter.Succeeded:  lipgloss.Color("10"),
	reporter.Failed:     lipgloss.Color("9"),
}

// RenderStatus formats st for out. Colors are dropped when out is not a terminal.
func RenderStatus(out io.Writer, st reporter.Status) string {
	r := lipgloss.NewRenderer(out)
	label := r.NewStyle().Bold(true).Foreground(stateColors[st.State]).Render(st.State.String())
	if st.Message == "" {
		return label
	}
	return label + ": " + st.Message
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/glimte/mmate-dispatch/messaging"
)

const (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Bold(true).
			Padding(0, 1)

	statusHealthyStyle = lipgloss.NewStyle().
				Foreground(secondaryColor).
				Bold(true)

	statusWarningStyle = lipgloss.NewStyle().
				Foreground(warningColor).
				Bold(true)

	statusErrorStyle = lipgloss.NewStyle().
				Foreground(errorColor).
				Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1).
			Margin(0, 0, 1, 0)
)

func printRoutes(w io.Writer, plans []messaging.Plan) {
	if len(plans) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No routes registered"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-16s %-8s %-18s %-8s %s", "Message", "Shape", "Selector", "Fan-out", "Handlers")))
	for _, p := range plans {
		line := fmt.Sprintf("%-16s %-8s %-18s %-8t %s",
			truncate(p.MessageName, 16),
			p.Shape,
			truncate(p.Selector, 18),
			p.FanOut,
			strings.Join(p.Handlers, ", "),
		)
		if p.Error != "" {
			line = statusErrorStyle.Render(line + "  " + p.Error)
		}
		fmt.Fprintln(w, line)
	}
}

func printPlan(w io.Writer, p messaging.Plan) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(p.MessageName))
	fmt.Fprintf(&b, "Type:      %s\n", p.MessageType)
	fmt.Fprintf(&b, "Shape:     %s\n", p.Shape)
	fmt.Fprintf(&b, "Selector:  %s\n", p.Selector)
	fmt.Fprintf(&b, "Fan-out:   %t\n", p.FanOut)

	b.WriteString("Behaviors:\n")
	if len(p.Behaviors) == 0 {
		b.WriteString(mutedStyle.Render("  (none)") + "\n")
	}
	for i, name := range p.Behaviors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, name)
	}

	b.WriteString("Handlers:\n")
	switch {
	case p.Error != "":
		b.WriteString("  " + statusErrorStyle.Render(p.Error))
	case len(p.Handlers) == 0:
		b.WriteString("  " + statusWarningStyle.Render("no handlers"))
	default:
		for i, name := range p.Handlers {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("  " + name)
		}
	}

	fmt.Fprintln(w, cardStyle.Render(b.String()))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

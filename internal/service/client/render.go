package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/oshokin/autostand/internal/domain/stand"
	"github.com/oshokin/autostand/internal/service/orchestrator"
)

//nolint:gochecknoglobals // Read-only styles.
var (
	accent  = lipgloss.Color("#8BC34A")
	warning = lipgloss.Color("#FFC107")
	danger  = lipgloss.Color("#E53935")
	muted   = lipgloss.Color("#8A94A6")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(muted)
	valueStyle = lipgloss.NewStyle().Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
	noteStyle = lipgloss.NewStyle().Foreground(warning)
	failStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)
)

// lowBattery is the level at and below which the battery is highlighted.
const lowBattery stand.Battery = 20

// RenderState draws a state as a bordered label/value block.
func RenderState(title string, s *stand.State) string {
	fields := s.Fields()

	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f[0]))
	}

	rows := make([]string, 0, len(fields)+1)
	rows = append(rows, titleStyle.Render(title))

	for _, f := range fields {
		value := valueStyle.Render(f[1])
		if f[0] == "Battery" && s.Battery.Known() && s.Battery <= lowBattery {
			value = failStyle.Render(f[1])
		}

		rows = append(rows, labelStyle.Width(width).Render(f[0])+"  "+value)
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// RenderOutcome draws the result of an actuation with its confirmation note.
func RenderOutcome(o *orchestrator.Outcome) string {
	var parts []string

	title := fmt.Sprintf("%s (%s)", o.Op, o.Policy)

	if o.State != nil {
		parts = append(parts, RenderState(title, o.State))
	} else {
		parts = append(parts, titleStyle.Render(title))
	}

	if note := confirmationNote(o); note != "" {
		parts = append(parts, noteStyle.Render(note))
	}

	return strings.Join(parts, "\n")
}

// RenderBattery draws a battery level line.
func RenderBattery(b stand.Battery) string {
	value := valueStyle.Render(b.String())
	if b.Known() && b <= lowBattery {
		value = failStyle.Render(b.String())
	}

	return labelStyle.Render("Battery") + "  " + value
}

// RenderError draws a failure.
func RenderError(err error) string {
	return failStyle.Render("Error: ") + err.Error()
}

func confirmationNote(o *orchestrator.Outcome) string {
	var b strings.Builder

	switch o.Confirmation {
	case orchestrator.ConfirmationOk:
		b.WriteString("Confirmed by webhook")
		if o.Event != nil {
			b.WriteString(" at " + o.Event.At().Format("2006-01-02 15:04:05"))
		}
	case orchestrator.ConfirmationError:
		b.WriteString("Webhook reported an error")
		if o.Event != nil {
			b.WriteString(": " + o.Event.StatusText)
		}
	case orchestrator.ConfirmationTimeout:
		b.WriteString("No webhook confirmation before the timeout")
	case orchestrator.ConfirmationUnavailable:
		b.WriteString("Confirmation watcher unavailable")
	default:
		return ""
	}

	if o.Ack != "" {
		b.WriteString(" (transaction " + o.Ack + ")")
	}

	if o.Suppressed != nil {
		b.WriteString("\nSend error overridden: " + o.Suppressed.Error())
	}

	return b.String()
}

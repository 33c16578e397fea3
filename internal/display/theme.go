// Package display renders the instance table and holds the color theme.
package display

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/hemantobora/mcc/internal/models"
)

// Theme maps semantic categories to styles. Colors are dropped automatically
// when the renderer's writer is not a terminal.
type Theme struct {
	renderer *lipgloss.Renderer

	Normal lipgloss.Style
	Title  lipgloss.Style
	Number lipgloss.Style
	Good   lipgloss.Style
	Warn   lipgloss.Style
	Err    lipgloss.Style
	Accent lipgloss.Style

	states map[string]lipgloss.Style
}

// NewTheme detects the color profile of w
func NewTheme(w io.Writer) *Theme {
	return newTheme(lipgloss.NewRenderer(w))
}

// NewPlainTheme never emits color
func NewPlainTheme(w io.Writer) *Theme {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.Ascii)
	return newTheme(r)
}

func newTheme(r *lipgloss.Renderer) *Theme {
	t := &Theme{
		renderer: r,
		Normal:   r.NewStyle(),
		Title:    r.NewStyle().Foreground(lipgloss.Color("6")),
		Number:   r.NewStyle().Foreground(lipgloss.Color("3")),
		Good:     r.NewStyle().Foreground(lipgloss.Color("2")),
		Warn:     r.NewStyle().Foreground(lipgloss.Color("3")),
		Err:      r.NewStyle().Foreground(lipgloss.Color("1")),
		Accent:   r.NewStyle().Foreground(lipgloss.Color("5")),
	}
	t.states = map[string]lipgloss.Style{
		models.StateRunning:       t.Good,
		models.StateStarting:      t.Good,
		models.StateRebooting:     t.Warn,
		models.StatePending:       t.Warn,
		models.StateSuspended:     t.Warn,
		models.StatePaused:        t.Warn,
		models.StateStopping:      t.Warn,
		models.StateStopped:       t.Normal,
		models.StateFailed:        t.Err,
		models.StateUnknown:       t.Warn,
		models.StateReconfiguring: t.Warn,
		models.StateTerminated:    t.Normal,
	}
	return t
}

// StateStyle returns the style for an instance state. There is no fallback:
// a state outside the table is a data-consistency error.
func (t *Theme) StateStyle(inst models.Instance) (lipgloss.Style, error) {
	s, ok := t.states[inst.State]
	if !ok {
		return lipgloss.Style{}, &models.StateError{Instance: inst.Name, Provider: inst.Provider, State: inst.State}
	}
	return s, nil
}

// KnownState reports whether state has an entry in the color table
func (t *Theme) KnownState(state string) bool {
	_, ok := t.states[state]
	return ok
}

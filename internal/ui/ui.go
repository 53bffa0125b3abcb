package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the Bubble Tea program and blocks until the user quits or
// opts.Context is cancelled.
func Run(opts Options) error {
	if opts.List == nil {
		return fmt.Errorf("ui requires a list screen")
	}
	if opts.Coordinator == nil {
		return fmt.Errorf("ui requires a coordinator")
	}

	model := New(opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(model.ctx))
	final, err := p.Run()
	if m, ok := final.(Model); ok {
		m.closeDetail()
	}
	if err != nil && model.ctx.Err() == nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

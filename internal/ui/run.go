package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openclaw/claw-deck/internal/deck"
)

// Run starts the terminal dashboard and blocks until the user quits or ctx is
// cancelled. The connection client is started in the background.
func Run(ctx context.Context, d *deck.Deck, opts Options) error {
	app := NewApp(ctx, d, opts)
	defer app.Close()

	go func() {
		if err := d.Connection().Connect(ctx); err != nil {
			d.Logger().Debug("initial gateway connect failed", "error", err)
		}
	}()

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}
	return nil
}

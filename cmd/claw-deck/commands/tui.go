package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openclaw/claw-deck/internal/ui"
)

func newTUICommand(e *env, version string) *cobra.Command {
	var theme string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if theme == "" {
				theme = e.cfg.UI.Theme
			}

			d, err := e.openDeck()
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()
			return ui.Run(ctx, d, ui.Options{Theme: theme, Version: version})
		},
	}

	cmd.Flags().StringVar(&theme, "theme", "", "Color theme: dark, light or auto (default from config)")
	return cmd
}

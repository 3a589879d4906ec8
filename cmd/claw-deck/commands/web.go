package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/claw-deck/internal/config"
	"github.com/openclaw/claw-deck/internal/web"
)

func newWebCommand(e *env, version string) *cobra.Command {
	var (
		listen   string
		readOnly bool
		token    string
	)

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the dashboard over HTTP",
		Example: `  claw-deck web
  claw-deck web --listen 127.0.0.1:9000
  claw-deck web --read-only --token s3cret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("listen") {
				listen = e.cfg.Web.Listen
			}
			if !cmd.Flags().Changed("read-only") {
				readOnly = e.cfg.Web.ReadOnly
			}
			if !cmd.Flags().Changed("token") {
				token = e.cfg.Web.Token
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return e.runWeb(ctx, version, listen, readOnly, token)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8421", "Listen address for the web server")
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "Reject mutating requests")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token for API and event stream access")
	return cmd
}

func (e *env) runWeb(ctx context.Context, version, listen string, readOnly bool, token string) error {
	d, err := e.openDeck()
	if err != nil {
		return err
	}
	defer d.Close()

	go func() {
		if err := d.Connection().Connect(ctx); err != nil {
			e.logger.Debug("initial gateway connect failed", "error", err)
		}
	}()

	watcher, err := config.NewWatcher(e.cfg.Dir, e.logger, d.ApplyConfig)
	if err != nil {
		e.logger.Warn("config hot reload disabled", "error", err)
	} else {
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	mode := "read-write"
	if readOnly {
		mode = "read-only"
	}
	fmt.Fprintf(e.stdout, "Starting claw-deck web on http://%s\n", listen)
	fmt.Fprintf(e.stdout, "Data: %s\n", e.cfg.Dir)
	fmt.Fprintf(e.stdout, "Mode: %s\n", mode)
	if token != "" {
		fmt.Fprintln(e.stdout, "Auth: bearer token enabled")
		fmt.Fprintln(e.stdout, "Auth hint: open the UI with ?token=<your-token> or pass Authorization: Bearer <token> on API requests")
	}
	fmt.Fprintln(e.stdout, "Press Ctrl+C to stop.")

	server := web.NewServer(web.Config{
		ListenAddr: listen,
		ReadOnly:   readOnly,
		Token:      token,
		Version:    version,
		Deck:       d,
		Logger:     e.logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(e.stderr, "Warning: web server shutdown error: %v\n", err)
	}
	return nil
}

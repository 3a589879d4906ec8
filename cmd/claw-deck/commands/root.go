package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/claw-deck/internal/config"
	"github.com/openclaw/claw-deck/internal/deck"
	"github.com/openclaw/claw-deck/internal/logging"
	"github.com/openclaw/claw-deck/internal/openclaw"
)

// env is the state shared by all commands of one invocation.
type env struct {
	stdout io.Writer
	stderr io.Writer

	// flags
	output  string
	dataDir string
	binary  string
	verbose bool

	// executor replaces the openclaw runner (tests).
	executor openclaw.Executor

	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	e := &env{stdout: os.Stdout, stderr: os.Stderr}
	defer e.Close()

	if err := newRootCommand(e, version).Execute(); err != nil {
		fmt.Fprintf(e.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newRootCommand creates the root command.
func newRootCommand(e *env, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "claw-deck",
		Short: "Dashboard for an openclaw gateway",
		Long: `claw-deck watches and drives a local openclaw gateway: Mission Control,
chat with agents, and gateway lifecycle, in the browser or the terminal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup()
		},
	}
	rootCmd.SetOut(e.stdout)
	rootCmd.SetErr(e.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&e.output, "output", "o", "auto", "Output format: auto, text, json or yaml")
	flags.StringVar(&e.dataDir, "data-dir", "", "Data directory (default $"+config.HomeEnv+" or ~/.claw-deck)")
	flags.StringVar(&e.binary, "openclaw", "", "Path to the openclaw binary (overrides config)")
	flags.BoolVarP(&e.verbose, "verbose", "v", false, "Mirror logs to stderr")

	rootCmd.AddCommand(
		newWebCommand(e, version),
		newTUICommand(e, version),
		newSmokeCommand(e),
		newGatewayCommand(e),
		newAgentsCommand(e),
		newSessionsCommand(e),
		newChatCommand(e),
	)
	return rootCmd
}

// setup loads configuration and installs logging. It runs once per
// invocation, before the selected command.
func (e *env) setup() error {
	if e.cfg != nil {
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if e.dataDir != "" {
		cfg, err = config.LoadFrom(e.dataDir)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if e.binary != "" {
		cfg.OpenClaw.Binary = e.binary
	}

	logger, closer, err := logging.Setup(logging.Options{
		File:   cfg.LogFile(),
		Level:  cfg.Log.Level,
		Stderr: e.verbose,
	})
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}

	e.cfg = cfg
	e.logger = logger
	e.closer = closer
	return nil
}

func (e *env) openDeck() (*deck.Deck, error) {
	if e.cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	d, err := deck.Open(e.cfg, deck.Options{Executor: e.executor, Logger: e.logger})
	if err != nil {
		return nil, fmt.Errorf("open dashboard: %w", err)
	}
	return d, nil
}

// Close releases the log file.
func (e *env) Close() {
	if e.closer != nil {
		_ = e.closer.Close()
		e.closer = nil
	}
}

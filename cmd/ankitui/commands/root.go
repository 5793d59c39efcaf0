package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ankitui/internal/anki"
	"ankitui/internal/config"
	"ankitui/internal/logging"
	"ankitui/internal/media"
	"ankitui/internal/study"
	"ankitui/internal/tui"
)

var (
	cfgPath  string
	autoPlay bool
)

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ankitui [query]",
		Short: "Study Anki cards from the terminal",
		Long: `ankitui is a TUI study client for an Anki collection, talking to a locally
running Anki instance through its JSON-over-HTTP bridge. Without arguments it
starts a review session over all due cards; pass a search query to narrow it.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runStudy,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.Flags().BoolVar(&autoPlay, "autoplay", false, "play card audio automatically")

	rootCmd.AddCommand(NewDecksCommand())
	rootCmd.AddCommand(NewAddCommand())
	rootCmd.AddCommand(NewProbeCommand())
	rootCmd.AddCommand(NewSyncCommand())
	rootCmd.AddCommand(NewShowCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger and bridge client shared
// by every command.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, *anki.Client, error) {
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return cfg, nil, nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return cfg, nil, nil, err
	}
	client := anki.NewClient(cfg.Engine.BaseURL(),
		anki.WithTimeout(cfg.Engine.Timeout),
		anki.WithKey(cfg.Engine.Key),
		anki.WithLogger(log),
	)
	return cfg, log, client, nil
}

// probeEngine is the mount-time liveness check: nothing that needs the
// engine runs until it answers.
func probeEngine(ctx context.Context, client *anki.Client, cfg config.Config) error {
	if _, err := client.Version(ctx); err != nil {
		if anki.IsConnectionError(err) {
			return fmt.Errorf("cannot reach the Anki bridge at %s; is Anki running with the bridge add-on enabled? (%w)",
				cfg.Engine.BaseURL(), err)
		}
		return err
	}
	return nil
}

func runStudy(cmd *cobra.Command, args []string) error {
	cfg, log, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := cmd.Context()
	if err := probeEngine(ctx, client, cfg); err != nil {
		return err
	}

	query := cfg.Defaults.Query
	if len(args) == 1 {
		query = args[0]
	}

	machine := study.NewMachine(client, log)
	if err := machine.StartSession(ctx, query); err != nil {
		switch {
		case errors.Is(err, study.ErrNoResults):
			fmt.Printf("No cards match %q\n", query)
			return nil
		case errors.Is(err, study.ErrNoDueCards):
			fmt.Printf("No cards are due for %q, all caught up\n", query)
			return nil
		}
		return fmt.Errorf("start session: %w", err)
	}

	return tui.ShowStudy(tui.Options{
		Machine:  machine,
		Resolver: media.NewResolver(client, log),
		Player:   media.NopPlayer{},
		Log:      log,
		AutoPlay: autoPlay,
	})
}

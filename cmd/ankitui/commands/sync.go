package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the collection sync command.
func NewSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Trigger a collection sync on the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			if err := client.Sync(ctx); err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			fmt.Println("Sync triggered")
			return nil
		},
	}
}

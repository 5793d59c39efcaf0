package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewProbeCommand creates the liveness probe command.
func NewProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the Anki bridge is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, client, err := setup(cmd)
			if err != nil {
				return err
			}
			defer func() {
				_ = log.Sync()
			}()

			version, err := client.Version(cmd.Context())
			if err != nil {
				return fmt.Errorf("bridge at %s did not answer: %w", cfg.Engine.BaseURL(), err)
			}
			fmt.Printf("Bridge at %s answered with protocol version %d\n", cfg.Engine.BaseURL(), version)
			return nil
		},
	}
}

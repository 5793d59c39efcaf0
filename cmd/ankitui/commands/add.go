package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ankitui/internal/anki"
	"ankitui/internal/modelcache"
	"ankitui/internal/notes"
)

// NewAddCommand creates the note authoring command.
func NewAddCommand() *cobra.Command {
	var (
		deck   string
		model  string
		fields []string
		tags   []string
	)

	addCmd := &cobra.Command{
		Use:   "add --deck DECK --model MODEL --field Name=Value ...",
		Short: "Create a note",
		Example: `  ankitui add --deck Default --model Basic \
      --field "Front=capital of France" --field "Back=Paris" --tag geography`,
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

			if deck == "" {
				deck = cfg.Defaults.Deck
			}
			if model == "" {
				model = cfg.Defaults.Model
			}

			fieldValues := make(map[string]string, len(fields))
			for _, f := range fields {
				name, value, ok := strings.Cut(f, "=")
				if !ok {
					return fmt.Errorf("malformed --field %q, want Name=Value", f)
				}
				fieldValues[name] = value
			}

			service := notes.NewService(client, modelcache.Shared(), log)
			id, err := service.Create(ctx, notes.NewNoteRequest{
				Deck:   deck,
				Model:  model,
				Fields: fieldValues,
				Tags:   tags,
			})
			if err != nil {
				var verr *anki.ValidationError
				if errors.As(err, &verr) {
					return fmt.Errorf("invalid note: %s", verr.Error())
				}
				return err
			}

			fmt.Printf("Created note %d\n", id)
			return nil
		},
	}

	addCmd.Flags().StringVar(&deck, "deck", "", "target deck (defaults to configured deck)")
	addCmd.Flags().StringVar(&model, "model", "", "note type (defaults to configured model)")
	addCmd.Flags().StringArrayVar(&fields, "field", nil, "field value as Name=Value (repeatable)")
	addCmd.Flags().StringArrayVar(&tags, "tag", nil, "tag to attach (repeatable)")

	return addCmd
}

package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ankitui/internal/study"
)

// NewShowCommand creates the non-interactive card dump command.
func NewShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <card-id>...",
		Short: "Show card snapshots without the TUI",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runShow,
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, log, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid card id %q", arg)
		}
		ids = append(ids, id)
	}

	ctx := cmd.Context()
	if err := probeEngine(ctx, client, cfg); err != nil {
		return err
	}

	cards, err := client.CardsInfo(ctx, ids)
	if err != nil {
		return fmt.Errorf("fetch cards: %w", err)
	}

	for i, card := range cards {
		fmt.Printf("Card %d (%s / %s)\n", card.CardID, card.DeckName, card.ModelName)
		fmt.Printf("  Q: %s\n", study.StripMarkup(card.Question))
		fmt.Printf("  A: %s\n", study.StripMarkup(card.Answer))
		fmt.Printf("  interval: %dd  ease: %d%%  reps: %d  lapses: %d\n",
			card.Interval, card.Ease/10, card.Reps, card.Lapses)
		if card.Suspended {
			fmt.Println("  suspended")
		}
		if len(card.Tags) > 0 {
			fmt.Printf("  tags: %s\n", strings.Join(card.Tags, " "))
		}
		if i < len(cards)-1 {
			fmt.Println()
		}
	}
	return nil
}

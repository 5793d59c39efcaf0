package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDecksCommand creates the deck listing command.
func NewDecksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decks",
		Short: "List decks with due counts",
		RunE:  runDecks,
	}
}

func runDecks(cmd *cobra.Command, args []string) error {
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

	ids, err := client.DeckNamesAndIds(ctx)
	if err != nil {
		return fmt.Errorf("list decks: %w", err)
	}
	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)

	stats, err := client.GetDeckStats(ctx, names)
	if err != nil {
		return fmt.Errorf("fetch deck stats: %w", err)
	}

	fmt.Printf("%-40s %6s %6s %6s %6s\n", "Deck", "New", "Learn", "Due", "Total")
	for _, name := range names {
		key := strconv.FormatInt(ids[name], 10)
		st, ok := stats[key]
		if !ok {
			fmt.Printf("%-40s %6s %6s %6s %6s\n", name, "-", "-", "-", "-")
			continue
		}
		fmt.Printf("%-40s %6d %6d %6d %6d\n", name, st.NewCount, st.LearnCount, st.ReviewCount, st.TotalInDeck)
	}
	return nil
}

package main

import (
	"fmt"
	"slices"

	"deckcore/pkg/domain"

	"github.com/spf13/cobra"
)

func (c *cli) handCmd() *cobra.Command {
	var (
		size      int
		mulligans int
		draws     int
		exclude   []string
		odds      string
		trials    int
	)
	cmd := &cobra.Command{
		Use:   "hand",
		Short: "Deal a sample hand, or estimate the odds of seeing a card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("size") {
				size = c.app.cfg.Hand.Size
			}
			for _, key := range exclude {
				c.app.svc.HandExclude(key)
			}
			if odds != "" {
				p := c.app.svc.Hand().Simulate(size, trials, func(cards []domain.Card) bool {
					return slices.ContainsFunc(cards, func(card domain.Card) bool { return card.Key == odds })
				})
				_, err := fmt.Fprintf(c.out, "%s in %d cards: %.1f%% over %d hands\n", odds, size, p*100, trials)
				return err
			}

			ctx := cmd.Context()
			cards, err := c.app.svc.NewHand(ctx, size)
			if err != nil {
				return err
			}
			for range mulligans {
				if cards, err = c.app.svc.Mulligan(ctx); err != nil {
					return err
				}
			}
			for range draws {
				if cards, err = c.app.svc.Draw(ctx); err != nil {
					return err
				}
			}
			for i, card := range cards {
				if _, err := fmt.Fprintf(c.out, "%d\t%s\t%s\n", i+1, card.Key, card.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&size, "size", "n", 7, "cards in the opening hand (default from config)")
	f.IntVar(&mulligans, "mulligans", 0, "mulligans to take after dealing")
	f.IntVar(&draws, "draws", 0, "cards to draw after dealing")
	f.StringSliceVar(&exclude, "exclude", nil, "card keys kept out of the pool")
	f.StringVar(&odds, "odds", "", "estimate how often this card key is in the opening hand")
	f.IntVar(&trials, "trials", 10000, "hands dealt by --odds")
	return cmd
}

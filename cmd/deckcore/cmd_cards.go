package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"deckcore/internal/core"
	"deckcore/pkg/domain"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
)

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("count %q is not a number", s)
	}
	return n, nil
}

// parseQuantities reads "key" or "key=n" arguments.
func parseQuantities(args []string) ([]core.Quantity, error) {
	items := make([]core.Quantity, 0, len(args))
	for _, arg := range args {
		key, raw, found := strings.Cut(arg, "=")
		q := core.Quantity{Key: key, Count: 1}
		if found {
			n, err := parseCount(raw)
			if err != nil {
				return nil, err
			}
			q.Count = n
		}
		items = append(items, q)
	}
	return items, nil
}

func (c *cli) cardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Add, remove and list cards",
	}

	add := &cobra.Command{
		Use:   "add KEY[=N]...",
		Short: "Add copies of catalog cards; the whole batch fails on an unknown key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseQuantities(args)
			if err != nil {
				return err
			}
			if _, err := c.app.svc.AddCards(cmd.Context(), items); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "%d cards\n", c.app.svc.Deck().Total())
			return err
		},
	}

	remove := &cobra.Command{
		Use:   "remove KEY[=N]...",
		Short: "Remove copies of cards",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseQuantities(args)
			if err != nil {
				return err
			}
			removed, err := c.app.svc.RemoveCards(cmd.Context(), items)
			if err != nil {
				return err
			}
			for _, q := range items {
				if _, err := fmt.Fprintf(c.out, "%s\t-%d\n", q.Key, removed[q.Key]); err != nil {
					return err
				}
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set KEY N",
		Short: "Set the number of copies of a card; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseCount(args[1])
			if err != nil {
				return err
			}
			_, err = c.app.svc.SetCard(cmd.Context(), args[0], n)
			return err
		},
	}

	clear := &cobra.Command{
		Use:   "clear",
		Short: "Remove every card, keeping categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.svc.Clear(cmd.Context())
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List deck entries in master order",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "COUNT\tKEY\tNAME\tCATEGORIES")
			for _, e := range c.app.svc.Deck().Entries() {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Count, e.Card.Key, e.Card.Name, strings.Join(e.Categories, ","))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(add, remove, set, clear, list)
	return cmd
}

func (c *cli) sortCmd() *cobra.Command {
	var attr string
	cmd := &cobra.Command{
		Use:       "sort name|date|attribute",
		Short:     "Reorder the deck master list",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(core.SortByName), string(core.SortByDate), string(core.SortByAttribute)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.svc.Sort(cmd.Context(), core.SortOrder(args[0]), attr)
		},
	}
	cmd.Flags().StringVar(&attr, "attr", "", "attribute for attribute sort")
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	var attr string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show totals per category and a histogram of one attribute",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			st := c.app.svc.Stats(attr)
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintf(tw, "deck\t%s\n", st.DeckID)
			_, _ = fmt.Fprintf(tw, "total\t%d\n", st.Total)
			_, _ = fmt.Fprintf(tw, "distinct\t%d\n", st.Distinct)
			for _, cat := range st.Categories {
				_, _ = fmt.Fprintf(tw, "category %d\t%s\t%d\n", cat.Rank, cat.Name, cat.Total)
			}
			for _, value := range sortedKeys(st.Histogram) {
				_, _ = fmt.Fprintf(tw, "%s=%s\t%d\n", attr, value, st.Histogram[value])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&attr, "attr", "type", "attribute to histogram, empty to skip")
	return cmd
}

func (c *cli) auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check the deck invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.svc.Audit(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range res.Violations {
				_, _ = fmt.Fprintf(c.out, "%s\t%s\t%s\n", v.Severity, v.Rule, v.Message)
			}
			if res.HasBlocking() {
				return fmt.Errorf("%d invariant violations", len(res.Violations))
			}
			_, err = fmt.Fprintln(c.out, "ok")
			return err
		},
	}
}

func (c *cli) forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Delete the stored snapshot of the deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			existed, err := c.app.svc.Forget(cmd.Context())
			if err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("deck %s: %w", c.app.svc.DeckID(), domain.ErrSnapshotNotFound)
			}
			return nil
		},
	}
}

func (c *cli) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the deck snapshot as a Go literal",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			snap := c.app.svc.Deck().Export(c.app.svc.DeckID())
			_, err := fmt.Fprintln(c.out, litter.Options{HidePrivateFields: true, HideZeroValues: true}.Sdump(snap))
			return err
		},
	}
}

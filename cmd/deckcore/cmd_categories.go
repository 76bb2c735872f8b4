package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"deckcore/pkg/domain"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func sortedKeys(m map[string]int) []string {
	return slices.Sorted(maps.Keys(m))
}

// specFlags collects a category definition from flags. The filter is YAML
// (JSON works too), e.g. '{kind: leaf, attribute: type, op: eq, value: creature}'.
type specFlags struct {
	filter    string
	whitelist []string
	blacklist []string
	color     string
}

func (f *specFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.filter, "filter", "", "filter tree as YAML or JSON; empty matches every card")
	cmd.Flags().StringSliceVar(&f.whitelist, "whitelist", nil, "card keys forced into the category")
	cmd.Flags().StringSliceVar(&f.blacklist, "blacklist", nil, "card keys forced out of the category")
	cmd.Flags().StringVar(&f.color, "color", "", "display color")
}

func (f *specFlags) spec(name string) (domain.CategorySpec, error) {
	spec := domain.CategorySpec{
		Name:      name,
		Filter:    domain.All(),
		Whitelist: f.whitelist,
		Blacklist: f.blacklist,
	}
	if strings.TrimSpace(f.filter) != "" {
		var filter domain.Filter
		if err := yaml.Unmarshal([]byte(f.filter), &filter); err != nil {
			return spec, fmt.Errorf("parse --filter: %w", err)
		}
		spec.Filter = filter
	}
	if f.color != "" {
		color, err := domain.ParseColor(f.color)
		if err != nil {
			return spec, err
		}
		spec.Color = color
	}
	return spec, spec.Validate()
}

func (c *cli) categoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage category views",
	}

	var (
		addFlags specFlags
		rank     int
	)
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a category, optionally at a rank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := addFlags.spec(args[0])
			if err != nil {
				return err
			}
			var at *int
			if cmd.Flags().Changed("rank") {
				at = &rank
			}
			view, err := c.app.svc.AddCategory(cmd.Context(), spec, at)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "%s at rank %d with %d cards\n", view.Spec.Name, view.Rank, len(view.Cards))
			return err
		},
	}
	addFlags.register(add)
	add.Flags().IntVar(&rank, "rank", 0, "rank to insert at")

	var (
		updFlags specFlags
		rename   string
	)
	update := &cobra.Command{
		Use:   "update NAME",
		Short: "Replace a category definition, optionally renaming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if rename != "" {
				name = rename
			}
			current, err := c.app.svc.Deck().CategorySpec(args[0])
			if err != nil {
				return err
			}
			spec, err := updFlags.spec(name)
			if err != nil {
				return err
			}
			// Flags left unset keep the current definition.
			flags := cmd.Flags()
			if !flags.Changed("filter") {
				spec.Filter = current.Filter
			}
			if !flags.Changed("whitelist") {
				spec.Whitelist = current.Whitelist
			}
			if !flags.Changed("blacklist") {
				spec.Blacklist = current.Blacklist
			}
			if !flags.Changed("color") {
				spec.Color = current.Color
			}
			if err := spec.Validate(); err != nil {
				return err
			}
			_, err = c.app.svc.UpdateCategory(cmd.Context(), args[0], spec)
			return err
		},
	}
	updFlags.register(update)
	update.Flags().StringVar(&rename, "rename", "", "new category name")

	remove := &cobra.Command{
		Use:   "remove NAME",
		Short: "Unregister a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := c.app.svc.RemoveCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return &domain.CategoryError{Op: "remove category", Name: args[0], Err: domain.ErrCategoryNotFound}
			}
			return nil
		},
	}

	move := &cobra.Command{
		Use:   "rank NAME RANK",
		Short: "Move a category to RANK, swapping with the current holder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rank %q is not a number", args[1])
			}
			return c.app.svc.SwapCategoryRanks(cmd.Context(), args[0], target)
		},
	}

	include := &cobra.Command{
		Use:   "include NAME KEY",
		Short: "Force a deck card into a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.svc.Include(cmd.Context(), args[0], args[1])
			return err
		},
	}

	exclude := &cobra.Command{
		Use:   "exclude NAME KEY",
		Short: "Force a deck card out of a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.svc.Exclude(cmd.Context(), args[0], args[1])
			return err
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories in rank order",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "RANK\tNAME\tCARDS\tFILTER")
			for _, view := range c.app.svc.Deck().Categories() {
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", view.Rank, view.Spec.Name, len(view.Cards), view.Spec.Filter)
			}
			return tw.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "List the cards of one category in deck order",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			view, err := c.app.svc.Deck().Category(args[0])
			if err != nil {
				return err
			}
			for _, card := range view.Cards {
				if _, err := fmt.Fprintf(c.out, "%d\t%s\t%s\n", c.app.svc.Deck().Count(card.Key), card.Key, card.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(add, update, remove, move, include, exclude, list, show)
	return cmd
}

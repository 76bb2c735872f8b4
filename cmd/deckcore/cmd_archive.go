package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"deckcore/internal/blob"

	"github.com/spf13/cobra"
)

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Archive the current deck snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := c.app.svc.Export(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, info.Key)
			return err
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import KEY",
		Short: "Replace the deck with an archived snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.svc.Import(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(c.out, "%d cards\n", c.app.svc.Deck().Total())
			return err
		},
	}
}

func (c *cli) exportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exports",
		Short: "List archived snapshots of the deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := c.app.svc.Exports(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			for _, info := range infos {
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) shareCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "share KEY",
		Short: "Print a time-limited URL for an archived snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := c.app.svc.ShareExport(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.out, url)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", blob.DefaultURLExpiry, "link lifetime")
	return cmd
}

// Command deckcore edits and samples a categorised card deck from the
// command line, or serves it over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	c := &cli{out: out, errOut: errOut}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.ExecuteContext(ctx)
	if c.app != nil {
		if cerr := c.app.close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		_, _ = fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

type cli struct {
	flags  globalFlags
	app    *app
	out    io.Writer
	errOut io.Writer
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "deckcore",
		Short:         "Edit, categorise and sample card decks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.flags, c.out, c.errOut)
			if err != nil {
				return err
			}
			c.app = a
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.configPath, "config", "c", "deckcore.yaml", "YAML config file (optional)")
	pf.StringVar(&c.flags.envFile, "env-file", ".env", "dotenv file (optional)")
	pf.StringVarP(&c.flags.deckID, "deck", "d", "", "deck id, overrides config")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.BoolVar(&c.flags.trace, "trace", false, "write one JSON line per operation to stderr")

	root.AddCommand(
		c.cardCmd(),
		c.categoryCmd(),
		c.sortCmd(),
		c.handCmd(),
		c.statsCmd(),
		c.auditCmd(),
		c.dumpCmd(),
		c.forgetCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.exportsCmd(),
		c.shareCmd(),
		c.serveCmd(),
	)
	return root
}

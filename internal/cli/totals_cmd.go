package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newTotalsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Show the community totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTotals(cmd, app)
		},
	}
}

func runTotals(cmd *cobra.Command, app *App) error {
	app.Sync.Load(cmd.Context())
	out := cmd.OutOrStdout()
	printBanner(out, app)
	fmt.Fprint(out, RenderTotals(app.Sync.Totals(), -1))
	fmt.Fprintln(out)
	fmt.Fprintln(out, RenderSummary(app.Sync.Summary()))
	return nil
}

func printBanner(out io.Writer, app *App) {
	if !app.Sync.Configured() {
		fmt.Fprintln(out, StyleWarn.Render("Demo mode: no backend_url configured, totals are sample data."))
	}
	if msg := app.Sync.LoadError(); msg != "" {
		fmt.Fprintln(out, StyleError.Render(msg))
	}
}

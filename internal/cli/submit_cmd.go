package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"example.com/prayer/internal/catalog"
	"example.com/prayer/internal/domain"
)

const defaultMinutes = 5

func newSubmitCmd(app *App) *cobra.Command {
	var minutes int

	cmd := &cobra.Command{
		Use:   "submit <activity>",
		Short: "Record one prayer act by activity id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, ok := catalog.Resolve(args[0])
			if !ok {
				return fmt.Errorf("unknown activity %q", args[0])
			}

			value := int64(1)
			switch at.Unit {
			case catalog.UnitMinutes:
				if minutes < 1 || minutes > domain.MaxMinutesPerEntry {
					return fmt.Errorf("--minutes must be between 1 and %d", domain.MaxMinutesPerEntry)
				}
				value = int64(minutes)
			default:
				if cmd.Flags().Changed("minutes") {
					return fmt.Errorf("%s is counted, not timed", at.Name)
				}
			}

			if !app.Sync.Submit(cmd.Context(), at.ID, value) {
				return errors.New(app.Sync.LastError())
			}
			fmt.Fprintln(cmd.OutOrStdout(), StyleOK.Render(fmt.Sprintf("Recorded %s for %s.", formatDelta(at, value), at.Name)))
			return nil
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", defaultMinutes, "Minutes offered, for timed activities")
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeviceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Show this device's identity and cooldown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			mode := "backend"
			if !app.Sync.Configured() {
				mode = "demo"
			}
			fmt.Fprintf(out, "%s %s\n", StyleDim.Render("device:  "), app.Sync.DeviceIdentity())
			fmt.Fprintf(out, "%s %s\n", StyleDim.Render("mode:    "), mode)
			if remaining := app.Sync.CooldownRemaining(); remaining > 0 {
				fmt.Fprintf(out, "%s %ds\n", StyleDim.Render("cooldown:"), remaining)
			} else {
				fmt.Fprintf(out, "%s %s\n", StyleDim.Render("cooldown:"), "ready")
			}
			return nil
		},
	}
}

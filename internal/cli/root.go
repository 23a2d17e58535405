// Package cli implements the prayer terminal client.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"example.com/prayer/internal/aggregates"
	"example.com/prayer/internal/api"
	"example.com/prayer/internal/auth"
)

// AdminClient is the admin surface of the backend.
type AdminClient interface {
	Login(ctx context.Context, password string) (*auth.AdminSession, error)
	Adjust(ctx context.Context, session *auth.AdminSession, adjustments map[int]int64) (int, error)
	Entries(ctx context.Context, session *auth.AdminSession, cursor string, limit int) (*api.AdminEntriesResponse, error)
}

// App holds the dependencies shared by every command.
type App struct {
	Sync  *aggregates.Synchronizer
	Admin AdminClient

	// Setup wires Sync and Admin from the config file once flags are parsed. tui is true
	// when the command takes over the terminal.
	Setup func(configPath string, tui bool) error

	IsInteractive  func() bool
	PromptPassword func() (string, error)
	Now            func() time.Time
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// NewRootCmd creates the top-level "prayer" command.
func NewRootCmd(app *App) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "prayer",
		Short:         "Record prayers and follow the community totals",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Setup == nil {
				return nil
			}
			return app.Setup(configPath, cmd.Name() == "dashboard" && app.interactive())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a prayer.yaml config file")

	root.AddCommand(
		newTotalsCmd(app),
		newSubmitCmd(app),
		newDashboardCmd(app),
		newDeviceCmd(app),
		newAdminCmd(app),
	)
	return root
}

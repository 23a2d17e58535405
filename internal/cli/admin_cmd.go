package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"example.com/prayer/internal/auth"
	"example.com/prayer/internal/catalog"
)

// EnvAdminPassword is consulted when --password is not given.
const EnvAdminPassword = "PRAYER_ADMIN_PASSWORD"

var errNoBackend = errors.New("admin commands need a backend_url")

func newAdminCmd(app *App) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer community totals",
	}
	cmd.PersistentFlags().StringVar(&password, "password", "", "Admin password (or "+EnvAdminPassword+")")

	login := func(cmd *cobra.Command) (*auth.AdminSession, error) {
		if app.Admin == nil {
			return nil, errNoBackend
		}
		pw, err := resolvePassword(app, password)
		if err != nil {
			return nil, err
		}
		session, err := app.Admin.Login(cmd.Context(), pw)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, errors.New("incorrect password")
		}
		return session, err
	}

	cmd.AddCommand(newAdminEntriesCmd(app, login), newAdminAdjustCmd(app, login))
	return cmd
}

type loginFunc func(cmd *cobra.Command) (*auth.AdminSession, error)

func newAdminEntriesCmd(app *App, login loginFunc) *cobra.Command {
	var (
		limit  int
		cursor string
	)
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List the most recent entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := login(cmd)
			if err != nil {
				return err
			}
			page, err := app.Admin.Entries(cmd.Context(), session, cursor, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, RenderEntries(page.Items))
			if page.NextCursor != "" {
				fmt.Fprintf(out, "%s --cursor %s\n", StyleDim.Render("more:"), page.NextCursor)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Entries per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor from a previous page")
	return cmd
}

func newAdminAdjustCmd(app *App, login loginFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "adjust <activity>=<delta>...",
		Short: "Add or subtract from totals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adjustments, err := parseAdjustments(args)
			if err != nil {
				return err
			}
			session, err := login(cmd)
			if err != nil {
				return err
			}
			applied, err := app.Admin.Adjust(cmd.Context(), session, adjustments)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), StyleOK.Render(fmt.Sprintf("Applied %d adjustment(s).", applied)))
			return nil
		},
	}
}

// parseAdjustments reads "<activity>=<delta>" pairs. Activities resolve by id or name and
// repeated activities are summed.
func parseAdjustments(args []string) (map[int]int64, error) {
	out := make(map[int]int64, len(args))
	for _, arg := range args {
		idx := strings.LastIndex(arg, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid adjustment %q, want <activity>=<delta>", arg)
		}
		at, ok := catalog.Resolve(arg[:idx])
		if !ok {
			return nil, fmt.Errorf("unknown activity %q", arg[:idx])
		}
		delta, err := strconv.ParseInt(strings.TrimSpace(arg[idx+1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid delta in %q: %w", arg, err)
		}
		out[at.ID] += delta
	}
	return out, nil
}

func resolvePassword(app *App, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(EnvAdminPassword); env != "" {
		return env, nil
	}
	if app.PromptPassword != nil && app.interactive() {
		return app.PromptPassword()
	}
	return "", fmt.Errorf("admin password required: use --password or %s", EnvAdminPassword)
}

package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/waypoint/internal/cli/config"
	"github.com/conduit-lang/waypoint/internal/cli/ui"
	"github.com/conduit-lang/waypoint/internal/demo"
	"github.com/conduit-lang/waypoint/internal/web/auth"
)

var (
	userEmail    string
	userPassword string
	userRoles    []string
)

// NewUsersCommand creates the users command group
func NewUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts able to obtain bearer tokens",
	}
	cmd.AddCommand(newUsersAddCommand())
	return cmd
}

func newUsersAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Long: `Create an account in the configured database.

The password is stored as a bcrypt hash. Roles decide what the account
may do once it has signed in through POST /sessions: admin, editor or
viewer.`,
		Example: `  waypoint users add --email ada@example.com --password s3cret --role editor`,
		RunE:    runUsersAdd,
	}

	cmd.Flags().StringVar(&userEmail, "email", "", "Account email")
	cmd.Flags().StringVar(&userPassword, "password", "", "Account password")
	cmd.Flags().StringSliceVar(&userRoles, "role", []string{auth.ViewerRole.Name}, "Role to grant (repeatable)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	for _, r := range userRoles {
		if auth.GetRoleByName(r) == nil {
			return fmt.Errorf("unknown role %q", r)
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err, noColor))
		return err
	}

	ctx := commandContext(cmd)
	db, err := demo.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store := demo.NewStore(db, cfg.Database.Driver)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	hash, err := auth.HashPassword(userPassword)
	if err != nil {
		return err
	}
	u, err := store.CreateUser(ctx, userEmail, hash, userRoles)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.FormatSuccess(
		fmt.Sprintf("created user %d %s (%s)", u.ID, u.Email, strings.Join(u.Roles, ", ")), noColor))
	return nil
}

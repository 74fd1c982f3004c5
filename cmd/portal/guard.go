package main

import (
	"github.com/spf13/cobra"

	"github.com/edusphere/portal/internal/guard"
	"github.com/edusphere/portal/internal/identity"
)

// guardConfig holds configuration for the guard command.
type guardConfig struct {
	roles []string
}

// NewGuardCmd creates the guard subcommand.
func NewGuardCmd() *cobra.Command {
	cfg := &guardConfig{}

	cmd := &cobra.Command{
		Use:   "guard <path>",
		Short: "Decide whether the current session may open a page",
		Long: `Verify the cached session and print the access decision for a portal
path: allow, wait, or redirect with the target location. Paths outside the
protected dashboards are always allowed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGuard(cmd, cfg, args[0])
		},
	}

	cmd.Flags().StringSliceVar(&cfg.roles, "role", nil, "roles allowed on the path (overrides the route table)")

	return cmd
}

func runGuard(cmd *cobra.Command, cfg *guardConfig, path string) error {
	roles := make([]identity.Role, 0, len(cfg.roles))
	for _, r := range cfg.roles {
		role, err := identity.ParseRole(r)
		if err != nil {
			return err
		}
		roles = append(roles, role)
	}

	if len(roles) == 0 {
		matched, ok := guard.DefaultTable().Match(path)
		if !ok {
			cmd.Println(guard.Decision{Outcome: guard.Allow}.String())
			return nil
		}
		roles = matched
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	a.machine.Initialize(cmd.Context())
	decision := guard.Check(a.machine, path, roles...)
	guard.RecordDecision(decision.Outcome)
	cmd.Println(decision.String())
	return nil
}

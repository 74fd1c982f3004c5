package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/edusphere/portal/internal/guard"
	"github.com/edusphere/portal/internal/identity"
)

// loginConfig holds configuration for the login command.
type loginConfig struct {
	role          string
	email         string
	password      string
	passwordStdin bool
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd() *cobra.Command {
	cfg := &loginConfig{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with role-scoped credentials",
		Long: `Sign in to the portal as a student, faculty member, principal or
admin. The session is cached so later commands stay signed in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.role, "role", "", "role to sign in as (student, faculty, principal, admin)")
	cmd.Flags().StringVar(&cfg.email, "email", "", "account email")
	cmd.Flags().StringVar(&cfg.password, "password", "", "account password")
	cmd.Flags().BoolVar(&cfg.passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("email")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	return cmd
}

func runLogin(cmd *cobra.Command, cfg *loginConfig) error {
	role, err := identity.ParseRole(cfg.role)
	if err != nil {
		return err
	}

	password := cfg.password
	if cfg.passwordStdin {
		password, err = readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
	}
	if password == "" {
		return oops.Code("CLI_PASSWORD_REQUIRED").Errorf("a password is required (--password or --password-stdin)")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if err := a.withNotices(ctx, func() error {
		return a.machine.Login(ctx, cfg.email, password, role)
	}); err != nil {
		return err
	}

	st := a.machine.State()
	cmd.Printf("Landing page: %s\n", guard.LandingPath(st.Role()))
	return nil
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/edusphere/portal/internal/guard"
	"github.com/edusphere/portal/internal/portal"
)

// signupConfig holds configuration for the signup command.
type signupConfig struct {
	in            portal.StudentSignup
	passwordStdin bool
}

// NewSignupCmd creates the signup subcommand.
func NewSignupCmd() *cobra.Command {
	cfg := &signupConfig{}

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new student account",
		Long: `Register a new student account. When the portal returns the new
account the client is signed in as that student.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSignup(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.in.Name, "name", "", "full name")
	cmd.Flags().StringVar(&cfg.in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&cfg.in.Password, "password", "", "account password")
	cmd.Flags().BoolVar(&cfg.passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&cfg.in.RollID, "roll-id", "", "student roll number")
	cmd.Flags().StringVar(&cfg.in.StudentClass, "class", "", "class the student is enrolled in")
	cmd.Flags().StringSliceVar(&cfg.in.Subjects, "subjects", nil, "comma-separated subjects")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	return cmd
}

func runSignup(cmd *cobra.Command, cfg *signupConfig) error {
	in := cfg.in
	if cfg.passwordStdin {
		password, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
		in.Password = password
	}
	if err := in.Validate(); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if err := a.withNotices(ctx, func() error {
		_, signupErr := a.machine.Signup(ctx, in)
		return signupErr
	}); err != nil {
		return err
	}

	if st := a.machine.State(); st.Authenticated() {
		cmd.Printf("Landing page: %s\n", guard.LandingPath(st.Role()))
	}
	return nil
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/edusphere/portal/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the portal CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "EduSphere portal client",
		Long: `portal signs in to the EduSphere school portal, keeps the session
valid, and reports which pages the signed-in identity may open.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG config dir)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewLogoutCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewWhoamiCmd())
	cmd.AddCommand(NewSignupCmd())
	cmd.AddCommand(NewGuardCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("portal %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/edusphere/portal/internal/identity"
)

// NewWhoamiCmd creates the whoami subcommand.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the cached identity without contacting the portal",
		Long: `Show the identity cached by the last sign-in. The portal is not
contacted, so the result is unverified; use status to verify it.`,
		Args: cobra.NoArgs,
		RunE: runWhoami,
	}
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id := a.machine.LoadHint()
	if id == nil {
		cmd.Println("Not signed in")
		return nil
	}

	cmd.Printf("%s <%s> (%s, unverified)\n", identity.DisplayName(id), id.Base().Email, id.Role())
	return nil
}

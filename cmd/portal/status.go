package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/edusphere/portal/internal/authstate"
	"github.com/edusphere/portal/internal/guard"
	"github.com/edusphere/portal/internal/identity"
)

// SessionStatus is the printable auth state.
type SessionStatus struct {
	Phase   string         `json:"phase"`
	Role    string         `json:"role,omitempty"`
	User    *identity.Wire `json:"user,omitempty"`
	Landing string         `json:"landing,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Verify the cached session with the portal",
		Long: `Verify the cached session with the portal and show who is signed in.
An invalid or expired session is cleared.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	var st authstate.State
	if err := a.withNotices(ctx, func() error {
		st = a.machine.Initialize(ctx)
		return nil
	}); err != nil {
		return err
	}

	status, err := newSessionStatus(st)
	if err != nil {
		return err
	}
	if cfg.jsonOutput {
		return printJSON(cmd.OutOrStdout(), status)
	}
	printStatusTable(cmd.OutOrStdout(), status)
	return nil
}

func newSessionStatus(st authstate.State) (SessionStatus, error) {
	status := SessionStatus{Phase: st.Phase.String()}
	if st.LastError != nil {
		status.Error = st.LastError.Message
	}
	if st.Identity == nil {
		return status, nil
	}
	w, err := identity.ToWire(st.Identity)
	if err != nil {
		return status, err
	}
	status.Role = w.Role
	status.User = &w
	status.Landing = guard.LandingPath(st.Role())
	return status, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	return nil
}

func printStatusTable(out io.Writer, s SessionStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "PHASE\t%s\n", s.Phase)
	if s.User != nil {
		_, _ = fmt.Fprintf(w, "ROLE\t%s\n", s.Role)
		_, _ = fmt.Fprintf(w, "NAME\t%s\n", s.User.Name)
		_, _ = fmt.Fprintf(w, "EMAIL\t%s\n", s.User.Email)
		_, _ = fmt.Fprintf(w, "ID\t%d\n", s.User.ID)
		_, _ = fmt.Fprintf(w, "LANDING\t%s\n", s.Landing)
	}
	if s.Error != "" {
		_, _ = fmt.Fprintf(w, "ERROR\t%s\n", s.Error)
	}
	_ = w.Flush()
}

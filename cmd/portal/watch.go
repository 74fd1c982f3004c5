package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edusphere/portal/internal/guard"
	"github.com/edusphere/portal/internal/identity"
	"github.com/edusphere/portal/internal/notify"
	"github.com/edusphere/portal/internal/observability"
)

// NewWatchCmd creates the watch subcommand.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and report auth changes",
		Long: `Verify the cached session, revalidate it periodically and print a
notice for every auth change until interrupted. When metrics.addr is set,
metrics, health probes and the guarded dashboard routes are served there.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	surface := notify.NewSurface(notify.NewWriterSink(cmd.OutOrStdout()), notify.LogSink{Logger: a.logger})
	events, unsubscribe := a.machine.Subscribe()
	defer unsubscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		surface.Run(ctx, events)
	}()

	var obsServer *observability.Server
	if a.cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(a.cfg.Metrics.Addr, a.machine.Ready,
			observability.WithLogger(a.logger),
			observability.WithHandler("/", guard.Middleware(a.machine, nil)(dashboardHandler(a))),
		)
		if _, err := obsServer.Start(); err != nil {
			return err
		}
	}

	st := a.machine.Initialize(ctx)
	a.logger.Info("watching session", "phase", st.Phase, "role", st.Role())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down")
	}

	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("error stopping observability server", "error", err)
		}
	}

	cancel()
	<-done
	return nil
}

// dashboardHandler answers guarded routes with the signed-in identity.
func dashboardHandler(a *app) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := a.machine.State()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(r.URL.Path + ": " + identity.DisplayName(st.Identity) + " (" + string(st.Role()) + ")\n"))
	})
}

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/edusphere/portal/internal/authstate"
	"github.com/edusphere/portal/internal/config"
	"github.com/edusphere/portal/internal/logging"
	"github.com/edusphere/portal/internal/notify"
	"github.com/edusphere/portal/internal/portal"
	"github.com/edusphere/portal/internal/request"
	"github.com/edusphere/portal/internal/session"
	"github.com/edusphere/portal/internal/xdg"
)

// app holds the wired client components for one command run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	machine *authstate.Machine
	surface *notify.Surface
}

// newApp loads config and wires logging, the request executor, the
// session store and the auth machine.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger := logging.Setup("portal", version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())

	exec, err := request.NewExecutor(cfg.ExecutorConfig("edusphere-portal/"+version), request.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	client, err := portal.NewClient(exec)
	if err != nil {
		return nil, err
	}

	origin, err := session.Origin(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	dir, err := cfg.SessionsDir()
	if err != nil {
		return nil, err
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return nil, err
	}
	storage, err := session.NewFileStorage(dir, origin)
	if err != nil {
		return nil, err
	}
	store, err := session.NewStore(storage, session.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	machine, err := authstate.New(client, store,
		authstate.WithRevalidateInterval(cfg.Auth.RevalidateInterval),
		authstate.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	logger.Debug("client configured",
		"base_url", cfg.BaseURL,
		"session_file", storage.Path(),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		machine: machine,
		surface: notify.NewSurface(notify.NewWriterSink(cmd.OutOrStdout())),
	}, nil
}

// withNotices runs fn and then prints the notices for the transitions it
// caused.
func (a *app) withNotices(ctx context.Context, fn func() error) error {
	events, unsubscribe := a.machine.Subscribe()
	err := fn()
	unsubscribe()
	a.surface.Run(ctx, events)
	return err
}

func (a *app) close() {
	a.machine.Close()
}

package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/evq/internal/config"
	"github.com/roach88/evq/internal/engine"
	"github.com/roach88/evq/internal/kv"
)

// session is an open backend and the engine built over it.
type session struct {
	cfg     config.Config
	backend kv.Backend
	engine  *engine.Engine
	logger  *slog.Logger
}

// resolveConfig loads the config file and applies flag overrides.
func resolveConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Driver != "" {
		cfg.Driver = opts.Driver
	}
	if opts.DB != "" {
		cfg.Path = opts.DB
	}
	if opts.Key != "" {
		cfg.Key = opts.Key
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openSession resolves configuration, opens the backend and builds an
// engine. Logs go to the command's stderr.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.Level(),
	}))

	logger.Debug("opening store", "driver", cfg.Driver, "path", cfg.Path)
	backend, err := kv.Open(cfg.KV())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open %s store", cfg.Driver), err)
	}

	eng, err := engine.New(backend, cfg.Key,
		engine.WithLogger(logger),
		engine.WithCorruptPolicy(cfg.Policy()),
		engine.WithMaxPerDrain(cfg.MaxPerDrain),
	)
	if err != nil {
		backend.Close()
		return nil, WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	return &session{cfg: cfg, backend: backend, engine: eng, logger: logger}, nil
}

func (s *session) Close() {
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing store", "error", err)
	}
}

// formatter returns an OutputFormatter bound to cmd's writers.
func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// ListenOptions holds flags for the listen command.
type ListenOptions struct {
	*RootOptions
	Interval time.Duration
}

// NewListenCommand creates the listen command.
func NewListenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "listen <event>...",
		Short: "Poll and print deliveries until interrupted",
		Long: `Register a printing listener for each event name and poll the queue
until SIGINT or SIGTERM. Drain errors are logged and polling continues.

Examples:
  evq listen hello
  evq listen job --interval 1s --db ./evq.db`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(opts, args, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "poll interval (default from config, 100ms)")
	return cmd
}

func runListen(opts *ListenOptions, events []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	out := formatter(opts.RootOptions, cmd)
	if err := subscribePrinters(s.engine, events, out); err != nil {
		return WrapExitError(ExitCommandError, "invalid event name", err)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = s.cfg.PollInterval
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	stop, err := s.engine.Start(ctx, interval)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to start polling", err)
	}
	s.logger.Info("listening", slog.Any("events", events), "key", s.cfg.Key)

	<-ctx.Done()
	stop()
	s.engine.Wait()
	return nil
}

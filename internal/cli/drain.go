package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/evq/internal/engine"
	"github.com/roach88/evq/internal/queue"
)

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain <event>...",
		Short: "Deliver stored items once and exit",
		Long: `Register a printing listener for each event name, run one drain to
quiescence, and exit. Delivered items are removed from the store.

Examples:
  evq drain hello
  evq drain job retry --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runDrain(opts *RootOptions, events []string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	out := formatter(opts, cmd)
	if err := subscribePrinters(s.engine, events, out); err != nil {
		return WrapExitError(ExitCommandError, "invalid event name", err)
	}

	n, err := s.engine.Drain(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("drain stopped after %d item(s)", n), err)
	}
	out.VerboseLog("dispatched %d item(s)", n)
	return nil
}

// subscribePrinters registers one printing listener per event name.
func subscribePrinters(eng *engine.Engine, events []string, out *OutputFormatter) error {
	for _, name := range events {
		_, err := eng.On(name, func(_ context.Context, data queue.Payload) error {
			return out.Delivery(Delivery{Event: name, Data: data})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

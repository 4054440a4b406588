package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/evq/internal/queue"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Filter string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show stored items",
		Long: `Show stored items, oldest first.

--filter takes a CEL expression over eventName, issuedAt, index and data.

Examples:
  evq list
  evq list --filter 'eventName == "hello"'
  evq list --filter 'has(data.world) && data.world' --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "CEL predicate selecting items")
	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	f, err := queue.CompileFilter(opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.engine.Store().List(cmd.Context(), f)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read queue", err)
	}
	return formatter(opts.RootOptions, cmd).Items(items)
}

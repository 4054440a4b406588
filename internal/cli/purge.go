package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/evq/internal/queue"
)

// PurgeOptions holds flags for the purge command.
type PurgeOptions struct {
	*RootOptions
	Filter string
	All    bool
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PurgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove stored items without delivering them",
		Long: `Remove stored items matching a CEL filter, or every item with --all.

Examples:
  evq purge --filter 'eventName == "stale"'
  evq purge --filter 'index >= 100'
  evq purge --all

--all overwrites the slot with an empty queue without reading it, which also
repairs a slot that fails validation.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "CEL predicate selecting items to remove")
	cmd.Flags().BoolVar(&opts.All, "all", false, "remove every item")
	return cmd
}

func runPurge(opts *PurgeOptions, cmd *cobra.Command) error {
	switch {
	case opts.All && opts.Filter != "":
		return NewExitError(ExitCommandError, "--all and --filter are mutually exclusive")
	case !opts.All && opts.Filter == "":
		return NewExitError(ExitCommandError, "purge needs --filter or --all")
	}

	var f queue.Filter
	if !opts.All {
		var err error
		f, err = queue.CompileFilter(opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid filter", err)
		}
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	store := s.engine.Store()
	var n int
	if opts.All {
		// Overwrites without reading, so a corrupt slot is cleared too.
		n, err = store.Clear(cmd.Context())
	} else {
		n, err = store.Purge(cmd.Context(), f)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "purge failed", err)
	}
	return formatter(opts.RootOptions, cmd).Success(
		map[string]any{"removed": n},
		fmt.Sprintf("removed %d item(s)", n),
	)
}

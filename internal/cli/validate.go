package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/evq/internal/queue"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Key      string         `json:"key"`
	Items    int            `json:"items"`
	Events   map[string]int `json:"events,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Reason   string         `json:"reason,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the stored queue against the schema",
		Long: `Read the stored blob and check it against the queue schema,
regardless of the configured corrupt policy. An absent blob is valid.

Valid state may still carry warnings: an issuedAt that is not RFC 3339, or an
event name that is not in Unicode NFC. Names match byte-for-byte, so a
listener registered with a visually identical composed name never sees it.

Exit codes:
  0 - Stored state is valid
  1 - Stored state is corrupt
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	store := s.engine.Store()
	out := formatter(opts, cmd)

	if err := store.Check(ctx); err != nil {
		var ce *queue.CorruptStateError
		if !errors.As(err, &ce) {
			return WrapExitError(ExitCommandError, "failed to read queue", err)
		}
		result := ValidationResult{Valid: false, Key: store.Key(), Reason: ce.Err.Error()}
		if err := out.Error("E_CORRUPT_STATE", "stored queue is corrupt: "+result.Reason, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "stored queue is corrupt")
	}

	st, err := store.Load(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read queue", err)
	}
	result := ValidationResult{
		Valid:    true,
		Key:      store.Key(),
		Items:    st.Len(),
		Warnings: stateWarnings(st),
	}
	if result.Items > 0 {
		result.Events = make(map[string]int)
		for _, it := range st.Queue {
			result.Events[it.EventName] = st.Count(it.EventName)
		}
	}

	text := fmt.Sprintf("✓ %s: valid (%d item(s))", result.Key, result.Items)
	for _, w := range result.Warnings {
		text += "\n  warning: " + w
	}
	return out.Success(result, text)
}

func stateWarnings(st queue.State) []string {
	var warnings []string
	for i, it := range st.Queue {
		if _, err := it.Time(); err != nil {
			warnings = append(warnings, fmt.Sprintf("item %d: issuedAt %q is not RFC 3339", i, it.IssuedAt))
		}
		if !norm.NFC.IsNormalString(it.EventName) {
			warnings = append(warnings, fmt.Sprintf("item %d: event name %q is not NFC", i, it.EventName))
		}
	}
	return warnings
}

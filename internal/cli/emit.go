package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/evq/internal/queue"
)

// NewEmitCommand creates the emit command.
func NewEmitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit <event> [json-object]",
		Short: "Store an event",
		Long: `Store an event with an optional JSON object payload.

Examples:
  evq emit hello '{"world":true}'
  evq emit tick --db ./evq.db --key jobs`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 2 {
				raw = args[1]
			}
			return runEmit(rootOpts, args[0], raw, cmd)
		},
	}
	return cmd
}

func runEmit(opts *RootOptions, eventName, raw string, cmd *cobra.Command) error {
	data, err := parsePayload(raw)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid payload", err)
	}

	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if err := s.engine.Emit(ctx, eventName, data); err != nil {
		return WrapExitError(ExitFailure, "emit failed", err)
	}

	pending, err := s.engine.Pending(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "emit succeeded but queue is unreadable", err)
	}

	out := formatter(opts, cmd)
	return out.Success(map[string]any{
		"event":   eventName,
		"pending": len(pending),
	}, fmt.Sprintf("emitted %s (%d pending)", eventName, len(pending)))
}

// parsePayload decodes raw as a JSON object. Blank input means no payload.
func parsePayload(raw string) (queue.Payload, error) {
	if len(bytes.TrimSpace([]byte(raw))) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var p queue.Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("payload must be a JSON object, got null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("payload has trailing data")
	}
	return p, nil
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/idocore/internal/engine"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args      string
	Server    string
	RequestID string
}

// InvokeResult is the JSON output of a successful invoke.
type InvokeResult struct {
	Kind      string          `json:"kind"`
	RequestID string          `json:"request_id"`
	Seq       int64           `json:"seq"`
	EntryID   string          `json:"entry_id"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <kind>",
		Short: "Invoke an operation on the running server",
		Long: fmt.Sprintf(`Invoke an operation on a running idocore server.

The arguments are checked locally against the operation's schema before
they are sent. Amounts are decimal strings.

Kinds: %s

Exit codes:
  0 - Operation executed
  1 - Operation rejected by the engine
  2 - Command error (bad arguments, unreachable server, etc.)

Example:
  idocore invoke commit --args '{"project_id":1,"account":"alice","amount":"25"}'
  idocore invoke advance --args '{"project_id":1}' --request-id ops-42`, strings.Join(engine.Kinds(), ", ")),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeOperation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "operation arguments as JSON")
	cmd.Flags().StringVar(&opts.Server, "server", DefaultServer, "idocore server URL")
	cmd.Flags().StringVar(&opts.RequestID, "request-id", "", "request id to run under (default: server generated)")

	return cmd
}

func invokeOperation(opts *InvokeOptions, kind string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Reject unknown kinds and malformed arguments before the round trip.
	if _, err := engine.Decode(kind, []byte(opts.Args)); err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid operation", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter.VerboseLog("POST %s/api/v1/operations/%s", opts.Server, kind)

	reply, err := NewClient(opts.Server).Invoke(ctx, kind, json.RawMessage(opts.Args), opts.RequestID)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) {
			return outputRemoteError(formatter, remote)
		}
		_ = formatter.Error(ErrCodeRemote, err.Error(), nil)
		return WrapExitError(ExitCommandError, "server request failed", err)
	}

	result := InvokeResult{
		Kind:      kind,
		RequestID: reply.RequestID,
		Seq:       reply.Seq,
		EntryID:   reply.EntryID,
		Result:    reply.Result,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s executed\n", kind)
	fmt.Fprintf(w, "  Request: %s\n", result.RequestID)
	fmt.Fprintf(w, "  Seq:     %d\n", result.Seq)
	fmt.Fprintf(w, "  Entry:   %s\n", result.EntryID)
	if len(result.Result) > 0 && string(result.Result) != "null" {
		fmt.Fprintf(w, "  Result:  %s\n", string(result.Result))
	}
	return nil
}

// outputRemoteError reports an operation the engine rejected. Rejections
// are journaled, so the request id is still useful to trace.
func outputRemoteError(formatter *OutputFormatter, remote *RemoteError) error {
	if formatter.Format == "json" {
		if err := formatter.Respond(CLIResponse{
			Status:    "error",
			RequestID: remote.RequestID,
			Error: &CLIError{
				Code:    remote.Body.Code,
				Message: remote.Body.Message,
				Details: remote.Body.Details,
			},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s: %s\n", remote.Body.Code, remote.Body.Message)
		if remote.RequestID != "" {
			fmt.Fprintf(formatter.Writer, "  Request: %s\n", remote.RequestID)
		}
	}
	return WrapExitError(ExitFailure, "operation rejected", remote)
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idocore/internal/engine"
	"github.com/roach88/idocore/internal/journal"
	"github.com/roach88/idocore/internal/logging"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string // optional SQLite file overriding the configured store
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Entries       int                 `json:"entries"`
	Head          int64               `json:"head"`
	Deterministic bool                `json:"deterministic"`
	Divergences   []engine.Divergence `json:"divergences"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Re-execute the whole journal against an empty in-memory store and
compare every entry's id, outcome, error code and result with what was
recorded. Staking queries and transfers are not repeated; failed calls are
failed again where the journal recorded a failure.

The tier table comes from the configuration, so it must be the table the
journal was written under.

Exit codes:
  0 - Journal replays identically
  1 - Divergence detected
  2 - Command error (database not found, etc.)

Examples:
  idocore replay
  idocore replay --db ./idocore.db
  idocore replay --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: configured store)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, st, err := openConfiguredStore(ctx, opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ReadJournal(ctx, journal.Filter{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	head, err := st.JournalHead(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal head", err)
	}

	tiers, err := tierEngine(cfg)
	if err != nil {
		return err
	}
	report, err := engine.Replay(ctx, entries,
		engine.WithTiers(tiers),
		engine.WithLogger(logging.Discard()),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := ReplayResult{
		Entries:       report.Entries,
		Head:          head,
		Deterministic: report.OK(),
		Divergences:   report.Divergences,
	}

	if opts.Format == "json" {
		if err := outputReplayJSON(opts.RootOptions, cmd, result); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, result)
	}

	if !result.Deterministic {
		// Divergence = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("replay diverged in %d field(s)", len(result.Divergences)))
	}
	return nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(opts *RootOptions, cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_NONDETERMINISTIC",
			Message: fmt.Sprintf("replay diverged in %d field(s)", len(result.Divergences)),
		}
	}

	return newFormatter(opts, cmd).Respond(response)
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) {
	w := cmd.OutOrStdout()

	if result.Entries == 0 {
		fmt.Fprintln(w, "Journal is empty.")
		return
	}

	fmt.Fprintf(w, "Replayed %d entries (head seq %d)\n\n", result.Entries, result.Head)
	if result.Deterministic {
		fmt.Fprintln(w, "✓ Journal replays identically")
		return
	}

	fmt.Fprintln(w, "✗ Divergences:")
	for _, d := range result.Divergences {
		fmt.Fprintf(w, "  seq %d %s (%s) %s\n", d.Seq, d.Kind, d.RequestID, d.Field)
		fmt.Fprintf(w, "    want: %s\n", d.Want)
		fmt.Fprintf(w, "    got:  %s\n", d.Got)
	}
}

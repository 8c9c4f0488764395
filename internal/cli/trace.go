package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/idocore/internal/ido"
	"github.com/roach88/idocore/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string // optional SQLite file overriding the configured store
	Kind     string // optional - filter to one operation kind
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RequestID string          `json:"request_id"`
	Timeline  []journal.Entry `json:"timeline"`
	Stats     TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEntries int             `json:"total_entries"`
	OK           int             `json:"ok"`
	Errors       int             `json:"errors"`
	Projects     []ido.ProjectID `json:"projects"`
	Accounts     []string        `json:"accounts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <request-id>",
		Short: "Show the journal entries of one request",
		Long: `Show every journal entry recorded under a request id.

A request may span several entries: a balance-gated registration is
followed by the resolve entry of its staking answer, which runs under
the same request id. Rejected operations are journaled too.

Examples:
  idocore trace 0192a0c4-7b2e-7c51-9a64-3f4be1d0a5e2
  idocore trace ops-42 --db ./idocore.db --kind resolve
  idocore trace ops-42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: configured store)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one operation kind")

	return cmd
}

func runTrace(opts *TraceOptions, requestID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	_, st, err := openConfiguredStore(ctx, opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.ReadJournal(ctx, journal.Filter{RequestID: requestID})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	timeline := filterKind(entries, opts.Kind)
	result := TraceResult{
		RequestID: requestID,
		Timeline:  timeline,
		Stats:     calculateTraceStats(timeline),
	}

	if opts.Format == "json" {
		return outputTraceJSON(opts.RootOptions, cmd, result)
	}
	return outputTraceText(cmd, result)
}

// filterKind keeps the entries of one kind. An empty kind keeps all.
func filterKind(entries []journal.Entry, kind string) []journal.Entry {
	out := make([]journal.Entry, 0, len(entries))
	for _, e := range entries {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func calculateTraceStats(entries []journal.Entry) TraceStats {
	stats := TraceStats{
		TotalEntries: len(entries),
		Projects:     []ido.ProjectID{},
		Accounts:     []string{},
	}
	projects := make(map[ido.ProjectID]bool)
	accounts := make(map[string]bool)
	for _, e := range entries {
		if e.Outcome == journal.OutcomeOK {
			stats.OK++
		} else {
			stats.Errors++
		}
		if e.ProjectID != 0 && !projects[e.ProjectID] {
			projects[e.ProjectID] = true
			stats.Projects = append(stats.Projects, e.ProjectID)
		}
		if e.Account != "" && !accounts[e.Account] {
			accounts[e.Account] = true
			stats.Accounts = append(stats.Accounts, e.Account)
		}
	}
	sort.Slice(stats.Projects, func(i, j int) bool { return stats.Projects[i] < stats.Projects[j] })
	sort.Strings(stats.Accounts)
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(opts *RootOptions, cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status:    "ok",
		Data:      result,
		RequestID: result.RequestID,
	}

	return newFormatter(opts, cmd).Respond(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	if len(result.Timeline) == 0 {
		fmt.Fprintf(w, "No journal entries found for request: %s\n", result.RequestID)
		return nil
	}

	fmt.Fprintf(w, "Request: %s\n\n", result.RequestID)
	fmt.Fprintln(w, "Timeline:")
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  %s", e.Summary())
		if e.ProjectID != 0 {
			fmt.Fprintf(w, " project=%d", e.ProjectID)
		}
		if e.Account != "" {
			fmt.Fprintf(w, " account=%s", e.Account)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "    args: %s\n", string(e.Args))
		if e.Outcome == journal.OutcomeError {
			fmt.Fprintf(w, "    error: %s\n", e.Message)
		} else if len(e.Result) > 0 {
			fmt.Fprintf(w, "    result: %s\n", string(e.Result))
		}
	}
	fmt.Fprintln(w)

	s := result.Stats
	fmt.Fprintf(w, "Stats: %d entries, %d ok, %d error(s)\n", s.TotalEntries, s.OK, s.Errors)
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file; empty searches ./idocore.yaml and /etc/idocore
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Help groups.
const (
	groupSpecs   = "specs"
	groupService = "service"
	groupJournal = "journal"
)

// NewRootCommand creates the root command for the idocore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "idocore",
		Short: "idocore - IDO allocation engine",
		Long: `Run and operate token sale projects: whitelisting, tiered lottery or
shared-pool sales, and the distribution of the raised tokens.`,
		SilenceErrors: true, // main prints the error once with its exit code
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (default ./idocore.yaml)")

	cmd.AddGroup(
		&cobra.Group{ID: groupSpecs, Title: "Project specs:"},
		&cobra.Group{ID: groupService, Title: "Engine service:"},
		&cobra.Group{ID: groupJournal, Title: "Journal:"},
	)
	addGrouped(cmd, groupSpecs,
		NewCompileCommand(opts),
		NewValidateCommand(opts),
		NewTestCommand(opts),
	)
	addGrouped(cmd, groupService,
		NewServeCommand(opts),
		NewCreateCommand(opts),
		NewInvokeCommand(opts),
	)
	addGrouped(cmd, groupJournal,
		NewTraceCommand(opts),
		NewReplayCommand(opts),
	)

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func addGrouped(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.GroupID = group
		root.AddCommand(c)
	}
}

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/idocore/internal/compiler"
	"github.com/roach88/idocore/internal/engine"
	"github.com/roach88/idocore/internal/ido"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Server string
}

// CreatedProject is one project created on the server.
type CreatedProject struct {
	Name      string        `json:"name"`
	ProjectID ido.ProjectID `json:"project_id"`
	RequestID string        `json:"request_id"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <specs-dir>",
		Short: "Create the projects declared in a specs directory",
		Long: `Compile and validate the CUE project definitions in a directory, then
create each project on a running idocore server in declaration order.

Nothing is sent unless every definition is valid. Projects are created
one at a time; a rejection stops the run and leaves the projects created
so far in place.

Example:
  idocore create ./specs --server http://localhost:8080`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", DefaultServer, "idocore server URL")

	return cmd
}

func runCreate(opts *CreateOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadProjects(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}
	if errs := compiler.Validate(loadResult.Projects); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client := NewClient(opts.Server)

	created := make([]CreatedProject, 0, len(loadResult.Projects))
	for _, def := range loadResult.Projects {
		formatter.VerboseLog("Creating project: %s", def.Name)
		reply, err := client.CreateProject(ctx, def, "")
		if err != nil {
			var remote *RemoteError
			if errors.As(err, &remote) {
				return outputRemoteError(formatter, remote)
			}
			_ = formatter.Error(ErrCodeRemote, err.Error(), nil)
			return WrapExitError(ExitCommandError, "server request failed", err)
		}

		var res engine.Created
		if err := json.Unmarshal(reply.Result, &res); err != nil {
			_ = formatter.Error(ErrCodeRemote, fmt.Sprintf("decoding create result: %v", err), nil)
			return WrapExitError(ExitCommandError, "unreadable server reply", err)
		}
		created = append(created, CreatedProject{
			Name:      def.Name,
			ProjectID: res.ProjectID,
			RequestID: reply.RequestID,
		})
	}

	if opts.Format == "json" {
		return formatter.Success(created)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Created %d project(s)\n\n", len(created))
	for _, c := range created {
		fmt.Fprintf(w, "  %s: id %d (request %s)\n", c.Name, c.ProjectID, c.RequestID)
	}
	return nil
}

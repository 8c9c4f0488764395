package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idocore/internal/compiler"
)

func TestValidateValidSpecs(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), specsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All specs valid (2 project(s))")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), specsDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Projects)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateEconomics(t *testing.T) {
	// The schema accepts the project; only the economics check rejects it.
	_, err := execute(t, NewCompileCommand(&RootOptions{Format: "text"}), uneconomicDir)
	require.NoError(t, err)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), uneconomicDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrProjectEconomics+": projects[0].sale.total_tickets")
}

func TestValidateEconomicsJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), uneconomicDir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, compiler.ErrProjectEconomics, resp.Data.Errors[0].Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrProjectEconomics, resp.Error.Code)
}

func TestValidateSchemaError(t *testing.T) {
	errs, projects, err := ValidateSpecsDir(brokenDir)
	require.NoError(t, err)
	assert.Equal(t, 0, projects)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeGeneric, errs[0].Code)
	assert.Equal(t, "cue", errs[0].Field)
	assert.Contains(t, errs[0].Message, "project.bad")
}

func TestValidateCollectsAcrossProjectsAndTiers(t *testing.T) {
	dir := t.TempDir()
	spec := `package specs

project: one: {
	name:            "same"
	whitelist_start: "2026-03-01T02:00:00Z"
	whitelist_end:   "2026-03-01T01:00:00Z"
	sale_start:      "2026-03-01T03:00:00Z"
	sale_end:        "2026-03-01T04:00:00Z"

	token_raised_amount: "1000"
	token_sale_rate: {numerator: 1, denominator: 10}
	sale: {kind: "shared", min: "10", max: "200"}
}

project: two: {
	name:            "same"
	whitelist_start: "2026-03-01T01:00:00Z"
	whitelist_end:   "2026-03-01T02:00:00Z"
	sale_start:      "2026-03-01T03:00:00Z"
	sale_end:        "2026-03-01T04:00:00Z"

	token_raised_amount: "1000"
	token_sale_rate: {numerator: 1, denominator: 10}
	sale: {kind: "shared", min: "10", max: "200"}
}

tiers: {
	Tier0: {min_point: "0"}
	Tier1: {min_point: "100", tickets: [{days: 30, count: 2}, {days: 0, count: 1}]}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "projects.cue"), []byte(spec), 0644))

	errs, projects, err := ValidateSpecsDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, projects)

	got := map[string]string{}
	for _, e := range errs {
		got[e.Code] = e.Field
	}
	assert.Equal(t, "projects[0].whitelist_end", got[compiler.ErrProjectWindowOrder])
	assert.Equal(t, "projects[1].name", got[compiler.ErrDuplicateName])
	assert.Equal(t, "levels[1].tickets[1].days", got[compiler.ErrTierStaircase])
}

func TestValidateMissingDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/specs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

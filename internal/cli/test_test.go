package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGolden    = "../harness/testdata/golden"
)

func TestTestCommandAllScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), harnessScenarios)
	require.NoError(t, err, out)

	for _, name := range []string{"balance_gate", "lottery_eligibility", "phase_guards", "shared_pool_bounds"} {
		assert.Contains(t, out, "✓ "+name)
	}
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), harnessScenarios, "--filter", "*_gate")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "balance_gate", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandSingleFile(t *testing.T) {
	file := filepath.Join(harnessScenarios, "phase_guards.yaml")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), file)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ phase_guards")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "phase_guards.golden"), []byte("req-1 1 create_project ok\n"), 0644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}),
		filepath.Join(harnessScenarios, "phase_guards.yaml"), "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "trace does not match golden file")
}

func TestTestCommandUpdate(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden")

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		harnessScenarios, "--filter", "shared_*", "--golden", golden, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ shared_pool_bounds (golden updated)")

	written, err := os.ReadFile(filepath.Join(golden, "shared_pool_bounds.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(harnessGolden, "shared_pool_bounds.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	// The regenerated trace passes against itself.
	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		harnessScenarios, "--filter", "shared_*", "--golden", golden)
	require.NoError(t, err)
}

func TestTestCommandWithoutGolden(t *testing.T) {
	// Missing golden files leave only the scenario assertions.
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		harnessScenarios, "--golden", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingPath(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios not found")
}

func TestTestCommandBrokenScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [unclosed\n"), 0644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFindScenarioFiles(t *testing.T) {
	files, err := findScenarioFiles(harnessScenarios, "")
	require.NoError(t, err)
	assert.Len(t, files, 4)

	files, err = findScenarioFiles(harnessScenarios, "lottery_*")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "lottery_eligibility.yaml", filepath.Base(files[0]))

	_, err = findScenarioFiles(harnessScenarios, "[")
	assert.Error(t, err)
}

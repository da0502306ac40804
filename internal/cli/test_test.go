package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenariosDir = filepath.Join("testdata", "scenarios")

// copyScenarios lays out the counter fixture and its scenarios in a temp
// dir so golden files can be written.
func copyScenarios(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "counter.car", mustRead(t, counterPath))
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writeFile(t, dir, "counter_flow.yaml", mustRead(t, filepath.Join(scenariosDir, "counter_flow.yaml")))
	return dir
}

func TestTest_Passes(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ counter_flow")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTest_UpdateThenCompareGolden(t *testing.T) {
	dir := copyScenarios(t)

	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	goldenPath := filepath.Join(dir, "golden", "counter_flow.golden")
	require.FileExists(t, goldenPath)
	assert.Contains(t, mustRead(t, goldenPath), `"scenario_name":"counter_flow"`)

	_, _, err = execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"stale":true}`), 0o644))
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_FailingScenarioJSON(t *testing.T) {
	dir := copyScenarios(t)
	writeFile(t, dir, "wrong.yaml", `name: wrong
description: Expects the wrong count
source: ../counter.car
flow:
  - invoke: inc
  - invoke: get
    expect:
      result: 9
`)

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
}

func TestTest_Filter(t *testing.T) {
	dir := copyScenarios(t)
	writeFile(t, dir, "other.yaml", "name: other\n")

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--filter", "counter_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
}

func TestTest_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nflwo: []\n")

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "failed to load scenario")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_NoScenarios(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

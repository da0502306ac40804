package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var modulesDir = filepath.Join("testdata", "modules")

func TestValidate_ValidModules(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), modulesDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 unit(s) valid")
}

func TestValidate_ValidModulesJSON(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), modulesDir)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Len(t, result.Units, 2)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Cycles)
}

func TestValidate_UnresolvedCall(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "registry.car", mustRead(t, filepath.Join(modulesDir, "registry.car")))
	writeFile(t, dir, "notary.car", `protocol Notary {
  import Registry;
  using Registry as reg;
  method notarize(text: string) { reg.erase(params.text); }
}`)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E102")
	assert.Contains(t, out, "Unknown method 'Registry.erase'")
	assert.Contains(t, out, "✗ validation failed: 0 load error(s), 1 unresolved call(s)")
}

func TestValidate_CollectsAllLoadErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.car", "protocol A { state { x int; } }")
	writeFile(t, dir, "b.car", "protocol B { method m() { } method m() { } }")
	writeFile(t, dir, "c.json", `{"protocol": 7}`)
	writeFile(t, dir, "ok.car", "protocol Ok { method m() { } }")

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{filepath.Join(dir, "ok.car")}, result.Units)

	codes := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		codes[i] = e.Code
	}
	assert.Equal(t, []string{ErrCodeLoadFailed, ErrCodeValidation, ErrCodeSchema}, codes)
}

func TestValidate_ImportCycleIsWarning(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.car", "protocol A { import B; method m() { } }")
	writeFile(t, dir, "b.car", "protocol B { import A; method m() { } }")

	out, errOut, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 unit(s) valid")
	assert.Contains(t, errOut, "warning: import cycle")
}

func TestValidate_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), filepath.Join(dir, "empty"))
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNoFiles)
}

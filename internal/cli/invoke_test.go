package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registrySource = `protocol Registry {
  state { last: string; }
  event Touched(by: string);
  method touch() {
    state.last = ctx.sender;
    emit Touched(ctx.sender);
  }
}`

func TestInvoke_InitialState(t *testing.T) {
	out, _, err := execute(NewInvokeCommand(&RootOptions{Format: "text"}), counterPath, "add", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Counter.add(4) -> ok")
	assert.Contains(t, out, "  emit Changed(4)")
}

func TestInvoke_StateFile(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")

	for range 2 {
		_, _, err := execute(NewInvokeCommand(&RootOptions{Format: "text"}), counterPath, "inc", "--state", statePath)
		require.NoError(t, err)
	}

	var snapshot map[string]string
	require.NoError(t, json.Unmarshal([]byte(mustRead(t, statePath)), &snapshot))
	assert.Equal(t, map[string]string{"count": "2"}, snapshot)

	out, _, err := execute(NewInvokeCommand(&RootOptions{Format: "json"}), counterPath, "get", "--state", statePath)
	require.NoError(t, err)

	var result InvokeResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "2", result.Result)
	assert.Empty(t, result.Events)
}

func TestInvoke_FaultLeavesStateFile(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"count": "7"}`), 0o644))

	out, _, err := execute(NewInvokeCommand(&RootOptions{Format: "json"}), counterPath, "add", "--state", statePath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result InvokeResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeRuntimeFault, resp.Error.Code)
	require.NotNil(t, result.Fault)
	assert.Equal(t, "MISSING_ARGUMENT", result.Fault.Code)
	assert.Equal(t, "7", result.State["count"])

	assert.JSONEq(t, `{"count": "7"}`, mustRead(t, statePath))
}

func TestInvoke_UnknownMethodText(t *testing.T) {
	out, _, err := execute(NewInvokeCommand(&RootOptions{Format: "text"}), counterPath, "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Counter.nope faulted: UNKNOWN_METHOD")
}

func TestInvoke_Database(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cardity.db")

	for _, n := range []string{"2", "3"} {
		_, _, err := execute(NewInvokeCommand(&RootOptions{Format: "text"}), counterPath, "add", n, "--db", dbPath)
		require.NoError(t, err)
	}

	out, _, err := execute(NewInvokeCommand(&RootOptions{Format: "json"}), counterPath, "get", "--db", dbPath)
	require.NoError(t, err)

	var result InvokeResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "5", result.Result)
	assert.NotEmpty(t, result.InvocationID)
	assert.Equal(t, int64(4), result.Seq, "deploy takes seq 1, then one per invocation")
}

func TestInvoke_Ctx(t *testing.T) {
	src := writeFile(t, t.TempDir(), "registry.car", registrySource)

	out, _, err := execute(NewInvokeCommand(&RootOptions{Format: "json"}), src, "touch", "--ctx", "sender=doge1alice")
	require.NoError(t, err)

	var result InvokeResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Events, 1)
	assert.Equal(t, EventOut{Name: "Touched", Values: []string{"doge1alice"}}, result.Events[0])
	assert.Equal(t, "doge1alice", result.State["last"])
}

func TestInvoke_DatabaseAndStateExclusive(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(NewInvokeCommand(&RootOptions{Format: "text"}), counterPath, "inc",
		"--db", filepath.Join(dir, "a.db"), "--state", filepath.Join(dir, "s.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestInvoke_MissingUnit(t *testing.T) {
	_, _, err := execute(NewInvokeCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "none.car"), "inc")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

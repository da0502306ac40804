package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace_Timeline(t *testing.T) {
	dbPath := seedDatabase(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)

	var result TraceResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Timeline, 2)

	first, second := result.Timeline[0], result.Timeline[1]
	assert.Equal(t, "inc", first.Method)
	assert.Equal(t, "Changed", first.Name)
	assert.Equal(t, []string{"1"}, first.Values)
	assert.Equal(t, "add", second.Method)
	assert.Equal(t, []string{"6"}, second.Values)
	assert.Less(t, first.Seq, second.Seq)
	assert.Equal(t, 2, result.Stats.Events)
	assert.Equal(t, 2, result.Stats.Invocations)
}

func TestTrace_UnitStatsCountFaults(t *testing.T) {
	dbPath := seedDatabase(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--unit", unitHashOf(t, counterPath))
	require.NoError(t, err)

	var result TraceResult
	decodeResponse(t, out, &result)
	assert.Equal(t, TraceStats{Events: 2, Invocations: 3, Faulted: 1}, result.Stats)
}

func TestTrace_Filters(t *testing.T) {
	dbPath := seedDatabase(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"by method", []string{"--method", "add"}, 1},
		{"by event", []string{"--event", "Changed"}, 2},
		{"unknown event", []string{"--event", "Nope"}, 0},
		{"unknown invocation", []string{"--invocation", "missing"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", dbPath}, tt.args...)
			out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), args...)
			require.NoError(t, err)

			var result TraceResult
			decodeResponse(t, out, &result)
			assert.Len(t, result.Timeline, tt.want)
		})
	}
}

func TestTrace_Text(t *testing.T) {
	dbPath := seedDatabase(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Changed(1)")
	assert.Contains(t, out, "Changed(6)")
	assert.Contains(t, out, "2 event(s) from 2 invocation(s)")

	out, _, err = execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--event", "Nope")
	require.NoError(t, err)
	assert.Contains(t, out, "No events found.")
}

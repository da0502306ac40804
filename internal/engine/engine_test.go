package engine

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardity-org/cardity-core/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestEngine deploys counterSource into a fresh store.
func newTestEngine(t *testing.T, ids ...string) (*Engine, *store.Store, *Unit) {
	t.Helper()
	s := openStore(t)
	e, err := New(context.Background(), s, WithIDGenerator(NewFixedGenerator(ids...)))
	require.NoError(t, err)
	u := loadSource(t, counterSource)
	require.NoError(t, e.Deploy(context.Background(), u))
	return e, s, u
}

func TestEngine_InvokePersists(t *testing.T) {
	ctx := context.Background()
	e, s, u := newTestEngine(t, "inv-1", "inv-2")

	res, err := e.Invoke(ctx, Request{UnitHash: u.Hash, Method: "inc"})
	require.NoError(t, err)
	assert.Nil(t, res.Fault)
	assert.Equal(t, "inv-1", res.InvocationID)
	assert.Equal(t, int64(2), res.Seq, "deploy takes seq 1")
	assert.Equal(t, EventLog{{Name: "Changed", Values: []string{"1"}}}, res.Events)

	res, err = e.Invoke(ctx, Request{UnitHash: u.Hash, Method: "get", Ctx: map[string]string{"txid": "tx-9"}})
	require.NoError(t, err)
	assert.Equal(t, "1", res.Output)

	snap, found, err := s.ReadState(ctx, u.Hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", snap["count"])

	invs, err := s.ReadInvocations(ctx, u.Hash)
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, "inv-1", invs[0].Ctx["txid"], "txid defaults to the invocation id")
	assert.Equal(t, "tx-9", invs[1].Ctx["txid"])
	assert.NotEmpty(t, invs[0].StateHash)

	events, err := s.ReadEvents(ctx, store.EventFilter{UnitHash: u.Hash, Name: "Changed"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"1"}, events[0].Values)
}

func TestEngine_FaultRecordedStateUntouched(t *testing.T) {
	ctx := context.Background()
	e, s, u := newTestEngine(t, "inv-1", "inv-2")

	_, err := e.Invoke(ctx, Request{UnitHash: u.Hash, Method: "inc"})
	require.NoError(t, err)

	res, err := e.Invoke(ctx, Request{UnitHash: u.Hash, Method: "missing"})
	require.NoError(t, err, "runtime faults are results, not errors")
	require.NotNil(t, res.Fault)
	assert.Equal(t, ErrCodeUnknownMethod, res.Fault.Code)
	assert.Equal(t, "1", res.State["count"])

	inv, found, err := s.ReadInvocation(ctx, "inv-2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, store.StatusFault, inv.Status)
	assert.Contains(t, inv.Error, "Method not found: missing")

	snap, _, err := s.ReadState(ctx, u.Hash)
	require.NoError(t, err)
	assert.Equal(t, "1", snap["count"])
}

func TestEngine_FaultBeforeAnySnapshot(t *testing.T) {
	ctx := context.Background()
	e, s, u := newTestEngine(t, "inv-1")

	res, err := e.Invoke(ctx, Request{UnitHash: u.Hash, Method: "credit"})
	require.NoError(t, err)
	require.NotNil(t, res.Fault)
	assert.Equal(t, ErrCodeMissingArgument, res.Fault.Code)
	assert.Equal(t, "0", res.State["count"])

	_, found, err := s.ReadState(ctx, u.Hash)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEngine_IndexWithSeparatorSurvivesRestore(t *testing.T) {
	ctx := context.Background()
	e, s, u := newTestEngine(t, "inv-1", "inv-2", "inv-3")

	for _, id := range []string{"inv-1", "inv-2"} {
		res, err := e.Invoke(ctx, Request{UnitHash: u.Hash, Method: "credit", Args: []string{"alice@doge", "5"}})
		require.NoError(t, err)
		require.Nil(t, res.Fault, id)
	}

	res, err := e.Invoke(ctx, Request{UnitHash: u.Hash, Method: "balance", Args: []string{"alice@doge"}})
	require.NoError(t, err)
	require.Nil(t, res.Fault)
	assert.Equal(t, "10", res.Output)

	snap, _, err := s.ReadState(ctx, u.Hash)
	require.NoError(t, err)
	assert.Equal(t, "10", snap["balances@alice%40doge"])
	assert.NotContains(t, snap, "balances@alice@doge")
	assert.NotContains(t, snap, "balances@alice")
}

func TestEngine_UnknownUnit(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.Invoke(context.Background(), Request{UnitHash: "nope", Method: "inc"})
	assert.ErrorIs(t, err, ErrUnitNotFound)
}

func TestEngine_DeployIdempotent(t *testing.T) {
	ctx := context.Background()
	e, s, u := newTestEngine(t)

	require.NoError(t, e.Deploy(ctx, u))
	units, err := s.ReadUnits(ctx)
	require.NoError(t, err)
	assert.Len(t, units, 1)
	assert.Equal(t, int64(1), e.Clock().Current())
}

func TestEngine_ResumesClockAndLoadsUnit(t *testing.T) {
	ctx := context.Background()
	e, s, u := newTestEngine(t, "inv-1")
	_, err := e.Invoke(ctx, Request{UnitHash: u.Hash, Method: "inc"})
	require.NoError(t, err)

	// A second engine over the same store sees the deployed unit and
	// continues the clock.
	e2, err := New(ctx, s, WithIDGenerator(NewFixedGenerator("inv-2")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), e2.Clock().Current())

	res, err := e2.Invoke(ctx, Request{UnitHash: u.Hash, Method: "inc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Seq)
	assert.Equal(t, "2", res.State["count"])
}

func TestEngine_RunSubmit(t *testing.T) {
	e, _, u := newTestEngine(t, "a", "b", "c")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	for i := 1; i <= 3; i++ {
		res, err := e.Submit(ctx, Request{UnitHash: u.Hash, Method: "inc"})
		require.NoError(t, err)
		assert.Equal(t, []string{strconv.Itoa(i)}, res.Events[0].Values)
	}

	e.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err := e.Submit(ctx, Request{UnitHash: u.Hash, Method: "inc"})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e, _, _ := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

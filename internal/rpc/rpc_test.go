package rpc_test

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/cardity-org/cardity-core/internal/engine"
	"github.com/cardity-org/cardity-core/internal/rpc"
	"github.com/cardity-org/cardity-core/internal/testutil"
)

// startServer runs an engine and a gRPC server on a random port. Both
// stop at test cleanup.
func startServer(t *testing.T) string {
	t.Helper()

	st := testutil.OpenStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	eng, err := engine.New(ctx, st, engine.WithIDGenerator(testutil.NewSequentialIDs("inv")))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := grpc.NewServer()
	rpc.NewServer(eng, nil).Register(gs)
	go func() {
		_ = gs.Serve(lis) // Ignore errors from graceful stop.
	}()

	t.Cleanup(func() {
		gs.GracefulStop()
		cancel()
		<-done
	})
	return lis.Addr().String()
}

func dial(t *testing.T, addr string) *rpc.Client {
	t.Helper()
	client, err := rpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRPC_CompileDeployInvoke(t *testing.T) {
	client := dial(t, startServer(t))
	ctx := testCtx(t)

	compiled, err := client.Compile(ctx, "counter.car", testutil.CounterSource)
	require.NoError(t, err)
	assert.Equal(t, "Counter", compiled.Protocol)
	assert.NotEmpty(t, compiled.UnitHash)
	assert.NotEmpty(t, compiled.Binary)
	assert.True(t, json.Valid(compiled.IR))

	deployed, err := client.Deploy(ctx, compiled.IR)
	require.NoError(t, err)
	assert.Equal(t, compiled.UnitHash, deployed.UnitHash)
	assert.Equal(t, []string{"add", "credit", "get", "inc"}, deployed.Methods)

	res, err := client.Invoke(ctx, deployed.UnitHash, "add", []string{"4"}, map[string]string{"sender": "doge1alice"})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", res.InvocationID)
	assert.Equal(t, "ok", res.Output)
	assert.Empty(t, res.FaultCode)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Changed", res.Events[0].Name)
	assert.Equal(t, []string{"4"}, res.Events[0].Values)
	assert.Equal(t, "4", rpc.EntryMap(res.State)["count"])

	res, err = client.Invoke(ctx, deployed.UnitHash, "get", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "4", res.Output)
	assert.Greater(t, res.Seq, int64(0))
}

func TestRPC_InvokeFault(t *testing.T) {
	client := dial(t, startServer(t))
	ctx := testCtx(t)

	compiled, err := client.Compile(ctx, "counter.car", testutil.CounterSource)
	require.NoError(t, err)
	deployed, err := client.Deploy(ctx, compiled.IR)
	require.NoError(t, err)

	res, err := client.Invoke(ctx, deployed.UnitHash, "nope", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN_METHOD", res.FaultCode)
	assert.Contains(t, res.FaultMessage, "nope")
	assert.Empty(t, res.Events)
}

func TestRPC_Errors(t *testing.T) {
	client := dial(t, startServer(t))
	ctx := testCtx(t)

	_, err := client.Compile(ctx, "bad.car", "protocol {")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.DeriveABI(ctx, []byte(`{"p":"nope"}`))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Invoke(ctx, "missing", "inc", nil, nil)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRPC_DeriveABI(t *testing.T) {
	client := dial(t, startServer(t))
	ctx := testCtx(t)

	compiled, err := client.Compile(ctx, "counter.car", testutil.CounterSource)
	require.NoError(t, err)

	data, err := client.DeriveABI(ctx, compiled.IR)
	require.NoError(t, err)

	var doc struct {
		Protocol string                    `json:"protocol"`
		Methods  map[string]map[string]any `json:"methods"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Counter", doc.Protocol)
	assert.Contains(t, doc.Methods, "credit")
	assert.Equal(t, "int", doc.Methods["get"]["returns"])
}

func TestCodec_Deterministic(t *testing.T) {
	c := rpc.CramberryCodec{}
	msg := &rpc.InvokeRequest{
		UnitHash: "h",
		Method:   "m",
		Args:     []string{"1", "2"},
		Ctx:      rpc.Entries(map[string]string{"z": "1", "a": "2"}),
	}
	first, err := c.Marshal(msg)
	require.NoError(t, err)
	second, err := c.Marshal(msg)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var back rpc.InvokeRequest
	require.NoError(t, c.Unmarshal(first, &back))
	assert.Equal(t, *msg, back)
	assert.Equal(t, "cramberry", c.Name())
}

func TestEntries_Sorted(t *testing.T) {
	entries := rpc.Entries(map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, []rpc.Entry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, entries)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, rpc.EntryMap(entries))
	assert.Empty(t, rpc.Entries(nil))
}

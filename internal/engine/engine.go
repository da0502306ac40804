package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"

	"github.com/cardity-org/cardity-core/internal/ir"
	"github.com/cardity-org/cardity-core/internal/store"
)

// ErrStopped is returned by Submit once the engine has shut down.
var ErrStopped = errors.New("engine stopped")

// ErrUnitNotFound is returned for a unit hash that was never deployed.
var ErrUnitNotFound = errors.New("unit not deployed")

// Request asks for one method invocation against a deployed unit.
type Request struct {
	UnitHash string
	Method   string
	Args     []string
	Ctx      map[string]string
}

// Result is the outcome of a committed invocation. A faulted invocation
// has Fault set, no Events, and State equal to the snapshot before the call.
type Result struct {
	InvocationID string
	Seq          int64
	UnitHash     string
	Output       string
	Events       EventLog
	State        map[string]string
	Fault        *RuntimeError
}

// Engine runs invocations against units persisted in a store.
//
// Thread-safety model:
//   - Submit, Deploy: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Invoke: the writer path; call it from Run's goroutine, or directly
//     when Run is not in use (one-shot CLI commands)
//
// Each invocation loads the unit's snapshot, executes, and commits the
// invocation, its events and the new snapshot in one transaction.
type Engine struct {
	store  *store.Store
	clock  *Clock
	ids    IDGenerator
	queue  *requestQueue
	logger *slog.Logger

	mu    sync.Mutex
	units map[string]*Unit
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the clock. By default the clock resumes after the
// store's highest recorded seq.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator replaces the invocation ID generator (default UUIDv7).
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine over s.
func New(ctx context.Context, s *store.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store: s,
		ids:   UUIDv7Generator{},
		queue: newRequestQueue(),
		units: make(map[string]*Unit),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.clock == nil {
		seq, err := s.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("new engine: %w", err)
		}
		e.clock = NewClockAt(seq)
	}
	return e, nil
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock { return e.clock }

// Deploy records u in the store. Deploying the same content twice is a no-op.
func (e *Engine) Deploy(ctx context.Context, u *Unit) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.units[u.Hash]; ok {
		return nil
	}
	_, found, err := e.store.ReadUnit(ctx, u.Hash)
	if err != nil {
		return fmt.Errorf("deploy %s: %w", u.Name, err)
	}
	if !found {
		doc, err := ir.CanonicalJSON(u.Doc)
		if err != nil {
			return fmt.Errorf("deploy %s: %w", u.Name, err)
		}
		rec := store.Unit{
			Hash:     u.Hash,
			Protocol: u.Name,
			Version:  u.Version,
			Document: string(doc),
			Seq:      e.clock.Next(),
		}
		if err := e.store.WriteUnit(ctx, rec); err != nil {
			return fmt.Errorf("deploy %s: %w", u.Name, err)
		}
		e.logger.Info("unit deployed", "protocol", u.Name, "hash", u.Hash, "seq", rec.Seq)
	}
	e.units[u.Hash] = u
	return nil
}

// Unit returns a deployed unit, loading it from the store on first use.
func (e *Engine) Unit(ctx context.Context, hash string) (*Unit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if u, ok := e.units[hash]; ok {
		return u, nil
	}
	rec, found, err := e.store.ReadUnit(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("load unit %s: %w", hash, err)
	}
	if !found {
		return nil, fmt.Errorf("load unit %s: %w", hash, ErrUnitNotFound)
	}
	u, err := LoadJSON(rec.Protocol, []byte(rec.Document))
	if err != nil {
		return nil, fmt.Errorf("load unit %s: %w", hash, err)
	}
	// Keep the hash the unit was deployed under; state rows reference it.
	u.Hash = hash
	e.units[hash] = u
	return u, nil
}

// Invoke executes and commits one request. Runtime faults are reported in
// Result.Fault; the error return is reserved for infrastructure failures.
func (e *Engine) Invoke(ctx context.Context, req Request) (*Result, error) {
	u, err := e.Unit(ctx, req.UnitHash)
	if err != nil {
		return nil, err
	}
	before, found, err := e.store.ReadState(ctx, u.Hash)
	if err != nil {
		return nil, fmt.Errorf("invoke %s.%s: %w", u.Name, req.Method, err)
	}
	st := u.InitializeState()
	if found {
		st.Restore(before)
	}

	id := e.ids.Generate()
	callCtx := map[string]string{}
	maps.Copy(callCtx, req.Ctx)
	if _, ok := callCtx["txid"]; !ok {
		callCtx["txid"] = id
	}
	args := req.Args
	if args == nil {
		args = []string{}
	}
	seq := e.clock.Next()

	e.logger.Debug("invoking", "id", id, "protocol", u.Name, "method", req.Method, "seq", seq)

	var log EventLog
	out, err := Invoke(u, st, &log, req.Method, args, callCtx)

	res := &Result{InvocationID: id, Seq: seq, UnitHash: u.Hash}
	inv := store.Invocation{
		ID:            id,
		Seq:           seq,
		UnitHash:      u.Hash,
		Method:        req.Method,
		Args:          args,
		Ctx:           callCtx,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	var events []store.Event

	var fault *RuntimeError
	switch {
	case err == nil:
		res.Output = out
		res.Events = log
		res.State = st.Snapshot()
		inv.Status = store.StatusOK
		inv.Result = out
		if inv.StateHash, err = ir.StateHash(res.State); err != nil {
			return nil, fmt.Errorf("invoke %s.%s: %w", u.Name, req.Method, err)
		}
		for _, ev := range log {
			events = append(events, store.Event{Name: ev.Name, Values: ev.Values})
		}
	case errors.As(err, &fault):
		res.Fault = fault
		res.State = before
		if !found {
			res.State = u.InitializeState().Snapshot()
		}
		inv.Status = store.StatusFault
		inv.Error = fault.Error()
	default:
		return nil, fmt.Errorf("invoke %s.%s: %w", u.Name, req.Method, err)
	}

	if _, err := e.store.CommitInvocation(ctx, inv, events, res.State); err != nil {
		return nil, fmt.Errorf("invoke %s.%s: %w", u.Name, req.Method, err)
	}

	if fault != nil {
		e.logger.Info("invocation faulted", "id", id, "method", req.Method, "code", fault.Code, "error", fault.Message)
	} else {
		e.logger.Info("invocation committed", "id", id, "method", req.Method, "result", out, "events", len(log))
	}
	return res, nil
}

// Submit queues req for the Run loop and waits for its result.
func (e *Engine) Submit(ctx context.Context, req Request) (*Result, error) {
	p := &pending{req: req, reply: make(chan reply, 1)}
	if !e.queue.Enqueue(p) {
		return nil, ErrStopped
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-p.reply:
		return r.res, r.err
	}
}

// Run starts the single-writer loop.
// Blocks until ctx is cancelled or Stop is called.
//
// A request that fails is answered with its error and the loop continues.
// Requests still queued at shutdown are answered with ErrStopped.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "seq", e.clock.Current())
	defer e.drain()

	for {
		if p, ok := e.queue.TryDequeue(); ok {
			res, err := e.Invoke(ctx, p.req)
			if err != nil {
				e.logger.Error("invocation failed", "unit", p.req.UnitHash, "method", p.req.Method, "error", err)
			}
			p.reply <- reply{res: res, err: err}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue, which makes Run return once it is empty.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) drain() {
	for {
		p, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		p.reply <- reply{err: ErrStopped}
	}
}

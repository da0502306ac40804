package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardity-org/cardity-core/internal/engine"
	"github.com/cardity-org/cardity-core/internal/store"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Database string            // SQLite store; mutually exclusive with State
	State    string            // flat JSON snapshot file
	Ctx      map[string]string // execution context
}

// InvokeResult is the outcome of one invocation.
type InvokeResult struct {
	Protocol     string            `json:"protocol"`
	UnitHash     string            `json:"unit_hash"`
	Method       string            `json:"method"`
	Args         []string          `json:"args"`
	InvocationID string            `json:"invocation_id,omitempty"`
	Seq          int64             `json:"seq,omitempty"`
	Result       string            `json:"result,omitempty"`
	Events       []EventOut        `json:"events"`
	State        map[string]string `json:"state"`
	Fault        *FaultOut         `json:"fault,omitempty"`
}

// EventOut is one emitted event.
type EventOut struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// FaultOut describes a runtime fault.
type FaultOut struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <unit-file> <method> [args...]",
		Short: "Invoke a protocol method",
		Long: `Invoke one method of a unit with positional arguments.

State comes from one of:
  --db     a SQLite store; the unit is deployed on first use, its latest
           snapshot is loaded, and a successful call commits the new
           snapshot, its events and the invocation in one transaction
  --state  a flat JSON snapshot ({"count": "3", "balances@alice": "5"}),
           rewritten after a successful call
  neither  the declared initial state, discarded afterwards

A runtime fault exits with code 1 and leaves state untouched.

Examples:
  cardity invoke counter.car inc --db ./cardity.db --ctx sender=doge1abc
  cardity invoke token.json transfer doge1bob 5 --state state.json`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.State, "state", "", "path to a flat JSON state snapshot")
	cmd.Flags().StringToStringVar(&opts.Ctx, "ctx", nil, "execution context entries (key=value)")
	cmd.MarkFlagsMutuallyExclusive("db", "state")

	return cmd
}

func runInvoke(opts *InvokeOptions, path, method string, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	doc, err := LoadDocument(path)
	if err != nil {
		return formatter.fail(ExitCommandError, errorCode(err), err)
	}
	u, err := engine.Load(doc)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
	}

	var result *InvokeResult
	if opts.Database != "" {
		result, err = invokeWithStore(commandContext(cmd), opts, u, method, args)
	} else {
		result, err = invokeWithFile(opts, u, method, args)
	}
	if err != nil {
		return formatter.fail(ExitCommandError, errorCode(err), err)
	}

	if result.Fault != nil {
		msg := fmt.Sprintf("%s: %s", result.Fault.Code, result.Fault.Message)
		if formatter.JSON() {
			_ = formatter.Failure(ErrCodeRuntimeFault, msg, result)
		} else {
			fmt.Fprintf(formatter.Writer, "✗ %s.%s faulted: %s\n", result.Protocol, method, msg)
		}
		return NewExitError(ExitFailure, msg)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputInvokeText(formatter, result)
	return nil
}

// invokeWithStore runs the call through the engine so it is committed to
// the store's invocation and event logs.
func invokeWithStore(ctx context.Context, opts *InvokeOptions, u *engine.Unit, method string, args []string) (*InvokeResult, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Path: opts.Database, Message: err.Error()}
	}
	defer st.Close()

	eng, err := engine.New(ctx, st, engine.WithLogger(slog.Default()))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Path: opts.Database, Message: err.Error()}
	}
	if err := eng.Deploy(ctx, u); err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Path: opts.Database, Message: err.Error()}
	}
	res, err := eng.Invoke(ctx, engine.Request{UnitHash: u.Hash, Method: method, Args: args, Ctx: opts.Ctx})
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Path: opts.Database, Message: err.Error()}
	}

	out := newInvokeResult(u, method, args)
	out.InvocationID = res.InvocationID
	out.Seq = res.Seq
	out.Result = res.Output
	out.State = res.State
	out.Events = eventsOut(res.Events)
	if res.Fault != nil {
		out.Fault = &FaultOut{Code: string(res.Fault.Code), Message: res.Fault.Message}
	}
	return out, nil
}

// invokeWithFile runs the call against a JSON snapshot file, or against
// the initial state when no file is given.
func invokeWithFile(opts *InvokeOptions, u *engine.Unit, method string, args []string) (*InvokeResult, error) {
	snapshot, err := readSnapshot(opts.State)
	if err != nil {
		return nil, err
	}
	st := u.Restore(snapshot)

	callCtx := opts.Ctx
	if callCtx == nil {
		callCtx = map[string]string{}
	}
	var log engine.EventLog
	output, err := engine.Invoke(u, st, &log, method, args, callCtx)

	out := newInvokeResult(u, method, args)
	var fault *engine.RuntimeError
	switch {
	case errors.As(err, &fault):
		out.Fault = &FaultOut{Code: string(fault.Code), Message: fault.Message}
		out.State = u.Restore(snapshot).Snapshot()
		return out, nil
	case err != nil:
		return nil, err
	}

	out.Result = output
	out.Events = eventsOut(log)
	out.State = st.Snapshot()
	if opts.State != "" {
		if err := writeSnapshot(opts.State, out.State); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func newInvokeResult(u *engine.Unit, method string, args []string) *InvokeResult {
	if args == nil {
		args = []string{}
	}
	return &InvokeResult{
		Protocol: u.Name,
		UnitHash: u.Hash,
		Method:   method,
		Args:     args,
		Events:   []EventOut{},
	}
}

func eventsOut(log engine.EventLog) []EventOut {
	out := make([]EventOut, 0, len(log))
	for _, ev := range log {
		out = append(out, EventOut{Name: ev.Name, Values: ev.Values})
	}
	return out
}

// readSnapshot loads a flat JSON snapshot. A missing file is an empty
// snapshot so the first call can create it.
func readSnapshot(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, loadErrorFrom(path, err)
	}
	var snapshot map[string]string
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Path: path, Message: fmt.Sprintf("invalid state snapshot: %v", err)}
	}
	return snapshot, nil
}

func writeSnapshot(path string, snapshot map[string]string) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return &LoadError{Code: ErrCodeWriteFailed, Path: path, Message: err.Error()}
	}
	return nil
}

func outputInvokeText(f *OutputFormatter, r *InvokeResult) {
	w := f.Writer
	fmt.Fprintf(w, "✓ %s.%s(%s) -> %s\n", r.Protocol, r.Method, strings.Join(r.Args, ", "), r.Result)
	for _, ev := range r.Events {
		fmt.Fprintf(w, "  emit %s(%s)\n", ev.Name, strings.Join(ev.Values, ", "))
	}
	if r.InvocationID != "" {
		f.VerboseLog("invocation %s at seq %d", r.InvocationID, r.Seq)
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (tests calling RunE directly).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardity-org/cardity-core/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database     string
	UnitHash     string
	InvocationID string
	Method       string
	Event        string
}

// TraceEvent is one row of the event timeline.
type TraceEvent struct {
	Seq          int64    `json:"seq"`
	InvocationID string   `json:"invocation_id"`
	Method       string   `json:"method"`
	Index        int      `json:"index"`
	Name         string   `json:"name"`
	Values       []string `json:"values"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Events      int `json:"events"`
	Invocations int `json:"invocations"`
	Faulted     int `json:"faulted"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the event log",
		Long: `Print the committed event log in seq order.

Filters combine: --unit restricts to one deployed unit, --invocation to a
single invocation, --method to invocations of one method and --event to
one event name.

Examples:
  cardity trace --db ./cardity.db
  cardity trace --db ./cardity.db --unit 3f2a... --event Transfer
  cardity trace --db ./cardity.db --method mint --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.UnitHash, "unit", "", "filter to one unit hash")
	cmd.Flags().StringVar(&opts.InvocationID, "invocation", "", "filter to one invocation id")
	cmd.Flags().StringVar(&opts.Method, "method", "", "filter to invocations of a method")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter to an event name")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, errorCode(err), err)
	}
	defer st.Close()

	events, err := st.ReadEvents(ctx, store.EventFilter{
		UnitHash:     opts.UnitHash,
		InvocationID: opts.InvocationID,
		Method:       opts.Method,
		Name:         opts.Event,
	})
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDatabase, err)
	}

	result := TraceResult{Timeline: make([]TraceEvent, 0, len(events))}
	methods := map[string]string{}
	for _, ev := range events {
		method, ok := methods[ev.InvocationID]
		if !ok {
			inv, found, err := st.ReadInvocation(ctx, ev.InvocationID)
			if err != nil {
				return formatter.fail(ExitCommandError, ErrCodeDatabase, err)
			}
			if found {
				method = inv.Method
			}
			methods[ev.InvocationID] = method
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:          ev.Seq,
			InvocationID: ev.InvocationID,
			Method:       method,
			Index:        ev.Idx,
			Name:         ev.Name,
			Values:       ev.Values,
		})
	}
	result.Stats.Events = len(result.Timeline)

	if opts.UnitHash != "" {
		invs, err := st.ReadInvocations(ctx, opts.UnitHash)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, err)
		}
		result.Stats.Invocations = len(invs)
		for _, inv := range invs {
			if inv.Status == store.StatusFault {
				result.Stats.Faulted++
			}
		}
	} else {
		result.Stats.Invocations = len(methods)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

func outputTraceText(f *OutputFormatter, result TraceResult) error {
	w := f.Writer
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "%6d  %-20s %-12s %s(%s)\n",
			ev.Seq, ev.InvocationID, ev.Method, ev.Name, strings.Join(ev.Values, ", "))
	}
	fmt.Fprintf(w, "\n%d event(s) from %d invocation(s)\n", result.Stats.Events, result.Stats.Invocations)
	return nil
}

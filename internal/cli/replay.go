package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardity-org/cardity-core/internal/engine"
	"github.com/cardity-org/cardity-core/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	UnitHash string // optional - specific unit only
}

// UnitReplay holds the replay result for a single unit.
type UnitReplay struct {
	UnitHash   string            `json:"unit_hash"`
	Protocol   string            `json:"protocol"`
	Replayed   int               `json:"replayed"`
	Skipped    int               `json:"skipped"`
	OK         bool              `json:"ok"`
	Mismatches []string          `json:"mismatches"`
	State      map[string]string `json:"state"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Units []UnitReplay `json:"units"`
	Total int          `json:"total"`
	AllOK bool         `json:"all_ok"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute the invocation log and verify state",
		Long: `Re-execute the recorded successful invocations of each unit from its
initial state, in seq order, and verify that every result, event and
intermediate state hash matches the log and that the final state matches
the persisted snapshot. Faulted invocations are skipped.

Exit codes:
  0 - Every unit reproduced its snapshot
  1 - At least one unit diverged
  2 - Command error (database not found, etc.)

Examples:
  cardity replay --db ./cardity.db
  cardity replay --db ./cardity.db --unit 3f2a...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.UnitHash, "unit", "", "replay only this unit hash")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, errorCode(err), err)
	}
	defer st.Close()

	hashes := []string{opts.UnitHash}
	if opts.UnitHash == "" {
		units, err := st.ReadUnits(ctx)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeDatabase, err)
		}
		hashes = hashes[:0]
		for _, u := range units {
			hashes = append(hashes, u.Hash)
		}
	}

	result := ReplayResult{Units: make([]UnitReplay, 0, len(hashes)), AllOK: true}
	for _, hash := range hashes {
		report, err := engine.Replay(ctx, st, hash)
		if errors.Is(err, engine.ErrUnitNotFound) {
			return formatter.fail(ExitCommandError, ErrCodeNotFound, err)
		}
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
		}
		ur := UnitReplay{
			UnitHash:   report.UnitHash,
			Protocol:   report.Protocol,
			Replayed:   report.Replayed,
			Skipped:    report.Skipped,
			OK:         report.OK(),
			Mismatches: make([]string, 0, len(report.Mismatches)),
			State:      report.Actual,
		}
		for _, m := range report.Mismatches {
			ur.Mismatches = append(ur.Mismatches, m.String())
		}
		result.Units = append(result.Units, ur)
		result.AllOK = result.AllOK && ur.OK
	}
	result.Total = len(result.Units)

	if formatter.JSON() {
		if !result.AllOK {
			_ = formatter.Failure(ErrCodeReplayMismatch, "replay diverged from the log", result)
			return NewExitError(ExitFailure, "replay diverged from the log")
		}
		return formatter.Success(result)
	}
	return outputReplayText(formatter, result)
}

func outputReplayText(f *OutputFormatter, result ReplayResult) error {
	w := f.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No units found.")
		return nil
	}
	for _, u := range result.Units {
		mark := "✓"
		if !u.OK {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s %s: %d replayed, %d skipped\n", mark, u.Protocol, shortHash(u.UnitHash), u.Replayed, u.Skipped)
		for _, m := range u.Mismatches {
			fmt.Fprintf(w, "    %s\n", m)
		}
	}
	if !result.AllOK {
		return NewExitError(ExitFailure, "replay diverged from the log")
	}
	fmt.Fprintf(w, "\n✓ All %d unit(s) reproduced their state\n", result.Total)
	return nil
}

// openExistingStore opens a store that must already exist. store.Open
// would otherwise create an empty database at a mistyped path.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "database not found"}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Path: path, Message: err.Error()}
	}
	return st, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

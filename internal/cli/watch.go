package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/cardity-org/cardity-core/internal/compiler"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	OutDir string
	Binary bool

	// OnCompile is called after every compile attempt (for testing).
	OnCompile func(src string, err error)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return newWatchCommand(&WatchOptions{RootOptions: rootOpts})
}

func newWatchCommand(opts *WatchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Recompile sources when they change",
		Long: `Watch a directory and recompile every .car source when it is created
or written. Output goes next to the source (or into --out) as
<name>.json, or <name>.carc with --binary. Every source is compiled once
at startup. Compile errors are reported and watching continues.

Example:
  cardity watch ./protocols --out ./build`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OutDir, "out", "", "output directory (default: next to each source)")
	cmd.Flags().BoolVar(&opts.Binary, "binary", false, "write CARC instead of JSON IR")

	return cmd
}

func runWatch(opts *WatchOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Errorf("not a directory: %s", dir))
	}
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
	}

	sources, err := filepath.Glob(filepath.Join(dir, "*"+extSource))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeScanError, err)
	}
	for _, src := range sources {
		rebuild(opts, formatter, src)
	}

	fmt.Fprintf(formatter.Writer, "Watching %s\n", dir)
	return watchLoop(ctx, w, opts, formatter)
}

// watchLoop recompiles on create and write events until ctx is done.
func watchLoop(ctx context.Context, w *fsnotify.Watcher, opts *WatchOptions, f *OutputFormatter) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), extSource) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			rebuild(opts, f, ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.Warn("watch: %v", err)
		}
	}
}

// rebuild compiles one source and writes its output file.
func rebuild(opts *WatchOptions, f *OutputFormatter, src string) {
	out, err := compileToFile(src, opts.OutDir, opts.Binary)
	if err != nil {
		fmt.Fprintf(f.Writer, "✗ %v\n", loadErrorFrom(src, err))
	} else {
		fmt.Fprintf(f.Writer, "✓ %s -> %s\n", src, out)
	}
	if opts.OnCompile != nil {
		opts.OnCompile(src, err)
	}
}

// compileToFile compiles src and writes JSON IR or CARC. Returns the
// output path.
func compileToFile(src, outDir string, binary bool) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	res, err := compiler.Compile(src, data)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(src)
	if outDir != "" {
		dir = outDir
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out, payload := filepath.Join(dir, base+extJSON), res.JSON
	if binary {
		out, payload = filepath.Join(dir, base+extBinary), res.Binary
	}
	if err := os.WriteFile(out, payload, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

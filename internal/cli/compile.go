package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardity-org/cardity-core/internal/abi"
	"github.com/cardity-org/cardity-core/internal/compiler"
	"github.com/cardity-org/cardity-core/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Binary bool   // write CARC instead of JSON IR
	ABI    string // optional ABI output path
}

// CompileSummary is the JSON payload of a successful compile.
type CompileSummary struct {
	Protocol string          `json:"protocol"`
	Version  string          `json:"version"`
	UnitHash string          `json:"unit_hash"`
	Methods  int             `json:"methods"`
	State    int             `json:"state_vars"`
	Events   int             `json:"events"`
	Output   string          `json:"output,omitempty"`
	ABI      string          `json:"abi,omitempty"`
	Warnings []string        `json:"warnings"`
	IR       json.RawMessage `json:"ir,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file.car>",
		Short: "Compile a protocol source to JSON IR or CARC",
		Long: `Compile a Cardity protocol source file.

Without --output the JSON IR is printed. With --binary the CARC binary
form is written instead, to --output or to <file>.carc. Parse warnings
and semantic warnings go to stderr and do not fail the build.

Examples:
  cardity compile counter.car
  cardity compile counter.car -o counter.json --abi counter.abi.json
  cardity compile counter.car --binary`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.Binary, "binary", false, "write the CARC binary format")
	cmd.Flags().StringVar(&opts.ABI, "abi", "", "also write the ABI document to this path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	src, err := os.ReadFile(path)
	if err != nil {
		le := loadErrorFrom(path, err)
		return formatter.fail(ExitCommandError, le.Code, le)
	}

	res, err := compiler.Compile(path, src)
	warnings := compileWarnings(res)
	for _, w := range warnings {
		formatter.Warn("%s", w)
	}
	if err != nil {
		le := loadErrorFrom(path, err)
		details := any(nil)
		if res != nil {
			details = res.Warnings
		}
		_ = formatter.Error(le.Code, le.Error(), details)
		if le.Code == ErrCodeValidation {
			return WrapExitError(ExitFailure, "compilation failed", le)
		}
		return WrapExitError(ExitCommandError, "compilation failed", le)
	}

	hash, err := ir.UnitHash(res.Document)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
	}
	summary := CompileSummary{
		Protocol: res.Document.Protocol,
		Version:  res.Document.Version,
		UnitHash: hash,
		Methods:  len(res.Document.CPL.Methods),
		State:    len(res.Document.CPL.State),
		Events:   len(res.Document.CPL.Events),
		Output:   opts.Output,
		ABI:      opts.ABI,
		Warnings: warnings,
	}
	formatter.VerboseLog("Compiled %s: %d method(s), %d state var(s)", summary.Protocol, summary.Methods, summary.State)

	out := res.JSON
	if opts.Binary {
		out = res.Binary
		if summary.Output == "" {
			summary.Output = strings.TrimSuffix(path, extSource) + extBinary
		}
	}

	switch {
	case summary.Output != "":
		if err := writeOutput(formatter, summary.Output, out); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
	case formatter.JSON():
		summary.IR = res.JSON
	default:
		if err := writeOutput(formatter, "", res.JSON); err != nil {
			return err
		}
	}

	if opts.ABI != "" {
		data, err := deriveABI(res.Document)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
		}
		if err := writeOutput(formatter, opts.ABI, data); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}

	if formatter.JSON() {
		return formatter.Success(summary)
	}
	if summary.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Compiled %s v%s (%d method(s), %d state var(s)) -> %s\n",
			summary.Protocol, summary.Version, summary.Methods, summary.State, summary.Output)
	}
	if opts.ABI != "" {
		fmt.Fprintf(formatter.Writer, "Wrote ABI to %s\n", opts.ABI)
	}
	return nil
}

// compileWarnings renders parse diagnostics and semantic warnings.
func compileWarnings(res *compiler.Result) []string {
	warnings := []string{}
	if res == nil {
		return warnings
	}
	for _, d := range res.Diagnostics {
		warnings = append(warnings, fmt.Sprintf("%s:%s", res.Name, d))
	}
	for _, w := range res.Warnings {
		warnings = append(warnings, fmt.Sprintf("%s: %s", res.Name, w.Error()))
	}
	return warnings
}

func deriveABI(doc *ir.Document) ([]byte, error) {
	a, err := abi.Derive(doc)
	if err != nil {
		return nil, err
	}
	return abi.Marshal(a)
}

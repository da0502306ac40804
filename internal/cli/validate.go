package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cardity-org/cardity-core/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                    `json:"valid"`
	Units      []string                `json:"units"`
	Errors     []FileError             `json:"errors"`
	Violations []compiler.Violation    `json:"violations"`
	Warnings   []compiler.Violation    `json:"warnings"`
	Cycles     []compiler.CycleWarning `json:"cycles"`
}

// FileError is a unit that failed to load.
type FileError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <dir-or-file>...",
		Short: "Validate a set of units and their cross-module calls",
		Long: `Load every unit under the given paths and check them as a set.

Each unit is compiled (or schema-checked for JSON IR). Then every
alias.method(...) call is resolved against the loaded modules and its
arity checked; argument kinds are compared when the callee declares
parameter types. Import cycles are reported as warnings.

All problems are reported together. Exit code 1 when any unit fails to
load or any call does not resolve.

Example:
  cardity validate ./protocols`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	units, loadErrs := LoadUnits(paths)
	result := ValidationResult{
		Units:      make([]string, 0, len(units)),
		Errors:     []FileError{},
		Violations: []compiler.Violation{},
		Warnings:   []compiler.Violation{},
	}
	for _, u := range units {
		result.Units = append(result.Units, u.Path)
		formatter.VerboseLog("Loaded %s (%s)", u.Path, u.Doc.Protocol)
	}
	for _, err := range loadErrs {
		result.Errors = append(result.Errors, FileError{Code: errorCode(err), Path: pathOf(err), Message: err.Error()})
	}

	violations, warnings := compiler.CheckCalls(units)
	result.Violations = append(result.Violations, violations...)
	result.Warnings = append(result.Warnings, warnings...)
	result.Cycles = compiler.AnalyzeImports(units)
	result.Valid = len(result.Errors) == 0 && len(result.Violations) == 0

	if formatter.JSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		_ = formatter.Failure(validateCode(result), validateMessage(result), result)
		return NewExitError(ExitFailure, validateMessage(result))
	}
	return outputValidateText(formatter, result)
}

func outputValidateText(f *OutputFormatter, result ValidationResult) error {
	w := f.Writer
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s: %s\n", e.Code, e.Message)
	}
	for _, v := range result.Violations {
		fmt.Fprintf(w, "  %s: %s\n", ErrCodeCrossModule, v)
	}
	for _, v := range result.Warnings {
		f.Warn("%s", v)
	}
	for _, c := range result.Cycles {
		f.Warn("%s", c.Message)
	}

	if !result.Valid {
		fmt.Fprintf(w, "✗ %s\n", validateMessage(result))
		return NewExitError(ExitFailure, validateMessage(result))
	}
	fmt.Fprintf(w, "✓ %d unit(s) valid\n", len(result.Units))
	return nil
}

func validateCode(result ValidationResult) string {
	if len(result.Errors) > 0 {
		return result.Errors[0].Code
	}
	return ErrCodeCrossModule
}

func validateMessage(result ValidationResult) string {
	return fmt.Sprintf("validation failed: %d load error(s), %d unresolved call(s)",
		len(result.Errors), len(result.Violations))
}

func pathOf(err error) string {
	if le, ok := err.(*LoadError); ok {
		return le.Path
	}
	return ""
}

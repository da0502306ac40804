package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// ABIOptions holds flags for the abi command.
type ABIOptions struct {
	*RootOptions
	Output string
}

// NewABICommand creates the abi command.
func NewABICommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ABIOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "abi <unit-file>",
		Short: "Derive the ABI of a protocol",
		Long: `Derive the ABI document (methods, parameters, returns, events) of a
unit. The input may be a source file, a JSON IR file or a CARC binary.

Example:
  cardity abi counter.car -o counter.abi.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runABI(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runABI(opts *ABIOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	doc, err := LoadDocument(path)
	if err != nil {
		return formatter.fail(ExitCommandError, errorCode(err), err)
	}
	data, err := deriveABI(doc)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
	}

	if opts.Output != "" {
		if err := writeOutput(formatter, opts.Output, data); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}
	if formatter.JSON() {
		return formatter.Success(json.RawMessage(data))
	}
	if opts.Output == "" {
		return writeOutput(formatter, "", data)
	}
	return nil
}

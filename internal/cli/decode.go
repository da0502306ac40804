package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardity-org/cardity-core/internal/carc"
	"github.com/cardity-org/cardity-core/internal/ir"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Output string
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode <file.carc>",
		Short: "Decode a CARC binary back to JSON IR",
		Long: `Decode a CARC binary (format version 1 or 2) and print its JSON IR.

A corrupt or truncated file is rejected without partial output.

Example:
  cardity decode counter.carc -o counter.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runDecode(opts *DecodeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		le := loadErrorFrom(path, err)
		return formatter.fail(ExitCommandError, le.Code, le)
	}
	proto, err := carc.Decode(data)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeDecodeFailed, loadErrorFrom(path, err))
	}
	doc := ir.Compile(proto)
	out, err := ir.Marshal(doc)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err)
	}
	formatter.VerboseLog("Decoded %s: %d bytes, %d method(s)", proto.Name, len(data), len(proto.Methods))

	if opts.Output != "" {
		if err := writeOutput(formatter, opts.Output, out); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, err)
		}
	}
	if formatter.JSON() {
		return formatter.Success(json.RawMessage(out))
	}
	if opts.Output == "" {
		return writeOutput(formatter, "", out)
	}
	return nil
}

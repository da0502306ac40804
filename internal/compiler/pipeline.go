// Package compiler turns Cardity source into its compiled forms and checks
// units, singly and as a set.
package compiler

import (
	"fmt"
	"log/slog"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/carc"
	"github.com/cardity-org/cardity-core/internal/ir"
	"github.com/cardity-org/cardity-core/internal/parser"
)

// Result is everything produced for one source unit.
type Result struct {
	Name        string
	Protocol    *ast.Protocol
	Diagnostics []parser.Diagnostic
	Warnings    []ValidationError
	Document    *ir.Document
	JSON        []byte
	Binary      []byte
}

// Compile runs the full pipeline over one source text: tokenize, parse,
// semantic checks, JSON IR and binary IR. Lex and parse errors are
// returned as is. Semantic errors come back as ValidationErrors together
// with the partial result, which then has no IR. Output is a pure function
// of src.
func Compile(name string, src []byte) (*Result, error) {
	proto, diags, err := parser.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	res := &Result{Name: name, Protocol: proto, Diagnostics: diags}
	for _, d := range diags {
		slog.Debug("parse warning", "file", name, "pos", d.Pos.String(), "message", d.Message)
	}

	errs, warnings := Validate(proto)
	res.Warnings = warnings
	if len(errs) > 0 {
		return res, ValidationErrors(errs)
	}

	res.Document = ir.Compile(proto)
	if res.JSON, err = ir.Marshal(res.Document); err != nil {
		return res, fmt.Errorf("%s: %w", name, err)
	}
	if res.Binary, err = carc.Encode(proto); err != nil {
		return res, fmt.Errorf("%s: %w", name, err)
	}
	slog.Debug("unit compiled", "file", name, "protocol", proto.Name,
		"methods", len(proto.Methods), "json_bytes", len(res.JSON), "carc_bytes", len(res.Binary))
	return res, nil
}

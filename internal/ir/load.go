package ir

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/cardity-org/cardity-core/internal/ast"
)

//go:embed schema.cue
var schemaSource string

// SchemaError reports a document that does not match the IR schema.
type SchemaError struct {
	File    string
	Line    int
	Message string
}

func (e *SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// schema holds the compiled CUE schema. A cue.Context is not safe for
// concurrent use, so every validation holds mu.
var schema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	unit cue.Value
}

func unitSchema() (*cue.Context, cue.Value, error) {
	if schema.ctx == nil {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			return nil, cue.Value{}, fmt.Errorf("compile IR schema: %w", err)
		}
		schema.ctx = ctx
		schema.unit = v.LookupPath(cue.ParsePath("#Unit"))
	}
	return schema.ctx, schema.unit, nil
}

// Validate checks raw JSON against the IR schema without decoding it.
// name labels positions in error messages.
func Validate(name string, data []byte) error {
	schema.mu.Lock()
	defer schema.mu.Unlock()

	ctx, unit, err := unitSchema()
	if err != nil {
		return err
	}
	expr, err := cuejson.Extract(name, data)
	if err != nil {
		return &SchemaError{File: name, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	v := ctx.BuildExpr(expr)
	if err := v.Err(); err != nil {
		return schemaError(name, err)
	}
	if err := unit.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return schemaError(name, err)
	}
	return nil
}

// schemaError converts the first CUE error into a SchemaError.
func schemaError(name string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{File: name, Message: err.Error()}
	}
	first := errs[0]
	se := &SchemaError{File: name, Message: strings.TrimSpace(first.Error())}
	for _, pos := range cueerrors.Positions(first) {
		if pos.Filename() == name {
			se.Line = pos.Line()
			break
		}
	}
	return se
}

// Load validates and decodes a JSON IR document.
func Load(name string, data []byte) (*Document, error) {
	if err := Validate(name, data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	normalize(&doc)
	return &doc, nil
}

// normalize fills optional fields so that a loaded document encodes the
// same way as a compiled one.
func normalize(doc *Document) {
	if doc.Version == "" {
		doc.Version = ast.DefaultVersion
	}
	if doc.CPL.State == nil {
		doc.CPL.State = map[string]StateVar{}
	}
	if doc.CPL.Methods == nil {
		doc.CPL.Methods = map[string]Method{}
	}
	for name, m := range doc.CPL.Methods {
		if m.Params == nil {
			m.Params = []string{}
			doc.CPL.Methods[name] = m
		}
	}
	for name, ev := range doc.CPL.Events {
		if ev.Params == nil {
			ev.Params = []EventParam{}
			doc.CPL.Events[name] = ev
		}
	}
	for i, u := range doc.CPL.Using {
		if u.Alias == "" {
			doc.CPL.Using[i].Alias = u.Module
		}
	}
}

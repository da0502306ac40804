package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardity-org/cardity-core/internal/carc"
	"github.com/cardity-org/cardity-core/internal/compiler"
	"github.com/cardity-org/cardity-core/internal/ir"
	"github.com/cardity-org/cardity-core/internal/lexer"
	"github.com/cardity-org/cardity-core/internal/parser"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No unit files found
	ErrCodeLoadFailed   = "E004" // Lex or parse error
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeDecodeFailed = "E006" // CARC decode error
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeDatabase     = "E008" // Database open/read error
	ErrCodeSchema       = "E009" // JSON IR failed schema validation
	ErrCodeListen       = "E010" // Network listen error

	ErrCodeValidation  = "E101" // Semantic errors in a unit
	ErrCodeCrossModule = "E102" // Unresolved cross-module calls

	ErrCodeRuntimeFault   = "E201" // Method invocation faulted
	ErrCodeReplayMismatch = "E202" // Replay diverged from the log
	ErrCodeTestFailed     = "E203" // Scenario failures
)

// Unit file extensions.
const (
	extSource = ".car"
	extJSON   = ".json"
	extBinary = ".carc"
)

// LoadError is a failure to load one unit file.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Pos     lexer.Position // zero when unknown
}

func (e *LoadError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s:%s: %s", e.Path, e.Pos, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// loadErrorFrom classifies err into a LoadError carrying the code and,
// for lex and parse errors, the source position.
func loadErrorFrom(path string, err error) *LoadError {
	var lexErr *lexer.LexError
	var parseErr *parser.ParseError
	var decodeErr *carc.DecodeError
	switch {
	case errors.As(err, &lexErr):
		return &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: lexErr.Message, Pos: lexErr.Pos}
	case errors.As(err, &parseErr):
		return &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: parseErr.Message, Pos: parseErr.Pos}
	case compiler.IsValidationError(err):
		return &LoadError{Code: ErrCodeValidation, Path: path, Message: err.Error()}
	case errors.As(err, &decodeErr):
		return &LoadError{Code: ErrCodeDecodeFailed, Path: path, Message: decodeErr.Error()}
	case ir.IsSchemaError(err):
		return &LoadError{Code: ErrCodeSchema, Path: path, Message: err.Error()}
	case errors.Is(err, fs.ErrNotExist):
		return &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found"}
	default:
		return &LoadError{Code: ErrCodeGeneric, Path: path, Message: err.Error()}
	}
}

// errorCode returns the CLI error code for err.
func errorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeGeneric
}

// LoadDocument reads one unit file and returns its JSON IR document.
//
//   - .carc: decoded from the CARC binary format
//   - .json: JSON IR, schema-validated
//   - .car:  source text, or JSON IR when the content is a JSON object
//
// Errors are *LoadError.
func LoadDocument(path string) (*ir.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadErrorFrom(path, err)
	}
	doc, err := documentFrom(path, data)
	if err != nil {
		return nil, loadErrorFrom(path, err)
	}
	return doc, nil
}

func documentFrom(path string, data []byte) (*ir.Document, error) {
	switch {
	case strings.EqualFold(filepath.Ext(path), extBinary):
		proto, err := carc.Decode(data)
		if err != nil {
			return nil, err
		}
		return ir.Compile(proto), nil
	case isJSONObject(data):
		return ir.Load(path, data)
	default:
		res, err := compiler.Compile(path, data)
		if err != nil {
			return nil, err
		}
		return res.Document, nil
	}
}

func isJSONObject(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))
}

// FindUnitFiles walks dir and returns every .car, .json and .carc file in
// lexical order.
func FindUnitFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case extSource, extJSON, extBinary:
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// LoadUnits loads every unit under the given paths. A path may be a file
// or a directory. Errors are collected, never fail-fast, so one run
// reports every broken file.
func LoadUnits(paths []string) ([]compiler.Unit, []error) {
	var units []compiler.Unit
	var errs []error

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, loadErrorFrom(p, err))
			continue
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := FindUnitFiles(p)
		if err != nil {
			errs = append(errs, &LoadError{Code: ErrCodeScanError, Path: p, Message: err.Error()})
			continue
		}
		if len(found) == 0 {
			errs = append(errs, &LoadError{Code: ErrCodeNoFiles, Path: p, Message: "no unit files found"})
		}
		files = append(files, found...)
	}

	for _, f := range files {
		doc, err := LoadDocument(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		units = append(units, compiler.Unit{Path: f, Doc: doc})
	}
	return units, errs
}

// writeOutput writes data to path, or to the formatter when path is empty.
func writeOutput(f *OutputFormatter, path string, data []byte) error {
	if path == "" {
		_, err := f.Writer.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &LoadError{Code: ErrCodeWriteFailed, Path: path, Message: err.Error()}
	}
	return nil
}

package parser

import (
	"errors"
	"fmt"

	"github.com/cardity-org/cardity-core/internal/lexer"
)

// ParseError is a fatal syntax error carrying the offending position.
type ParseError struct {
	Pos     lexer.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Pos, e.Message)
}

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Diagnostic is a recoverable problem: the parser skipped something and
// carried on.
type Diagnostic struct {
	Pos     lexer.Position
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: warning: %s", d.Pos, d.Message)
}

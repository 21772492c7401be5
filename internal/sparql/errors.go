package sparql

import (
	"fmt"
)

// ParseError reports a malformed query.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func newParseError(line, col int, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

// EvalError reports a query that parsed but could not be executed.
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string {
	return "evaluation error: " + e.Msg
}

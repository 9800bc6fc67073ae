package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Semantic errors and diagnostics
// ---------------------------------------------------------------------------

// ErrorKind classifies a semantic error.
type ErrorKind int

const (
	// UndefinedIdentifier: a name read as a value or used as a pointer was
	// never assigned.
	UndefinedIdentifier ErrorKind = iota
	// InvalidAddress: a pointer does not hold an integer in [0, size).
	InvalidAddress
	// InvalidOperation: an operator was applied to operands it does not
	// support, or a division or modulo by zero.
	InvalidOperation
)

// Sentinel errors for matching with errors.Is.
var (
	ErrUndefinedIdentifier = errors.New("undefined identifier")
	ErrInvalidAddress      = errors.New("invalid address")
	ErrInvalidOperation    = errors.New("invalid operation")
)

func (k ErrorKind) String() string {
	switch k {
	case UndefinedIdentifier:
		return "UndefinedIdentifier"
	case InvalidAddress:
		return "InvalidAddress"
	case InvalidOperation:
		return "InvalidOperation"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case UndefinedIdentifier:
		return ErrUndefinedIdentifier
	case InvalidAddress:
		return ErrInvalidAddress
	}
	return ErrInvalidOperation
}

// SemanticError is the error produced by evaluation and by the address
// table. It unwraps to the sentinel for its kind.
type SemanticError struct {
	Kind ErrorKind
	Msg  string
}

func (e *SemanticError) Error() string { return e.Msg }

func (e *SemanticError) Unwrap() error { return e.Kind.sentinel() }

func undefinedName(name string) *SemanticError {
	return &SemanticError{Kind: UndefinedIdentifier, Msg: fmt.Sprintf("name '%s' is not defined", name)}
}

func invalidAddress(format string, args ...interface{}) *SemanticError {
	return &SemanticError{Kind: InvalidAddress, Msg: fmt.Sprintf(format, args...)}
}

func invalidOperation(format string, args ...interface{}) *SemanticError {
	return &SemanticError{Kind: InvalidOperation, Msg: fmt.Sprintf(format, args...)}
}

// Diagnostic is a semantic error recorded against one statement.
type Diagnostic struct {
	Stmt    int // index of the statement in the program
	Line    int // 1-based source line, 0 when unknown
	Kind    ErrorKind
	Message string
}

// String renders the diagnostic the way the nuPython driver prints it.
func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("**SEMANTIC ERROR: %s (line %d)", d.Message, d.Line)
	}
	return fmt.Sprintf("**SEMANTIC ERROR: %s", d.Message)
}

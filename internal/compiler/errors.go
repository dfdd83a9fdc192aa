package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Query document error codes (E200-E299)
const (
	ErrParse            = "E200" // document is not valid YAML, JSON or CUE
	ErrUnknownField     = "E201" // key not allowed at this position
	ErrMissingField     = "E202" // required key absent
	ErrInvalidValue     = "E203" // value has the wrong type or range
	ErrUnknownOperation = "E204" // operation name not recognized
	ErrUnknownRequest   = "E205" // request kind not recognized
	ErrUnknownOperator  = "E206" // comparison operator not recognized
	ErrUnresolvedSource = "E207" // table or bucket could not be opened
)

// CompileError reports a problem in a query document.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
	Err     error // underlying cause, if any
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

func newError(code, field, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Code: ErrParse, Field: "cue", Message: err.Error()}
	}

	first := errs[0]
	ce := &CompileError{Code: ErrParse, Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

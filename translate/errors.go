// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package translate

import (
	"errors"
	"fmt"
)

// ErrTranslation is wrapped by every error the translator reports.
var ErrTranslation = errors.New("translation failed")

// UnsupportedError reports a construct the translator cannot express.
// The run is marked failed but lowering continues with a placeholder.
type UnsupportedError struct {
	Function  string
	Construct string
	Detail    string
}

func (e *UnsupportedError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("in function %s: unsupported %s: %s", e.Function, e.Construct, e.Detail)
	}
	return fmt.Sprintf("unsupported %s: %s", e.Construct, e.Detail)
}

func (e *UnsupportedError) Unwrap() error { return ErrTranslation }

// InternalError reports an inconsistency between the protocol calls and
// the SSA input. Lowering of the current function stops.
type InternalError struct {
	Function string
	Detail   string
}

func (e *InternalError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("in function %s: internal error: %s", e.Function, e.Detail)
	}
	return "internal error: " + e.Detail
}

func (e *InternalError) Unwrap() error { return ErrTranslation }

// ControlFlowError reports a structured-control call that does not match
// the open constructs. It is fatal for the whole run.
type ControlFlowError struct {
	Function string
	Op       string
	Detail   string
}

func (e *ControlFlowError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("in function %s: malformed control flow at %s: %s", e.Function, e.Op, e.Detail)
	}
	return fmt.Sprintf("malformed control flow at %s: %s", e.Op, e.Detail)
}

func (e *ControlFlowError) Unwrap() error { return ErrTranslation }

func (t *Translator) unsupported(construct, format string, args ...any) error {
	return &UnsupportedError{Function: t.funcName(), Construct: construct, Detail: fmt.Sprintf(format, args...)}
}

func (t *Translator) internal(format string, args ...any) error {
	return &InternalError{Function: t.funcName(), Detail: fmt.Sprintf(format, args...)}
}

func (t *Translator) controlFlow(op, format string, args ...any) error {
	return &ControlFlowError{Function: t.funcName(), Op: op, Detail: fmt.Sprintf(format, args...)}
}

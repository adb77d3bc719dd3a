package template

import (
	"fmt"
	"sort"
	"strings"
)

// Error is the base interface for all template errors.
type Error interface {
	error
	Position() Position
}

// baseError provides common error functionality.
type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string {
	if e.pos.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// LexError represents a malformed template.
type LexError struct {
	baseError
}

// NewLexError creates a new lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{baseError: baseError{pos: pos, msg: msg}}
}

// ResolutionError reports a placeholder with no matching variable.
type ResolutionError struct {
	baseError
	Name      string
	Available []string
}

// NewResolutionError creates a resolution error for name. available lists the
// variables that were defined, for the hint line.
func NewResolutionError(pos Position, name string, available []string) *ResolutionError {
	sorted := append([]string(nil), available...)
	sort.Strings(sorted)
	return &ResolutionError{
		baseError: baseError{pos: pos, msg: fmt.Sprintf("undefined variable %q", name)},
		Name:      name,
		Available: sorted,
	}
}

func (e *ResolutionError) Error() string {
	base := e.baseError.Error()
	if len(e.Available) == 0 {
		return base
	}
	return fmt.Sprintf("%s\nAvailable variables: %s", base, strings.Join(e.Available, ", "))
}

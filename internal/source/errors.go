package source

import "fmt"

// SourceError reports a table that could not be read: a missing or unreadable
// file, an unsupported format, or a failed warehouse query.
type SourceError struct {
	Ref TableRef
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Ref, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// FilterEvaluationError reports a local filter expression the engine rejected.
type FilterEvaluationError struct {
	Ref    TableRef
	Filter string
	Err    error
}

func (e *FilterEvaluationError) Error() string {
	return fmt.Sprintf("filter on %s could not be evaluated: %v\nFilter: %s", e.Ref, e.Err, e.Filter)
}

func (e *FilterEvaluationError) Unwrap() error { return e.Err }

package dates

import (
	"fmt"
	"strings"
)

// ControlTableContractError reports a control-table lookup that did not return
// exactly one row carrying source_start and source_end.
type ControlTableContractError struct {
	Query  string
	Rows   int
	Reason string
}

func (e *ControlTableContractError) Error() string {
	var b strings.Builder
	b.WriteString("control table contract violated: ")
	if e.Reason != "" {
		b.WriteString(e.Reason)
	} else {
		fmt.Fprintf(&b, "expected exactly one row, got %d", e.Rows)
	}
	if e.Query != "" {
		fmt.Fprintf(&b, "\nQuery: %s", e.Query)
	}
	return b.String()
}

// DuplicateKeyError is returned when a date variable would be written twice.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("date variable %q already set", e.Key)
}

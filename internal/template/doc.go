// Package template renders row-filter templates.
//
// A template is plain text with {name} placeholders that are replaced by the
// value of the matching variable. {{ and }} produce literal braces. Any other
// use of a brace is a lexical error.
package template

// Position tracks source location for error reporting. File names the
// template's origin, usually its configuration key.
type Position struct {
	File   string
	Line   int
	Column int
}

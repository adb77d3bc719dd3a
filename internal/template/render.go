package template

import "strings"

// Render substitutes every {name} placeholder in tmpl with vars[name].
// file labels error positions and may be empty.
func Render(file, tmpl string, vars map[string]string) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl, nil
	}

	tokens, err := NewLexer(tmpl, file).Tokenize()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(tmpl))
	for _, tok := range tokens {
		switch tok.Type {
		case TokenText:
			b.WriteString(tok.Value)
		case TokenPlaceholder:
			v, ok := vars[tok.Value]
			if !ok {
				return "", NewResolutionError(tok.Pos, tok.Value, keys(vars))
			}
			b.WriteString(v)
		}
	}
	return b.String(), nil
}

// Placeholders returns the variable names tmpl references, in order of first
// appearance.
func Placeholders(file, tmpl string) ([]string, error) {
	tokens, err := NewLexer(tmpl, file).Tokenize()
	if err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if tok.Type == TokenPlaceholder && !seen[tok.Value] {
			seen[tok.Value] = true
			names = append(names, tok.Value)
		}
	}
	return names, nil
}

// Check verifies that tmpl is well formed and every placeholder is defined,
// without producing output.
func Check(file, tmpl string, vars map[string]string) error {
	_, err := Render(file, tmpl, vars)
	return err
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

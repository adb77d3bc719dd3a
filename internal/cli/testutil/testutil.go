// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapetl/internal/cli/output"
)

// CustomerCSV is the raw customer table written by SetupTestProject.
// Two rows fall in March 2024; the third row repeats the first after cleaning.
const CustomerCSV = `CUST_ID,IMAGE_DT,BALANCE
c1 ,2024-03-31,10.5
c2,2024-02-29,3
C1,2024-03-31,10.5
`

// SetupTestProject creates a temporary local-mode project: a leapetl.yaml and
// a crm dataset directory holding customer.csv. It returns the project root.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "data", "crm")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dataDir, err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "customer.csv"), []byte(CustomerCSV), 0o644); err != nil {
		t.Fatalf("failed to create customer.csv: %v", err)
	}

	cfg := fmt.Sprintf(`mode: local
output_dir: %s
staging_dir: %s
history: %s
run_date: "2024-03-15"
datasets:
  crm:
    path: %s
    tables:
      - name: customer.csv
        filter: "IMAGE_DT >= '{calendar_start}'"
`, filepath.Join(tmpDir, "out", "raw"), filepath.Join(tmpDir, "out", "staging"), HistoryPath(tmpDir), dataDir)
	if err := os.WriteFile(ConfigPath(tmpDir), []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to create leapetl.yaml: %v", err)
	}

	return tmpDir
}

// HistoryPath returns the run history database of a project created by
// SetupTestProject.
func HistoryPath(dir string) string {
	return filepath.Join(dir, ".leapetl", "history.db")
}

// ConfigPath returns the config file of a project created by SetupTestProject.
func ConfigPath(dir string) string {
	return filepath.Join(dir, "leapetl.yaml")
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Stdout *bytes.Buffer
	Stderr *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode) *TestRenderer {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRenderer(stdout, stderr, mode),
		Stdout:   stdout,
		Stderr:   stderr,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Stdout.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.Stderr.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("output contains ANSI escape codes: %q", s)
	}
}

// JSONLines splits newline-delimited JSON output into its records.
func JSONLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

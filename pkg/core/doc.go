// Package core defines the shared language of the LeapETL system.
//
// This package contains:
//   - The uniform tabular result (Table, Column, Kind) every source returns
//   - Adapter configuration shared by warehouse and engine adapters
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core

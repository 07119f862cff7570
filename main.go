// =============================================================================
// NEM12 Converter - Main Entry Point
// =============================================================================
//
// USAGE:
//   nem12 convert [file...]   - Convert NEM12 files (or the input directory)
//   nem12 validate [file...]  - Parse and lint without writing output
//   nem12 units               - Print the unit of measure table
//   nem12 version             - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Parser, export, lint, configuration and pipeline
//   - pkg/           : File management utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/nem12-converter/cmd"
)

func main() {
	cmd.Execute()
}

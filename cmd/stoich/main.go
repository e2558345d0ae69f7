// Command stoich solves stoichiometry problems and balances reactions from the
// command line, or serves the same operations as MCP tools.
//
// Usage:
//
//	stoich solve --given "m = 0.713 g" --given "M = 18 g/mol" --target n --unit mmol --precision 3
//	stoich balance "H2 + O2 -> H2O"
//	stoich mcp --mode http --address :8080 --metrics-address :9090
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/wonny/evidence/cmd/evidence/commands"
)

// main is the entry point for the evidence CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/evidence [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

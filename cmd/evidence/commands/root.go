package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envOverride string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Evidence-based equity scoring pipeline",
	Long: `Evidence Unified CLI

유니버스 전체를 4개 pillar 로 채점하고 상위 종목만 심층 분석합니다.
scan → selecting → deep → monte carlo → finalize

Usage:
  go run ./cmd/evidence [command]

Examples:
  go run ./cmd/evidence score --universe config/universe.yaml --preset garp
  go run ./cmd/evidence api
  go run ./cmd/evidence scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envOverride, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wonny/evidence/internal/scoringconfig"
)

// Version is set at build time via -ldflags "-X .../commands.Version=..."
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "버전 정보",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("evidence %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("presets: %v\n", scoringconfig.PresetNames())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

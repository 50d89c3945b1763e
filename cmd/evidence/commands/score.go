package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/scheduler/jobs"
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "유니버스 채점 1회 실행",
	Long: `유니버스를 한 번 채점하고 결과를 출력합니다.

이 명령어는:
- 유니버스 필터링 후 전 종목 scan 채점
- 상위 K 종목 deep 채점 + Monte Carlo
- 결과 JSON 저장 (--output) 및 run store 저장 (--persist)

Example:
  go run ./cmd/evidence score
  go run ./cmd/evidence score --universe config/universe.yaml --preset garp --persist
  go run ./cmd/evidence score --symbols AAPL,MSFT,NVDA --output out.json`,
	RunE: runScore,
}

var (
	scoreUniverse string
	scoreSymbols  []string
	scorePreset   string
	scoreOutput   string
	scorePersist  bool
	scoreTop      int
)

func init() {
	rootCmd.AddCommand(scoreCmd)

	// Flags
	scoreCmd.Flags().StringVar(&scoreUniverse, "universe", "", "universe YAML (default: UNIVERSE_PATH)")
	scoreCmd.Flags().StringSliceVar(&scoreSymbols, "symbols", nil, "ad-hoc symbol list instead of a universe file")
	scoreCmd.Flags().StringVar(&scorePreset, "preset", "", "scoring preset (default|garp|etf|shield)")
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "write the full result JSON to this path")
	scoreCmd.Flags().BoolVar(&scorePersist, "persist", false, "save the run to the run store")
	scoreCmd.Flags().IntVar(&scoreTop, "top", 20, "rows to print")
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := runContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := make([]string, 0, len(scoreSymbols))
	for _, s := range scoreSymbols {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}

	PrintJobHeader(JobMetadata{
		JobType:   "Universe Scoring",
		Tag:       "Score",
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
		Symbols:   strings.Join(symbols, ","),
	})

	start := time.Now()
	result, err := a.job.Execute(ctx, jobs.RunOptions{
		UniversePath: scoreUniverse,
		Symbols:      symbols,
		Preset:       scorePreset,
		Persist:      &scorePersist,
	})
	if result == nil {
		if err != nil {
			PrintError(err.Error())
		}
		return err
	}
	if err != nil {
		// 저장 실패: 결과는 유효
		PrintWarning(err.Error())
	}

	if scoreOutput != "" {
		if werr := writeResult(scoreOutput, result); werr != nil {
			return werr
		}
		PrintSuccess(fmt.Sprintf("Result written to %s", scoreOutput))
	}

	printResult(result, scoreTop)
	PrintRunCompletion(result.RunID, time.Since(start).Seconds())
	return nil
}

func writeResult(path string, result *contracts.ScoringResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// printResult prints the run summary and the top-ranked rows
func printResult(result *contracts.ScoringResult, top int) {
	meta := result.Metadata
	dq := result.DataQualitySummary

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Run       : %s\n", result.RunID)
	fmt.Printf("  Universe  : %s (%d members, %d excluded)\n", meta.Universe, meta.UniverseSize, len(meta.Excluded))
	fmt.Printf("  Preset    : %s\n", meta.Preset)
	fmt.Printf("  Mode      : %s (%.1f, breadth %.2f)\n", result.Mode.Label, result.Mode.Score, result.Mode.Breadth)
	fmt.Printf("  Scored    : %d  deep %d  monte carlo %d  errors %d\n",
		meta.ScoredCount, meta.DeepCount, meta.MonteCarloCount, len(meta.Errors))
	fmt.Printf("  Quality   : avg %.2f  min %.2f  stale %.1f%%\n", dq.AvgScore, dq.MinScore, dq.StaleRatio*100)
	fmt.Printf("  Cache hit : %.1f%%  provider calls %d\n", meta.FetchStats.HitRatio()*100, meta.FetchStats.ProviderRequests)
	PrintSeparator()

	if dq.StaleAlert {
		PrintWarning(fmt.Sprintf("%d symbols have stale fundamentals", dq.StaleCount))
	}

	ranked := append([]contracts.SymbolScore(nil), result.Scores...)
	contracts.SortByRank(ranked)
	if top > len(ranked) {
		top = len(ranked)
	}

	widths := []int{4, 8, 7, 6, 6, 6, 6, 5, 10, 7}
	PrintTableHeader([]string{"#", "Symbol", "Total", "Val", "Qual", "Tech", "Risk", "DQ", "Target", "Upside"}, widths)
	for i, s := range ranked[:top] {
		target, upside := "-", "-"
		if s.PriceTarget != nil {
			target = fmt.Sprintf("%.2f", s.PriceTarget.TargetPrice)
			upside = fmt.Sprintf("%+.1f%%", s.PriceTarget.UpsidePct)
		}
		symbol := s.Symbol
		if s.IsScanOnly {
			symbol += "*"
		}
		PrintTableRow([]string{
			fmt.Sprintf("%d", i+1),
			symbol,
			fmt.Sprintf("%.2f", s.TotalScore),
			fmt.Sprintf("%.1f", s.Breakdown.Valuation),
			fmt.Sprintf("%.1f", s.Breakdown.Quality),
			fmt.Sprintf("%.1f", s.Breakdown.Technical),
			fmt.Sprintf("%.1f", s.Breakdown.Risk),
			fmt.Sprintf("%.0f", s.DataQuality.Score),
			target,
			upside,
		}, widths)
	}
	fmt.Println("  * scan only")

	if len(meta.Errors) > 0 {
		fmt.Println()
		fmt.Printf("Errors (%d):\n", len(meta.Errors))
		for i, e := range meta.Errors {
			if i == 10 {
				fmt.Printf("  ... %d more\n", len(meta.Errors)-10)
				break
			}
			fmt.Printf("  %-8s [%s] %s\n", e.Symbol, e.Phase, e.Message)
		}
	}
}

// runContext returns a context canceled on SIGINT/SIGTERM
func runContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

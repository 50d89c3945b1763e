package selection

import (
	"strings"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/logger"
)

// Published subset sizes
const (
	Top5  = 5
	Top10 = 10
	Top20 = 20
	Top30 = 30
)

// Ranker implements contracts.Selector
// ⭐ SSOT: 게시용 랭킹 로직은 여기서만 (총점 내림차순, 동점은 심볼 오름차순)
type Ranker struct {
	config   Config
	screener *Screener
	logger   *logger.Logger
}

// Config defines diversification caps
type Config struct {
	MaxPerSector   int // 섹터당 최대 종목 수 (0 = 제한 없음)
	MaxPerIndustry int // 산업당 최대 종목 수 (0 = 제한 없음)
	Screener       ScreenerConfig
}

// DefaultConfig returns default ranking configuration
func DefaultConfig() Config {
	return Config{
		MaxPerSector:   8,
		MaxPerIndustry: 4,
		Screener:       DefaultScreenerConfig(),
	}
}

// NewRanker creates a new ranker
func NewRanker(config Config, log *logger.Logger) *Ranker {
	return &Ranker{
		config:   config,
		screener: NewScreener(config.Screener, log),
		logger:   log,
	}
}

// Select ranks scores and returns the published subsets
// 입력 배열은 변경하지 않음
func (r *Ranker) Select(scores []contracts.SymbolScore) contracts.Selection {
	candidates := r.screener.Screen(scores)
	contracts.SortByRank(candidates)

	picked := make([]string, 0, Top30)
	perSector := make(map[string]int)
	perIndustry := make(map[string]int)
	capped := 0

	for _, s := range candidates {
		if len(picked) == Top30 {
			break
		}
		sector := strings.ToLower(s.Sector)
		industry := strings.ToLower(s.Industry)

		if r.config.MaxPerSector > 0 && sector != "" && perSector[sector] >= r.config.MaxPerSector {
			capped++
			continue
		}
		if r.config.MaxPerIndustry > 0 && industry != "" && perIndustry[industry] >= r.config.MaxPerIndustry {
			capped++
			continue
		}

		picked = append(picked, s.Symbol)
		perSector[sector]++
		perIndustry[industry]++
	}

	sel := contracts.Selection{
		Top5:  head(picked, Top5),
		Top10: head(picked, Top10),
		Top20: head(picked, Top20),
		Top30: head(picked, Top30),
	}

	if len(picked) > 0 {
		r.logger.WithFields(map[string]interface{}{
			"total_stocks": len(scores),
			"eligible":     len(candidates),
			"published":    len(picked),
			"capped":       capped,
			"top_symbol":   picked[0],
		}).Info("Selection completed")
	}

	return sel
}

func head(symbols []string, n int) []string {
	if len(symbols) < n {
		n = len(symbols)
	}
	return append([]string{}, symbols[:n]...)
}

package selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/logger"
)

func score(symbol, sector string, total, dq float64) contracts.SymbolScore {
	return contracts.SymbolScore{
		Symbol:      symbol,
		Sector:      sector,
		Industry:    sector + " industry",
		TotalScore:  total,
		Evidence:    contracts.EvidencePillars{Valuation: 50, Quality: 50, Technical: 50, Risk: 50},
		DataQuality: contracts.DataQuality{Score: dq},
	}
}

func TestRankerOrdersByScoreThenSymbol(t *testing.T) {
	r := NewRanker(Config{Screener: ScreenerConfig{MaxMissingCritical: -1}}, logger.NewNop())

	scores := []contracts.SymbolScore{
		score("MSFT", "Tech", 70, 90),
		score("AAPL", "Tech", 70, 90),
		score("XOM", "Energy", 80, 90),
		score("JNJ", "Health", 10, 90),
	}

	sel := r.Select(scores)
	assert.Equal(t, []string{"XOM", "AAPL", "MSFT", "JNJ"}, sel.Top5)
	assert.Equal(t, sel.Top5, sel.Top30)

	// input not reordered
	assert.Equal(t, "MSFT", scores[0].Symbol)
}

func TestRankerNestedSubsets(t *testing.T) {
	r := NewRanker(Config{Screener: ScreenerConfig{MaxMissingCritical: -1}}, logger.NewNop())

	var scores []contracts.SymbolScore
	for i := 0; i < 40; i++ {
		scores = append(scores, score(fmt.Sprintf("S%02d", i), "", float64(i), 90))
	}

	sel := r.Select(scores)
	require.Len(t, sel.Top5, 5)
	require.Len(t, sel.Top10, 10)
	require.Len(t, sel.Top20, 20)
	require.Len(t, sel.Top30, 30)
	assert.Equal(t, "S39", sel.Top5[0])
	assert.Equal(t, sel.Top10, sel.Top20[:10])
	assert.Equal(t, sel.Top20, sel.Top30[:20])
}

func TestRankerSectorCap(t *testing.T) {
	r := NewRanker(Config{MaxPerSector: 2, Screener: ScreenerConfig{MaxMissingCritical: -1}}, logger.NewNop())

	scores := []contracts.SymbolScore{
		score("A", "Tech", 90, 90),
		score("B", "tech", 85, 90),
		score("C", "Tech", 80, 90),
		score("D", "Energy", 70, 90),
	}

	sel := r.Select(scores)
	assert.Equal(t, []string{"A", "B", "D"}, sel.Top30)
}

func TestRankerEmpty(t *testing.T) {
	r := NewRanker(DefaultConfig(), logger.NewNop())
	sel := r.Select(nil)
	assert.Empty(t, sel.Top5)
	assert.Empty(t, sel.Top30)
}

func TestScreener(t *testing.T) {
	noData := score("NODATA", "Tech", 99, 50)
	noData.DataQuality.MissingCritical = []string{contracts.MissingCriticalAll}

	flagged := score("FLAG", "Tech", 95, 90)
	flagged.RedFlags = []string{"cash_burner"}

	stale := score("STALE", "Tech", 90, 90)
	stale.DataQuality.StaleFundamentals = true

	low := score("LOW", "Tech", 85, 20)
	ok := score("OK", "Tech", 60, 90)

	input := []contracts.SymbolScore{noData, flagged, stale, low, ok}

	tests := []struct {
		name   string
		config ScreenerConfig
		want   []string
	}{
		{"defaults", DefaultScreenerConfig(), []string{"FLAG", "STALE", "OK"}},
		{"red flags", ScreenerConfig{MinDataQuality: 40, ExcludeNoData: true, MaxMissingCritical: -1, ExcludeRedFlagged: true}, []string{"STALE", "OK"}},
		{"stale", ScreenerConfig{MinDataQuality: 40, ExcludeNoData: true, MaxMissingCritical: -1, ExcludeStale: true}, []string{"FLAG", "OK"}},
		{"missing critical", ScreenerConfig{MaxMissingCritical: 0}, []string{"FLAG", "STALE", "LOW", "OK"}},
		{"quality floor", ScreenerConfig{MaxMissingCritical: -1, MinQuality: 60}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScreener(tt.config, logger.NewNop())
			var got []string
			for _, sc := range s.Screen(input) {
				got = append(got, sc.Symbol)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRankerImplementsSelector(t *testing.T) {
	var _ contracts.Selector = NewRanker(DefaultConfig(), logger.NewNop())
}

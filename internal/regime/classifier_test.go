package regime

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/internal/contracts"
)

func series(n int, dailyGrowth float64) []contracts.Candle {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]contracts.Candle, n)
	for i := 0; i < n; i++ {
		// 역순으로 넣어서 정렬 확인
		out[n-1-i] = contracts.Candle{
			Date:  start.AddDate(0, 0, i),
			Close: 100 * math.Pow(1+dailyGrowth, float64(i)),
		}
	}
	return out
}

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	tests := []struct {
		name      string
		candles   []contracts.Candle
		breadth   float64
		wantLabel string
		wantScore float64
	}{
		{"uptrend broad", series(250, 0.001), 0.8, contracts.ModeRiskOn, 92},
		{"downtrend narrow", series(250, -0.001), 0.2, contracts.ModeRiskOff, 23},
		{"downtrend broad", series(250, -0.001), 1.0, contracts.ModeNeutral, 55},
		{"breadth clamped", series(250, -0.001), 3.0, contracts.ModeNeutral, 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := c.Classify(context.Background(), tt.candles, tt.breadth)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, mode.Label)
			assert.InDelta(t, tt.wantScore, mode.Score, 1e-9)
			assert.False(t, mode.Fallback)
		})
	}
}

func TestClassifyInsufficientHistory(t *testing.T) {
	c := NewClassifier(DefaultConfig())

	_, err := c.Classify(context.Background(), series(49, 0.001), 0.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}

func TestClassifyCanceled(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, series(250, 0.001), 0.5)
	assert.ErrorIs(t, err, context.Canceled)
}

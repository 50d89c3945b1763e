package contracts

import "context"

// Provider method names, shared by batch requests and ProviderError
const (
	MethodFundamentals = "fundamentals"
	MethodTechnical    = "technical"
	MethodProfile      = "profile"
	MethodCandles      = "candles"
)

// MarketDataProvider fetches raw data for one symbol at a time
// ⭐ SSOT: 외부 시세/재무 데이터 소스 인터페이스 (subprocess, REST 등은 어댑터 구현 세부사항)
type MarketDataProvider interface {
	Name() string
	GetFundamentals(ctx context.Context, symbol string) (*Fundamentals, error)
	GetTechnicalMetrics(ctx context.Context, symbol string) (*TechnicalMetrics, error)
	GetCompanyProfile(ctx context.Context, symbol string) (*CompanyProfile, error)
	GetCandles(ctx context.Context, symbol string, daysBack int) ([]Candle, error)
	RequestCount() int64
	Close() error
}

// BatchItem is one symbol's entry in a batch response
// 개별 실패는 Error 에 담기며 배치 전체를 중단하지 않음
type BatchItem struct {
	Fundamentals *Fundamentals     `json:"fundamentals,omitempty"`
	Technical    *TechnicalMetrics `json:"technical,omitempty"`
	Profile      *CompanyProfile   `json:"profile,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// BatchProvider is implemented by providers that accept multi-symbol requests
type BatchProvider interface {
	FetchBatch(ctx context.Context, symbols []string, methods []string) (map[string]BatchItem, error)
}

// RegimeClassifier labels the market mode
// ⭐ SSOT: 시장 국면 분류 인터페이스
type RegimeClassifier interface {
	Classify(ctx context.Context, benchmark []Candle, breadth float64) (MarketMode, error)
}

// Selector picks the published ranked subsets
type Selector interface {
	Select(scores []SymbolScore) Selection
}

// ProgressSink receives fire-and-forget progress events
// 구현체는 절대 블로킹하거나 파이프라인을 실패시키면 안 됨
type ProgressSink interface {
	OnPhase(runID string, phase Phase)
	OnProgress(runID string, phase Phase, done, total int)
}

// ResultStore persists and loads scoring results
type ResultStore interface {
	Save(ctx context.Context, result *ScoringResult) error
	Latest(ctx context.Context, universe string) (*ScoringResult, error)
}

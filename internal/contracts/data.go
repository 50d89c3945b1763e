package contracts

import "time"

// FundamentalField names one fundamental metric
type FundamentalField string

const (
	FieldPE             FundamentalField = "pe"
	FieldPB             FundamentalField = "pb"
	FieldPS             FundamentalField = "ps"
	FieldPEG            FundamentalField = "peg"
	FieldEarningsGrowth FundamentalField = "earningsGrowth"
	FieldROE            FundamentalField = "roe"
	FieldROA            FundamentalField = "roa"
	FieldDebtToEquity   FundamentalField = "debtToEquity"
	FieldGrossMargin    FundamentalField = "grossMargin"
	FieldFCFYield       FundamentalField = "fcfYield"
	FieldFreeCashFlow   FundamentalField = "freeCashFlow"
	FieldMarketCap      FundamentalField = "marketCap"
)

// ImputableFields are ratio fields that may be filled from group medians
// 절대 규모(시가총액, FCF)는 중앙값으로 채우지 않음
func ImputableFields() []FundamentalField {
	return []FundamentalField{
		FieldPE, FieldPB, FieldPS, FieldPEG, FieldEarningsGrowth,
		FieldROE, FieldROA, FieldDebtToEquity, FieldGrossMargin, FieldFCFYield,
	}
}

// AllFundamentalFields returns every tracked fundamental field
func AllFundamentalFields() []FundamentalField {
	return append(ImputableFields(), FieldFreeCashFlow, FieldMarketCap)
}

// Fundamentals holds as-reported fundamentals; nil means not available
// 비율 단위: ROE/ROA/GrossMargin/EarningsGrowth/FCFYield 는 % (예: 18.5)
type Fundamentals struct {
	PE             *float64 `json:"pe,omitempty"`
	PB             *float64 `json:"pb,omitempty"`
	PS             *float64 `json:"ps,omitempty"`
	PEG            *float64 `json:"peg,omitempty"`
	EarningsGrowth *float64 `json:"earnings_growth,omitempty"`
	ROE            *float64 `json:"roe,omitempty"`
	ROA            *float64 `json:"roa,omitempty"`
	DebtToEquity   *float64 `json:"debt_to_equity,omitempty"`
	GrossMargin    *float64 `json:"gross_margin,omitempty"`
	FCFYield       *float64 `json:"fcf_yield,omitempty"`
	FreeCashFlow   *float64 `json:"free_cash_flow,omitempty"`
	MarketCap      *float64 `json:"market_cap,omitempty"`

	// AsOf is the date of the latest reported statement
	AsOf time.Time `json:"as_of,omitempty"`
}

// Get returns the value of a field
func (f *Fundamentals) Get(field FundamentalField) *float64 {
	if f == nil {
		return nil
	}
	switch field {
	case FieldPE:
		return f.PE
	case FieldPB:
		return f.PB
	case FieldPS:
		return f.PS
	case FieldPEG:
		return f.PEG
	case FieldEarningsGrowth:
		return f.EarningsGrowth
	case FieldROE:
		return f.ROE
	case FieldROA:
		return f.ROA
	case FieldDebtToEquity:
		return f.DebtToEquity
	case FieldGrossMargin:
		return f.GrossMargin
	case FieldFCFYield:
		return f.FCFYield
	case FieldFreeCashFlow:
		return f.FreeCashFlow
	case FieldMarketCap:
		return f.MarketCap
	default:
		return nil
	}
}

// Set assigns the value of a field
func (f *Fundamentals) Set(field FundamentalField, v *float64) {
	switch field {
	case FieldPE:
		f.PE = v
	case FieldPB:
		f.PB = v
	case FieldPS:
		f.PS = v
	case FieldPEG:
		f.PEG = v
	case FieldEarningsGrowth:
		f.EarningsGrowth = v
	case FieldROE:
		f.ROE = v
	case FieldROA:
		f.ROA = v
	case FieldDebtToEquity:
		f.DebtToEquity = v
	case FieldGrossMargin:
		f.GrossMargin = v
	case FieldFCFYield:
		f.FCFYield = v
	case FieldFreeCashFlow:
		f.FreeCashFlow = v
	case FieldMarketCap:
		f.MarketCap = v
	}
}

// Clone returns a deep copy
func (f *Fundamentals) Clone() *Fundamentals {
	if f == nil {
		return nil
	}
	out := &Fundamentals{AsOf: f.AsOf}
	for _, field := range AllFundamentalFields() {
		if v := f.Get(field); v != nil {
			out.Set(field, Float(*v))
		}
	}
	return out
}

// TechnicalMetrics holds price-derived metrics
// 수익률/변동성 단위: 소수 (0.15 = 15%)
type TechnicalMetrics struct {
	Price        *float64 `json:"price,omitempty"`
	Return13W    *float64 `json:"return_13w,omitempty"`
	Return26W    *float64 `json:"return_26w,omitempty"`
	Return52W    *float64 `json:"return_52w,omitempty"`
	High52W      *float64 `json:"high_52w,omitempty"`
	Low52W       *float64 `json:"low_52w,omitempty"`
	Volatility3M *float64 `json:"volatility_3m,omitempty"`
	Beta         *float64 `json:"beta,omitempty"`

	AsOf time.Time `json:"as_of,omitempty"`
}

// Clone returns a deep copy
func (t *TechnicalMetrics) Clone() *TechnicalMetrics {
	if t == nil {
		return nil
	}
	return &TechnicalMetrics{
		Price:        copyFloat(t.Price),
		Return13W:    copyFloat(t.Return13W),
		Return26W:    copyFloat(t.Return26W),
		Return52W:    copyFloat(t.Return52W),
		High52W:      copyFloat(t.High52W),
		Low52W:       copyFloat(t.Low52W),
		Volatility3M: copyFloat(t.Volatility3M),
		Beta:         copyFloat(t.Beta),
		AsOf:         t.AsOf,
	}
}

// CompanyProfile holds descriptive data
type CompanyProfile struct {
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Country  string `json:"country,omitempty"`
	Currency string `json:"currency,omitempty"`
	IsETF    bool   `json:"is_etf,omitempty"`
}

// Candle is one daily OHLCV bar
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// FetchTimes records when each field class was fetched
type FetchTimes struct {
	Fundamentals time.Time `json:"fundamentals,omitempty"`
	Technical    time.Time `json:"technical,omitempty"`
	Profile      time.Time `json:"profile,omitempty"`
}

// RawSymbolData is one symbol's as-fetched data
// ⭐ SSOT: Fetch → Resolver 전달, 수집 이후 변경 금지
type RawSymbolData struct {
	Symbol       string            `json:"symbol"`
	Fundamentals *Fundamentals     `json:"fundamentals,omitempty"`
	Technical    *TechnicalMetrics `json:"technical,omitempty"`
	Profile      *CompanyProfile   `json:"profile,omitempty"`
	FetchedAt    FetchTimes        `json:"fetched_at"`
}

// IsEmpty reports whether nothing was fetched for the symbol
func (r *RawSymbolData) IsEmpty() bool {
	return r == nil || (r.Fundamentals == nil && r.Technical == nil && r.Profile == nil)
}

// Sector returns the profile sector or an empty string
func (r *RawSymbolData) Sector() string {
	if r == nil || r.Profile == nil {
		return ""
	}
	return r.Profile.Sector
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

package finnhub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/technicals"
	"github.com/wonny/evidence/pkg/httputil"
	"github.com/wonny/evidence/pkg/logger"
)

// ProviderName identifies this adapter in errors and provenance
const ProviderName = "finnhub"

// DefaultBaseURL is the public REST endpoint
const DefaultBaseURL = "https://finnhub.io/api/v1"

// ErrNoData is returned when Finnhub has nothing for a symbol
var ErrNoData = errors.New("no data")

// Client handles communication with the Finnhub REST API
// ⭐ SSOT: Finnhub API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	candleDays int
	requests   atomic.Int64
	now        func() time.Time
}

// NewClient creates a new Finnhub client
func NewClient(httpClient *httputil.Client, baseURL, apiKey string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("provider", ProviderName),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		candleDays: 400,
		now:        time.Now,
	}
}

// Name returns the provider name
func (c *Client) Name() string { return ProviderName }

// RequestCount returns the number of REST calls made
func (c *Client) RequestCount() int64 { return c.requests.Load() }

// Close is a no-op
func (c *Client) Close() error { return nil }

// metricResponse is /stock/metric?metric=all
type metricResponse struct {
	Metric map[string]*float64 `json:"metric"`
}

func (m *metricResponse) get(keys ...string) *float64 {
	for _, k := range keys {
		if v := m.Metric[k]; v != nil {
			return v
		}
	}
	return nil
}

// scaled returns v·f, nil-preserving
func scaled(v *float64, f float64) *float64 {
	if v == nil {
		return nil
	}
	return contracts.Float(*v * f)
}

type profileResponse struct {
	Name     string `json:"name"`
	Ticker   string `json:"ticker"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
	Industry string `json:"finnhubIndustry"`
}

type candleResponse struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Volume []float64 `json:"v"`
	Time   []int64   `json:"t"`
	Status string    `json:"s"`
}

type quoteResponse struct {
	Current float64 `json:"c"`
	Time    int64   `json:"t"`
}

// GetFundamentals maps /stock/metric onto contracts.Fundamentals
// 시가총액은 백만 단위로 제공됨
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	m, err := c.metrics(ctx, symbol, contracts.MethodFundamentals)
	if err != nil {
		return nil, err
	}

	f := &contracts.Fundamentals{
		PE:             m.get("peTTM", "peBasicExclExtraTTM", "peExclExtraTTM"),
		PB:             m.get("pbQuarterly", "pbAnnual", "pb"),
		PS:             m.get("psTTM", "psAnnual"),
		PEG:            m.get("pegTTM"),
		EarningsGrowth: m.get("epsGrowthTTMYoy", "epsGrowth3Y"),
		ROE:            m.get("roeTTM", "roeRfy"),
		ROA:            m.get("roaTTM", "roaRfy"),
		DebtToEquity:   m.get("totalDebt/totalEquityQuarterly", "totalDebt/totalEquityAnnual"),
		GrossMargin:    m.get("grossMarginTTM", "grossMarginAnnual"),
		MarketCap:      scaled(m.get("marketCapitalization"), 1e6),
		AsOf:           c.now().UTC().Truncate(24 * time.Hour),
	}
	// P/FCF → FCF 역산
	if pfcf := m.get("pfcfShareTTM", "pfcfShareAnnual"); pfcf != nil && *pfcf > 0 && f.MarketCap != nil {
		f.FreeCashFlow = contracts.Float(*f.MarketCap / *pfcf)
	}
	return f, nil
}

// GetTechnicalMetrics derives metrics from daily candles, filling gaps from /stock/metric
func (c *Client) GetTechnicalMetrics(ctx context.Context, symbol string) (*contracts.TechnicalMetrics, error) {
	candles, cerr := c.GetCandles(ctx, symbol, c.candleDays)
	primary := technicals.FromCandles(candles)
	if cerr != nil {
		c.logger.WithSymbol(symbol).WithError(cerr).Debug("Candles unavailable, using metric endpoint")
	}

	var secondary *contracts.TechnicalMetrics
	m, merr := c.metrics(ctx, symbol, contracts.MethodTechnical)
	if merr == nil {
		// 수익률/변동성은 % 단위로 제공됨
		secondary = &contracts.TechnicalMetrics{
			Return13W:    scaled(m.get("13WeekPriceReturnDaily"), 0.01),
			Return26W:    scaled(m.get("26WeekPriceReturnDaily"), 0.01),
			Return52W:    scaled(m.get("52WeekPriceReturnDaily"), 0.01),
			High52W:      m.get("52WeekHigh"),
			Low52W:       m.get("52WeekLow"),
			Volatility3M: scaled(m.get("3MonthADReturnStd"), 0.01),
			Beta:         m.get("beta"),
		}
	}

	if primary == nil && secondary == nil {
		return nil, contracts.NewProviderError(ProviderName, symbol, contracts.MethodTechnical,
			errors.Join(cerr, merr, ErrNoData))
	}

	out := technicals.Merge(primary, secondary)
	if out.Price == nil {
		var q quoteResponse
		if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &q); err == nil && q.Current > 0 {
			out.Price = contracts.Float(q.Current)
			if q.Time > 0 {
				out.AsOf = time.Unix(q.Time, 0).UTC()
			}
		}
	}
	if out.Price == nil {
		return nil, contracts.NewProviderError(ProviderName, symbol, contracts.MethodTechnical,
			fmt.Errorf("%w: price", ErrNoData))
	}
	return out, nil
}

// GetCompanyProfile maps /stock/profile2
// Finnhub 은 sector 를 따로 주지 않음 → finnhubIndustry 를 sector/industry 양쪽에 사용
func (c *Client) GetCompanyProfile(ctx context.Context, symbol string) (*contracts.CompanyProfile, error) {
	var p profileResponse
	if err := c.get(ctx, "/stock/profile2", url.Values{"symbol": {symbol}}, &p); err != nil {
		return nil, contracts.NewProviderError(ProviderName, symbol, contracts.MethodProfile, err)
	}
	if p.Name == "" && p.Ticker == "" {
		return nil, contracts.NewProviderError(ProviderName, symbol, contracts.MethodProfile, ErrNoData)
	}
	return &contracts.CompanyProfile{
		Name:     p.Name,
		Sector:   p.Industry,
		Industry: p.Industry,
		Country:  p.Country,
		Currency: p.Currency,
	}, nil
}

// GetCandles fetches daily candles for the last daysBack days
func (c *Client) GetCandles(ctx context.Context, symbol string, daysBack int) ([]contracts.Candle, error) {
	to := c.now().UTC()
	from := to.AddDate(0, 0, -daysBack)

	params := url.Values{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {fmt.Sprint(from.Unix())},
		"to":         {fmt.Sprint(to.Unix())},
	}

	var r candleResponse
	if err := c.get(ctx, "/stock/candle", params, &r); err != nil {
		return nil, contracts.NewProviderError(ProviderName, symbol, contracts.MethodCandles, err)
	}
	if r.Status != "ok" || len(r.Close) == 0 {
		return nil, contracts.NewProviderError(ProviderName, symbol, contracts.MethodCandles, ErrNoData)
	}

	n := len(r.Close)
	if len(r.Time) < n {
		n = len(r.Time)
	}
	at := func(s []float64, i int) float64 {
		if i < len(s) {
			return s[i]
		}
		return r.Close[i]
	}

	out := make([]contracts.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, contracts.Candle{
			Date:   time.Unix(r.Time[i], 0).UTC(),
			Open:   at(r.Open, i),
			High:   at(r.High, i),
			Low:    at(r.Low, i),
			Close:  r.Close[i],
			Volume: at(r.Volume, i),
		})
	}
	return out, nil
}

func (c *Client) metrics(ctx context.Context, symbol, method string) (*metricResponse, error) {
	var m metricResponse
	if err := c.get(ctx, "/stock/metric", url.Values{"symbol": {symbol}, "metric": {"all"}}, &m); err != nil {
		return nil, contracts.NewProviderError(ProviderName, symbol, method, err)
	}
	if len(m.Metric) == 0 {
		return nil, contracts.NewProviderError(ProviderName, symbol, method, ErrNoData)
	}
	return &m, nil
}

// get performs one authenticated GET and decodes the JSON body
func (c *Client) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	if c.apiKey != "" {
		params.Set("token", c.apiKey)
	}
	c.requests.Add(1)
	return c.httpClient.GetJSON(ctx, c.baseURL+path+"?"+params.Encode(), dest)
}

var _ contracts.MarketDataProvider = (*Client)(nil)

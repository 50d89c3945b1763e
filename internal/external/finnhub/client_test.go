package finnhub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/config"
	"github.com/wonny/evidence/pkg/httputil"
	"github.com/wonny/evidence/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newServer(t *testing.T, candlesOK bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/stock/metric", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		if r.URL.Query().Get("symbol") == "NONE" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"metric": map[string]interface{}{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"metric": map[string]interface{}{
				"peTTM":                          25.0,
				"pbQuarterly":                    8.5,
				"psTTM":                          6.1,
				"epsGrowthTTMYoy":                12.0,
				"roeTTM":                         150.0,
				"roaTTM":                         28.0,
				"totalDebt/totalEquityQuarterly": 1.8,
				"grossMarginTTM":                 45.0,
				"marketCapitalization":           2500000.0,
				"pfcfShareTTM":                   25.0,
				"13WeekPriceReturnDaily":         5.0,
				"52WeekHigh":                     260.0,
				"52WeekLow":                      160.0,
				"3MonthADReturnStd":              22.0,
				"beta":                           1.1,
			},
		})
	})

	mux.HandleFunc("/stock/profile2", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "NONE" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		_ = json.NewEncoder(w).Encode(profileResponse{Name: "Apple Inc", Ticker: "AAPL", Industry: "Technology", Country: "US"})
	})

	mux.HandleFunc("/stock/candle", func(w http.ResponseWriter, r *http.Request) {
		if !candlesOK {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"You don't have access to this resource."}`))
			return
		}
		resp := candleResponse{Status: "ok"}
		start := fixedNow.AddDate(0, 0, -300)
		for i := 0; i < 300; i++ {
			c := 100 + float64(i)*0.2
			resp.Close = append(resp.Close, c)
			resp.High = append(resp.High, c+1)
			resp.Low = append(resp.Low, c-1)
			resp.Open = append(resp.Open, c)
			resp.Volume = append(resp.Volume, 1e6)
			resp.Time = append(resp.Time, start.AddDate(0, 0, i).Unix())
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(quoteResponse{Current: 212.5, Time: fixedNow.Unix()})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) *Client {
	cfg := &config.Config{Provider: config.ProviderConfig{CallTimeout: 5 * time.Second}}
	hc := httputil.New(cfg, logger.NewNop()).DisableRetry()
	c := NewClient(hc, srv.URL+"/", "secret", logger.NewNop())
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestGetFundamentals(t *testing.T) {
	c := newClient(newServer(t, true))

	f, err := c.GetFundamentals(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 25.0, *f.PE)
	assert.Equal(t, 150.0, *f.ROE)
	assert.Equal(t, 2.5e12, *f.MarketCap)
	assert.Equal(t, 1e11, *f.FreeCashFlow)
	assert.Nil(t, f.PEG)
	assert.Equal(t, fixedNow, f.AsOf)

	_, err = c.GetFundamentals(context.Background(), "NONE")
	var pe *contracts.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, contracts.MethodFundamentals, pe.Method)
}

func TestGetTechnicalMetrics(t *testing.T) {
	t.Run("candles available", func(t *testing.T) {
		c := newClient(newServer(t, true))
		tm, err := c.GetTechnicalMetrics(context.Background(), "AAPL")
		require.NoError(t, err)

		assert.InDelta(t, 159.8, *tm.Price, 1e-9)
		assert.Equal(t, 1.1, *tm.Beta) // candles 에 없는 값은 metric 에서 보충
		require.NotNil(t, tm.Return13W)
		assert.InDelta(t, 159.8/(100+236*0.2)-1, *tm.Return13W, 1e-9)
	})

	t.Run("candles forbidden falls back to metric and quote", func(t *testing.T) {
		c := newClient(newServer(t, false))
		tm, err := c.GetTechnicalMetrics(context.Background(), "AAPL")
		require.NoError(t, err)

		assert.Equal(t, 212.5, *tm.Price)
		assert.InDelta(t, 0.05, *tm.Return13W, 1e-9)
		assert.InDelta(t, 0.22, *tm.Volatility3M, 1e-9)
		assert.Equal(t, fixedNow, tm.AsOf)
	})
}

func TestGetCompanyProfile(t *testing.T) {
	c := newClient(newServer(t, true))

	p, err := c.GetCompanyProfile(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc", p.Name)
	assert.Equal(t, "Technology", p.Sector)

	_, err = c.GetCompanyProfile(context.Background(), "NONE")
	assert.ErrorIs(t, err, ErrNoData)

	assert.EqualValues(t, 2, c.RequestCount())
}

func TestGetCandlesStatusError(t *testing.T) {
	c := newClient(newServer(t, false))

	_, err := c.GetCandles(context.Background(), "AAPL", 30)
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

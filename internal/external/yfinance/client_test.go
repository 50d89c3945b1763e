package yfinance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/logger"
)

// helperCommand re-executes the test binary in place of python
func helperCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

func newTestClient(timeout time.Duration) *Client {
	c := NewClient(Config{ScriptsDir: "scripts", CallTimeout: timeout}, logger.NewNop())
	c.command = helperCommand
	return c
}

// TestHelperProcess is not a real test; it fakes the python scripts
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	// -- python <script> [flags...]
	script := filepath.Base(args[2])
	args = args[3:]

	flags := map[string]string{}
	for i := 0; i+1 < len(args); i += 2 {
		flags[args[i]] = args[i+1]
	}

	out := json.NewEncoder(os.Stdout)
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "warning: noisy python")
		fmt.Fprintf(os.Stderr, `{"error": %q}`+"\n", msg)
		os.Exit(1)
	}

	if script == batchScript {
		var req batchRequest
		data, _ := io.ReadAll(os.Stdin)
		if err := json.Unmarshal(data, &req); err != nil {
			fail("invalid JSON input")
		}
		resp := map[string]interface{}{}
		for _, sym := range req.Symbols {
			if sym == "BAD" {
				resp[sym] = map[string]string{"error": "delisted"}
				continue
			}
			item := map[string]interface{}{}
			for _, m := range req.Methods {
				item[m] = payload(m, 300)
			}
			resp[sym] = item
		}
		_ = out.Encode(resp)
		return
	}

	switch flags["--symbol"] {
	case "FAIL":
		fail("no data for FAIL")
	case "SLOW":
		time.Sleep(5 * time.Second)
	case "GARBAGE":
		fmt.Fprintln(os.Stdout, "not json")
		return
	}
	days := 300
	if v, ok := flags["--days_back"]; ok {
		_, _ = fmt.Sscanf(v, "%d", &days)
	}
	_ = out.Encode(payload(flags["--method"], days))
}

func payload(method string, days int) interface{} {
	switch method {
	case contracts.MethodFundamentals:
		return map[string]interface{}{"pe": 21.5, "market_cap": 2.5e12, "as_of": "2026-01-31T00:00:00Z"}
	case contracts.MethodProfile:
		return map[string]interface{}{"name": "Apple Inc.", "sector": "Technology", "industry": "Consumer Electronics"}
	case contracts.MethodTechnical:
		return map[string]interface{}{"beta": 1.2, "candles": candles(300)}
	case contracts.MethodCandles:
		return candles(days)
	}
	return nil
}

func candles(n int) []contracts.Candle {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]contracts.Candle, n)
	for i := range out {
		c := 100 + float64(i)*0.5
		out[i] = contracts.Candle{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return out
}

func TestClientMethods(t *testing.T) {
	c := newTestClient(10 * time.Second)
	ctx := context.Background()

	f, err := c.GetFundamentals(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, f.PE)
	assert.Equal(t, 21.5, *f.PE)
	assert.Equal(t, 2.5e12, *f.MarketCap)
	assert.Equal(t, 2026, f.AsOf.Year())

	p, err := c.GetCompanyProfile(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Technology", p.Sector)

	tm, err := c.GetTechnicalMetrics(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, tm.Price)
	assert.InDelta(t, 249.5, *tm.Price, 1e-9)
	assert.Equal(t, 1.2, *tm.Beta)
	assert.NotNil(t, tm.Return13W)

	cs, err := c.GetCandles(ctx, "AAPL", 60)
	require.NoError(t, err)
	assert.Len(t, cs, 60)

	assert.EqualValues(t, 4, c.RequestCount())
}

func TestClientErrors(t *testing.T) {
	c := newTestClient(2 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name    string
		symbol  string
		wantMsg string
	}{
		{"script error on stderr", "FAIL", "no data for FAIL"},
		{"timeout", "SLOW", "timeout after"},
		{"undecodable output", "GARBAGE", "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.GetFundamentals(ctx, tt.symbol)
			require.Error(t, err)

			var pe *contracts.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, ProviderName, pe.Provider)
			assert.Equal(t, contracts.MethodFundamentals, pe.Method)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClientBatch(t *testing.T) {
	c := newTestClient(10 * time.Second)

	items, err := c.FetchBatch(context.Background(),
		[]string{"AAPL", "BAD"},
		[]string{contracts.MethodFundamentals, contracts.MethodTechnical, contracts.MethodProfile})
	require.NoError(t, err)
	require.Len(t, items, 2)

	good := items["AAPL"]
	assert.Empty(t, good.Error)
	require.NotNil(t, good.Fundamentals)
	require.NotNil(t, good.Technical)
	assert.Equal(t, "Apple Inc.", good.Profile.Name)

	assert.Equal(t, "delisted", items["BAD"].Error)
	assert.EqualValues(t, 1, c.RequestCount())

	empty, err := c.FetchBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestScriptError(t *testing.T) {
	assert.Equal(t, "boom", scriptError([]byte("Traceback...\n{\"error\": \"boom\"}\n")))
	assert.Equal(t, "plain failure", scriptError([]byte("plain failure")))
	assert.Equal(t, "no output", scriptError(nil))
}

package yfinance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/technicals"
	"github.com/wonny/evidence/pkg/logger"
)

// ProviderName identifies this adapter in errors and provenance
const ProviderName = "yfinance"

const (
	cliScript   = "yfinance_cli.py"
	batchScript = "yfinance_batch.py"
)

// Config holds subprocess settings
type Config struct {
	PythonPath  string
	ScriptsDir  string
	CallTimeout time.Duration // 호출 단위 타임아웃
	CandleDays  int           // technical 계산용 캔들 기간
}

// DefaultConfig returns default settings
func DefaultConfig() Config {
	return Config{
		PythonPath:  "python3",
		ScriptsDir:  "scripts",
		CallTimeout: 45 * time.Second,
		CandleDays:  400,
	}
}

type commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Client runs the yfinance helper scripts as subprocesses
// ⭐ SSOT: yfinance 호출은 이 클라이언트에서만 (프로세스 1회 = 요청 1회)
type Client struct {
	config   Config
	logger   *logger.Logger
	requests atomic.Int64
	command  commandFunc
}

// NewClient creates a new subprocess client
func NewClient(config Config, log *logger.Logger) *Client {
	def := DefaultConfig()
	if config.PythonPath == "" {
		config.PythonPath = def.PythonPath
	}
	if config.ScriptsDir == "" {
		config.ScriptsDir = def.ScriptsDir
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = def.CallTimeout
	}
	if config.CandleDays <= 0 {
		config.CandleDays = def.CandleDays
	}
	return &Client{
		config:  config,
		logger:  log.WithField("provider", ProviderName),
		command: exec.CommandContext,
	}
}

// Name returns the provider name
func (c *Client) Name() string { return ProviderName }

// RequestCount returns the number of subprocess invocations
func (c *Client) RequestCount() int64 { return c.requests.Load() }

// Close is a no-op; every call owns its process
func (c *Client) Close() error { return nil }

// technicalWire is the script's technical payload
type technicalWire struct {
	Beta    *float64           `json:"beta"`
	Candles []contracts.Candle `json:"candles"`
}

func (w *technicalWire) metrics() *contracts.TechnicalMetrics {
	if w == nil {
		return nil
	}
	tm := technicals.FromCandles(w.Candles)
	if tm == nil {
		return nil
	}
	tm.Beta = w.Beta
	return tm
}

// GetFundamentals fetches as-reported fundamentals
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	var out contracts.Fundamentals
	if err := c.runCLI(ctx, symbol, contracts.MethodFundamentals, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTechnicalMetrics fetches daily candles and derives technical metrics
func (c *Client) GetTechnicalMetrics(ctx context.Context, symbol string) (*contracts.TechnicalMetrics, error) {
	var wire technicalWire
	args := []string{"--days_back", strconv.Itoa(c.config.CandleDays)}
	if err := c.runCLI(ctx, symbol, contracts.MethodTechnical, args, &wire); err != nil {
		return nil, err
	}
	tm := wire.metrics()
	if tm == nil {
		return nil, contracts.NewProviderError(ProviderName, symbol, contracts.MethodTechnical, errors.New("no usable candles"))
	}
	return tm, nil
}

// GetCompanyProfile fetches descriptive data
func (c *Client) GetCompanyProfile(ctx context.Context, symbol string) (*contracts.CompanyProfile, error) {
	var out contracts.CompanyProfile
	if err := c.runCLI(ctx, symbol, contracts.MethodProfile, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCandles fetches daily candles
func (c *Client) GetCandles(ctx context.Context, symbol string, daysBack int) ([]contracts.Candle, error) {
	var out []contracts.Candle
	args := []string{"--days_back", strconv.Itoa(daysBack)}
	if err := c.runCLI(ctx, symbol, contracts.MethodCandles, args, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// batchRequest is written to the batch script's stdin
type batchRequest struct {
	Symbols []string `json:"symbols"`
	Methods []string `json:"methods"`
}

type batchWire struct {
	Fundamentals *contracts.Fundamentals   `json:"fundamentals"`
	Technical    *technicalWire            `json:"technical"`
	Profile      *contracts.CompanyProfile `json:"profile"`
	Error        string                    `json:"error"`
}

// FetchBatch fetches many symbols in one subprocess
// 종목별 실패는 BatchItem.Error 로 반환, 프로세스 실패만 error
func (c *Client) FetchBatch(ctx context.Context, symbols []string, methods []string) (map[string]contracts.BatchItem, error) {
	if len(symbols) == 0 {
		return map[string]contracts.BatchItem{}, nil
	}

	input, err := json.Marshal(batchRequest{Symbols: symbols, Methods: methods})
	if err != nil {
		return nil, fmt.Errorf("encode batch request: %w", err)
	}

	var wire map[string]batchWire
	if err := c.run(ctx, batchScript, nil, input, &wire); err != nil {
		return nil, contracts.NewProviderError(ProviderName, strings.Join(symbols, ","), "batch", err)
	}

	out := make(map[string]contracts.BatchItem, len(wire))
	for sym, w := range wire {
		item := contracts.BatchItem{
			Fundamentals: w.Fundamentals,
			Profile:      w.Profile,
			Error:        w.Error,
		}
		if w.Technical != nil {
			item.Technical = w.Technical.metrics()
			if item.Technical == nil && item.Error == "" {
				item.Error = "no usable candles"
			}
		}
		out[strings.ToUpper(sym)] = item
	}

	c.logger.WithFields(map[string]interface{}{
		"symbols":  len(symbols),
		"returned": len(out),
		"methods":  methods,
	}).Debug("Batch fetch completed")

	return out, nil
}

func (c *Client) runCLI(ctx context.Context, symbol, method string, extra []string, dest interface{}) error {
	args := append([]string{"--symbol", symbol, "--method", method}, extra...)
	if err := c.run(ctx, cliScript, args, nil, dest); err != nil {
		return contracts.NewProviderError(ProviderName, symbol, method, err)
	}
	return nil
}

// run executes one script and decodes its stdout
func (c *Client) run(ctx context.Context, script string, args []string, stdin []byte, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	c.requests.Add(1)
	start := time.Now()

	argv := append([]string{filepath.Join(c.config.ScriptsDir, script)}, args...)
	cmd := c.command(ctx, c.config.PythonPath, argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	err := cmd.Run()
	duration := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("timeout after %s: %w", c.config.CallTimeout, ctxErr)
		}
		return ctxErr
	}
	if err != nil {
		msg := scriptError(stderr.Bytes())
		c.logger.WithFields(map[string]interface{}{
			"script":   script,
			"duration": duration,
			"stderr":   msg,
		}).Debug("Subprocess failed")
		return fmt.Errorf("%s: %s", err, msg)
	}

	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), dest); err != nil {
		return fmt.Errorf("decode %s output: %w", script, err)
	}
	return nil
}

// scriptError extracts {"error": "..."} from stderr, falling back to the raw text
func scriptError(stderr []byte) string {
	trimmed := bytes.TrimSpace(stderr)
	var payload struct {
		Error string `json:"error"`
	}
	// 마지막 줄이 JSON 에러 (앞줄은 python 경고일 수 있음)
	if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if json.Unmarshal(trimmed, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	if len(trimmed) > 256 {
		trimmed = trimmed[:256]
	}
	if len(trimmed) == 0 {
		return "no output"
	}
	return string(trimmed)
}

var (
	_ contracts.MarketDataProvider = (*Client)(nil)
	_ contracts.BatchProvider      = (*Client)(nil)
)

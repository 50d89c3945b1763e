package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/logger"
	"github.com/wonny/evidence/pkg/redis"
)

// ErrEmptyResponse is returned when a provider answers without data
var ErrEmptyResponse = errors.New("empty provider response")

// TTLs holds per-class cache lifetimes
type TTLs struct {
	Fundamentals time.Duration
	Technical    time.Duration
	Profile      time.Duration
}

// DefaultTTLs returns 24h / 1h / 7d
func DefaultTTLs() TTLs {
	return TTLs{
		Fundamentals: 24 * time.Hour,
		Technical:    time.Hour,
		Profile:      7 * 24 * time.Hour,
	}
}

// For returns the TTL of a class
func (t TTLs) For(class string) time.Duration {
	switch class {
	case ClassFundamentals:
		return t.Fundamentals
	case ClassTechnical:
		return t.Technical
	default:
		return t.Profile
	}
}

// Config holds fetcher settings
type Config struct {
	TTLs      TTLs
	BatchSize int
	Breaker   BreakerConfig
}

// DefaultConfig returns default fetcher settings
func DefaultConfig() Config {
	return Config{
		TTLs:      DefaultTTLs(),
		BatchSize: 50,
		Breaker:   DefaultBreakerConfig(),
	}
}

// Outcome is one symbol's fetch result with provenance
// fallback 사용 여부는 class 별로 기록 (조용한 병합 금지)
type Outcome struct {
	Raw                  *contracts.RawSymbolData
	FallbackFundamentals bool
	FallbackTechnical    bool
	FallbackProfile      bool
	FromCache            bool
}

// UsedFallback reports whether any class came from the fallback provider
func (o *Outcome) UsedFallback() bool {
	return o.FallbackFundamentals || o.FallbackTechnical || o.FallbackProfile
}

// Provenance lists "<class>:fallback" markers for the data-quality record
func (o *Outcome) Provenance() []string {
	var out []string
	if o.FallbackFundamentals {
		out = append(out, ClassFundamentals+":fallback")
	}
	if o.FallbackTechnical {
		out = append(out, ClassTechnical+":fallback")
	}
	if o.FallbackProfile {
		out = append(out, ClassProfile+":fallback")
	}
	return out
}

// envelope is the cached form of one class
type envelope struct {
	Provider  string          `json:"provider"`
	FetchedAt time.Time       `json:"fetched_at"`
	Data      json.RawMessage `json:"data"`
}

// Fetcher reads symbol data through cache, throttle, breaker and fallback
// ⭐ SSOT: 외부 데이터 접근은 이 구조체를 통해서만
type Fetcher struct {
	primary   contracts.MarketDataProvider
	fallback  contracts.MarketDataProvider
	cache     Cache
	throttler *Throttler
	breaker   *Breaker
	config    Config
	group     singleflight.Group
	logger    *logger.Logger
	now       func() time.Time
}

// NewFetcher creates a fetcher; fallback may be nil
func NewFetcher(primary, fallback contracts.MarketDataProvider, cache Cache, throttler *Throttler, config Config, log *logger.Logger) *Fetcher {
	if config.BatchSize < 1 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if throttler == nil {
		throttler = NewThrottler(0)
	}
	return &Fetcher{
		primary:   primary,
		fallback:  fallback,
		cache:     cache,
		throttler: throttler,
		breaker:   NewBreaker(primary.Name(), config.Breaker, log),
		config:    config,
		logger:    log,
		now:       time.Now,
	}
}

// Primary returns the primary provider name
func (f *Fetcher) Primary() string {
	return f.primary.Name()
}

// BreakerState returns the primary breaker state
func (f *Fetcher) BreakerState() string {
	return f.breaker.State()
}

// FetchSymbolDataWithCache returns one symbol's data, filling cache misses per class
// 일부 class 실패 시 Outcome 은 나머지 데이터를 담고 err 에 실패 class 가 묶여 반환됨
func (f *Fetcher) FetchSymbolDataWithCache(ctx context.Context, symbol string, stats *Stats) (*Outcome, error) {
	symbol = normalize(symbol)
	out := newOutcome(symbol)
	hits := 0
	var errs []error

	for _, class := range Classes {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		env, ok := f.lookup(ctx, symbol, class, stats)
		if ok {
			hits++
		} else {
			var err error
			env, err = f.fill(ctx, symbol, class, stats)
			if err != nil {
				errs = append(errs, err)
				continue
			}
		}

		if err := f.apply(out, class, env); err != nil {
			errs = append(errs, contracts.NewProviderError(env.Provider, symbol, class, err))
		}
	}

	out.FromCache = hits == len(Classes)
	return out, errors.Join(errs...)
}

// FetchBatch fetches many symbols, using multi-symbol calls when the primary supports them
// 캐시 히트 먼저, 나머지는 BatchSize 단위로 1회 호출. 배치 호출 실패 시 종목 단위로 강등
func (f *Fetcher) FetchBatch(ctx context.Context, symbols []string, stats *Stats) (map[string]*Outcome, map[string]error) {
	outcomes := make(map[string]*Outcome, len(symbols))
	failures := make(map[string]error)
	missing := make(map[string][]string)
	pending := make([]string, 0, len(symbols))

	for _, s := range symbols {
		symbol := normalize(s)
		if _, dup := outcomes[symbol]; dup || symbol == "" {
			continue
		}
		out := newOutcome(symbol)
		outcomes[symbol] = out

		for _, class := range Classes {
			env, ok := f.lookup(ctx, symbol, class, stats)
			if !ok {
				missing[symbol] = append(missing[symbol], class)
				continue
			}
			if err := f.apply(out, class, env); err != nil {
				missing[symbol] = append(missing[symbol], class)
			}
		}

		if len(missing[symbol]) == 0 {
			out.FromCache = true
			continue
		}
		pending = append(pending, symbol)
	}

	bp, ok := f.primary.(contracts.BatchProvider)
	if !ok || f.breaker.IsOpen() {
		for _, symbol := range pending {
			if err := f.fillMissing(ctx, symbol, outcomes[symbol], missing[symbol], stats); err != nil {
				failures[symbol] = err
			}
		}
		return outcomes, failures
	}

	for start := 0; start < len(pending); start += f.config.BatchSize {
		end := start + f.config.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		if err := ctx.Err(); err != nil {
			for _, symbol := range pending[start:] {
				failures[symbol] = err
			}
			break
		}

		items, err := f.callBatch(ctx, bp, chunk, methodsFor(chunk, missing), stats)
		if err != nil {
			f.logger.WithError(err).WithFields(map[string]interface{}{
				"provider": f.primary.Name(),
				"symbols":  len(chunk),
			}).Warn("Batch request failed, degrading to per-symbol fetches")

			for _, symbol := range chunk {
				if err := f.fillMissing(ctx, symbol, outcomes[symbol], missing[symbol], stats); err != nil {
					failures[symbol] = err
				}
			}
			continue
		}

		for _, symbol := range chunk {
			if err := f.storeBatchItem(ctx, symbol, items, outcomes[symbol], missing[symbol]); err != nil {
				failures[symbol] = err
			}
		}
	}

	return outcomes, failures
}

// FetchCandles reads daily candles without caching (benchmark series)
func (f *Fetcher) FetchCandles(ctx context.Context, symbol string, daysBack int, stats *Stats) ([]contracts.Candle, error) {
	symbol = normalize(symbol)
	call := func(p contracts.MarketDataProvider, fallback bool) ([]contracts.Candle, error) {
		if err := f.wait(ctx, stats); err != nil {
			return nil, err
		}
		candles, err := p.GetCandles(ctx, symbol, daysBack)
		stats.RecordRequest(p.Name(), contracts.MethodCandles, fallback, err)
		if err != nil {
			return nil, asProviderError(p.Name(), symbol, contracts.MethodCandles, err)
		}
		return candles, nil
	}

	result, err := f.breaker.Execute(func() (interface{}, error) {
		return call(f.primary, false)
	})
	if err == nil {
		return result.([]contracts.Candle), nil
	}
	if f.fallback == nil || ctx.Err() != nil {
		return nil, asProviderError(f.primary.Name(), symbol, contracts.MethodCandles, err)
	}
	return call(f.fallback, true)
}

// =============================================================================
// cache helpers
// =============================================================================

func (f *Fetcher) key(class, symbol string) string {
	return redis.FieldKey(f.primary.Name(), class, symbol)
}

func (f *Fetcher) lookup(ctx context.Context, symbol, class string, stats *Stats) (*envelope, bool) {
	data, ok, err := f.cache.Get(ctx, f.key(class, symbol))
	if err != nil {
		f.logger.WithError(err).WithSymbol(symbol).Debug("Cache read failed, treating as miss")
	}
	if err != nil || !ok {
		stats.RecordLookup(class, false)
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		stats.RecordLookup(class, false)
		return nil, false
	}
	stats.RecordLookup(class, true)
	return &env, true
}

func (f *Fetcher) store(ctx context.Context, symbol, class, provider string, value interface{}) (*envelope, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", class, err)
	}
	env := &envelope{Provider: provider, FetchedAt: f.now().UTC(), Data: data}

	encoded, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", class, err)
	}
	if err := f.cache.Set(ctx, f.key(class, symbol), encoded, f.config.TTLs.For(class)); err != nil {
		f.logger.WithError(err).WithSymbol(symbol).Warn("Cache write failed")
	}
	return env, nil
}

// fill fetches one missing class; concurrent fills for the same key share one call
func (f *Fetcher) fill(ctx context.Context, symbol, class string, stats *Stats) (*envelope, error) {
	v, err, _ := f.group.Do(f.key(class, symbol), func() (interface{}, error) {
		value, provider, err := f.fetchClass(ctx, symbol, class, stats)
		if err != nil {
			return nil, err
		}
		return f.store(ctx, symbol, class, provider, value)
	})
	if err != nil {
		return nil, err
	}
	return v.(*envelope), nil
}

func (f *Fetcher) fillMissing(ctx context.Context, symbol string, out *Outcome, classes []string, stats *Stats) error {
	var errs []error
	for _, class := range classes {
		env, err := f.fill(ctx, symbol, class, stats)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := f.apply(out, class, env); err != nil {
			errs = append(errs, contracts.NewProviderError(env.Provider, symbol, class, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fetcher) apply(out *Outcome, class string, env *envelope) error {
	fallback := env.Provider != f.primary.Name()
	raw := out.Raw

	switch class {
	case ClassFundamentals:
		var v contracts.Fundamentals
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return err
		}
		raw.Fundamentals = &v
		raw.FetchedAt.Fundamentals = env.FetchedAt
		out.FallbackFundamentals = fallback
	case ClassTechnical:
		var v contracts.TechnicalMetrics
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return err
		}
		raw.Technical = &v
		raw.FetchedAt.Technical = env.FetchedAt
		out.FallbackTechnical = fallback
	case ClassProfile:
		var v contracts.CompanyProfile
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return err
		}
		raw.Profile = &v
		raw.FetchedAt.Profile = env.FetchedAt
		out.FallbackProfile = fallback
	default:
		return fmt.Errorf("unknown class %q", class)
	}
	return nil
}

// =============================================================================
// provider calls
// =============================================================================

// fetchClass tries the primary (through the breaker) then the fallback
func (f *Fetcher) fetchClass(ctx context.Context, symbol, class string, stats *Stats) (interface{}, string, error) {
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.call(ctx, f.primary, symbol, class, false, stats)
	})
	if err == nil {
		return result, f.primary.Name(), nil
	}
	err = asProviderError(f.primary.Name(), symbol, class, err)

	if f.fallback == nil || ctx.Err() != nil {
		return nil, "", err
	}

	value, fbErr := f.call(ctx, f.fallback, symbol, class, true, stats)
	if fbErr != nil {
		return nil, "", errors.Join(err, fbErr)
	}

	f.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"class":    class,
		"primary":  f.primary.Name(),
		"fallback": f.fallback.Name(),
	}).Debug("Served from fallback provider")

	return value, f.fallback.Name(), nil
}

func (f *Fetcher) call(ctx context.Context, p contracts.MarketDataProvider, symbol, class string, fallback bool, stats *Stats) (interface{}, error) {
	if err := f.wait(ctx, stats); err != nil {
		return nil, err
	}

	var (
		value interface{}
		empty bool
		err   error
	)
	switch class {
	case ClassFundamentals:
		var v *contracts.Fundamentals
		v, err = p.GetFundamentals(ctx, symbol)
		value, empty = v, v == nil
	case ClassTechnical:
		var v *contracts.TechnicalMetrics
		v, err = p.GetTechnicalMetrics(ctx, symbol)
		value, empty = v, v == nil
	case ClassProfile:
		var v *contracts.CompanyProfile
		v, err = p.GetCompanyProfile(ctx, symbol)
		value, empty = v, v == nil
	default:
		return nil, fmt.Errorf("unknown class %q", class)
	}
	if err == nil && empty {
		err = ErrEmptyResponse
	}

	stats.RecordRequest(p.Name(), class, fallback, err)
	if err != nil {
		return nil, asProviderError(p.Name(), symbol, class, err)
	}
	return value, nil
}

func (f *Fetcher) callBatch(ctx context.Context, bp contracts.BatchProvider, symbols, methods []string, stats *Stats) (map[string]contracts.BatchItem, error) {
	if err := f.wait(ctx, stats); err != nil {
		return nil, err
	}
	result, err := f.breaker.Execute(func() (interface{}, error) {
		return bp.FetchBatch(ctx, symbols, methods)
	})
	stats.RecordBatch(f.primary.Name(), err)
	if err != nil {
		return nil, err
	}
	return result.(map[string]contracts.BatchItem), nil
}

func (f *Fetcher) storeBatchItem(ctx context.Context, symbol string, items map[string]contracts.BatchItem, out *Outcome, classes []string) error {
	name := f.primary.Name()
	item, ok := items[symbol]
	if !ok {
		return contracts.NewProviderError(name, symbol, "batch", errors.New("symbol missing from batch response"))
	}
	if item.Error != "" {
		return contracts.NewProviderError(name, symbol, "batch", errors.New(item.Error))
	}

	var errs []error
	for _, class := range classes {
		var value interface{}
		switch class {
		case ClassFundamentals:
			if item.Fundamentals != nil {
				value = item.Fundamentals
			}
		case ClassTechnical:
			if item.Technical != nil {
				value = item.Technical
			}
		case ClassProfile:
			if item.Profile != nil {
				value = item.Profile
			}
		}
		if value == nil {
			errs = append(errs, contracts.NewProviderError(name, symbol, class, ErrEmptyResponse))
			continue
		}

		env, err := f.store(ctx, symbol, class, name, value)
		if err == nil {
			err = f.apply(out, class, env)
		}
		if err != nil {
			errs = append(errs, contracts.NewProviderError(name, symbol, class, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fetcher) wait(ctx context.Context, stats *Stats) error {
	start := time.Now()
	err := f.throttler.Wait(ctx)
	stats.RecordThrottleWait(time.Since(start))
	return err
}

// =============================================================================
// helpers
// =============================================================================

func newOutcome(symbol string) *Outcome {
	return &Outcome{Raw: &contracts.RawSymbolData{Symbol: symbol}}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// methodsFor returns the union of missing classes in fetch order
func methodsFor(symbols []string, missing map[string][]string) []string {
	need := make(map[string]bool, len(Classes))
	for _, s := range symbols {
		for _, c := range missing[s] {
			need[c] = true
		}
	}
	methods := make([]string, 0, len(Classes))
	for _, c := range Classes {
		if need[c] {
			methods = append(methods, c)
		}
	}
	return methods
}

// asProviderError keeps an existing ProviderError, otherwise wraps err
func asProviderError(provider, symbol, method string, err error) error {
	var pe *contracts.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("circuit open: %w", err)
	}
	return contracts.NewProviderError(provider, symbol, method, err)
}

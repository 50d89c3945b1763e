package universe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/evidence/internal/contracts"
)

// Supported filter keys
const (
	KeyExcludeSectors     = "exclude_sectors"
	KeyExcludeIndustries  = "exclude_industries"
	KeyExcludeSymbols     = "exclude_symbols"
	KeyIncludeOnlySectors = "include_only_sectors"
	KeyExcludeETFs        = "exclude_etfs"
)

var supportedKeys = []string{
	KeyExcludeETFs,
	KeyExcludeIndustries,
	KeyExcludeSectors,
	KeyExcludeSymbols,
	KeyIncludeOnlySectors,
}

// Filters holds universe-level exclusion rules
// ⭐ SSOT: 네트워크 비용 발생 전(Filtering 단계)에 적용
type Filters struct {
	ExcludeSectors     []string `json:"exclude_sectors,omitempty" yaml:"exclude_sectors"`
	ExcludeIndustries  []string `json:"exclude_industries,omitempty" yaml:"exclude_industries"`
	ExcludeSymbols     []string `json:"exclude_symbols,omitempty" yaml:"exclude_symbols"`
	IncludeOnlySectors []string `json:"include_only_sectors,omitempty" yaml:"include_only_sectors"`
	ExcludeETFs        bool     `json:"exclude_etfs,omitempty" yaml:"exclude_etfs"`
}

// ParseFilters converts a loosely typed filter map (YAML or JSON) into Filters
// 지원하지 않는 키 / 잘못된 타입 → ConfigurationError (무시 금지)
func ParseFilters(raw map[string]interface{}) (Filters, error) {
	var out Filters

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		var err error
		switch key {
		case KeyExcludeSectors:
			out.ExcludeSectors, err = stringList(value)
		case KeyExcludeIndustries:
			out.ExcludeIndustries, err = stringList(value)
		case KeyExcludeSymbols:
			out.ExcludeSymbols, err = stringList(value)
		case KeyIncludeOnlySectors:
			out.IncludeOnlySectors, err = stringList(value)
		case KeyExcludeETFs:
			b, ok := value.(bool)
			if !ok && value != nil {
				err = fmt.Errorf("expected bool, got %T", value)
			}
			out.ExcludeETFs = b
		default:
			return Filters{}, contracts.NewConfigurationError("universe filters", key,
				fmt.Sprintf("unsupported filter key %q (supported: %s)", key, strings.Join(supportedKeys, ", ")))
		}
		if err != nil {
			return Filters{}, &contracts.ConfigurationError{Source: "universe filters", Field: key, Err: err}
		}
	}

	return out, nil
}

func stringList(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected list of strings, got element %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", value)
	}
}

// IsEmpty reports whether no rule is set
func (f Filters) IsEmpty() bool {
	return len(f.ExcludeSectors) == 0 && len(f.ExcludeIndustries) == 0 &&
		len(f.ExcludeSymbols) == 0 && len(f.IncludeOnlySectors) == 0 && !f.ExcludeETFs
}

// Apply splits members into kept and excluded, preserving listing order
func (f Filters) Apply(members []contracts.UniverseMember) ([]contracts.UniverseMember, []contracts.ExcludedSymbol) {
	kept := make([]contracts.UniverseMember, 0, len(members))
	excluded := make([]contracts.ExcludedSymbol, 0)
	seen := make(map[string]bool, len(members))

	for _, m := range members {
		symbol := strings.ToUpper(strings.TrimSpace(m.Symbol))
		if symbol == "" {
			continue
		}
		if seen[symbol] {
			excluded = append(excluded, contracts.ExcludedSymbol{Symbol: symbol, Reason: "duplicate symbol"})
			continue
		}
		seen[symbol] = true
		m.Symbol = symbol

		if reason := f.checkExclusion(m); reason != "" {
			excluded = append(excluded, contracts.ExcludedSymbol{Symbol: symbol, Reason: reason})
			continue
		}
		kept = append(kept, m)
	}

	return kept, excluded
}

// checkExclusion returns the first matching exclusion reason
func (f Filters) checkExclusion(m contracts.UniverseMember) string {
	// 우선순위 순서로 체크

	// 1. 명시적 제외 종목
	if containsFold(f.ExcludeSymbols, m.Symbol) {
		return "excluded symbol"
	}

	// 2. ETF
	if f.ExcludeETFs && m.IsETF {
		return "etf excluded"
	}

	// 3. 포함 섹터 화이트리스트
	if len(f.IncludeOnlySectors) > 0 && !containsFold(f.IncludeOnlySectors, m.Sector) {
		return fmt.Sprintf("sector not included (%s)", m.Sector)
	}

	// 4. 제외 섹터
	if m.Sector != "" && containsFold(f.ExcludeSectors, m.Sector) {
		return fmt.Sprintf("excluded sector (%s)", m.Sector)
	}

	// 5. 제외 산업
	if m.Industry != "" && containsFold(f.ExcludeIndustries, m.Industry) {
		return fmt.Sprintf("excluded industry (%s)", m.Industry)
	}

	return ""
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

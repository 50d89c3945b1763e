package scoringconfig

import (
	"fmt"
	"sort"

	"github.com/wonny/evidence/internal/contracts"
)

// ModeKind tags the scoring variant
type ModeKind string

const (
	ModeDefault ModeKind = "default"
	ModeGARP    ModeKind = "garp"
	ModeETF     ModeKind = "etf"
	ModeShield  ModeKind = "shield"
)

// ScoringMode is consumed by the pillar scorer; every variant only changes parameters
// ⭐ SSOT: 프리셋 분기는 여기서만 (공식 내부에서 환경변수 분기 금지)
type ScoringMode struct {
	Kind ModeKind `yaml:"kind" json:"kind"`

	// PEGBlend: GARP 에서 valuation = (1-blend)·base + blend·PEG점수
	PEGBlend float64 `yaml:"peg_blend" json:"peg_blend"`

	// ZeroQualityOnRedFlag: red flag 가 하나라도 있으면 quality = 0 (심층 검증 실패)
	ZeroQualityOnRedFlag bool `yaml:"zero_quality_on_red_flag" json:"zero_quality_on_red_flag"`
}

// IsValid reports whether the kind is known
func (k ModeKind) IsValid() bool {
	_, ok := presets[k]
	return ok
}

type preset struct {
	mode    ScoringMode
	weights Weights
}

var presets = map[ModeKind]preset{
	ModeDefault: {
		mode:    ScoringMode{Kind: ModeDefault},
		weights: Weights{Valuation: 0.30, Quality: 0.30, Technical: 0.20, Risk: 0.20},
	},
	ModeGARP: {
		mode:    ScoringMode{Kind: ModeGARP, PEGBlend: 0.3},
		weights: Weights{Valuation: 0.35, Quality: 0.30, Technical: 0.20, Risk: 0.15},
	},
	ModeETF: {
		mode:    ScoringMode{Kind: ModeETF},
		weights: Weights{Valuation: 0.10, Quality: 0.10, Technical: 0.45, Risk: 0.35},
	},
	ModeShield: {
		mode:    ScoringMode{Kind: ModeShield, ZeroQualityOnRedFlag: true},
		weights: Weights{Valuation: 0.20, Quality: 0.30, Technical: 0.15, Risk: 0.35},
	},
}

// PresetNames returns the supported preset names sorted
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for k := range presets {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// ApplyPreset returns a copy of cfg with the preset's mode and weights
// 알 수 없는 preset → ConfigurationError
func ApplyPreset(cfg *Config, name string) (*Config, error) {
	if name == "" {
		name = string(ModeDefault)
	}

	p, ok := presets[ModeKind(name)]
	if !ok {
		return nil, contracts.NewConfigurationError("preset", "preset",
			fmt.Sprintf("unsupported preset %q (supported: %v)", name, PresetNames()))
	}

	out := cfg.Clone()
	out.Mode = p.mode
	out.Weights = p.weights
	if err := Validate(out); err != nil {
		return nil, &contracts.ConfigurationError{Source: "preset:" + name, Err: err}
	}
	return out, nil
}

// Clone returns a deep copy
func (c *Config) Clone() *Config {
	out := *c
	out.Technical.Horizons = append([]Horizon(nil), c.Technical.Horizons...)
	out.Risk.Steps = append([]RiskStep(nil), c.Risk.Steps...)
	return &out
}

package contracts

// UniverseMember is one listed symbol with its static classification
type UniverseMember struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Sector   string `json:"sector,omitempty" yaml:"sector,omitempty"`
	Industry string `json:"industry,omitempty" yaml:"industry,omitempty"`
	IsETF    bool   `json:"is_etf,omitempty" yaml:"is_etf,omitempty"`
}

// Universe represents the symbols a run starts from
// ⭐ SSOT: Filtering 단계 입력
type Universe struct {
	Name    string           `json:"name"`
	Members []UniverseMember `json:"members"`
}

// Symbols returns member symbols in listing order
func (u *Universe) Symbols() []string {
	out := make([]string, 0, len(u.Members))
	for _, m := range u.Members {
		out = append(out, m.Symbol)
	}
	return out
}

// Contains checks if a symbol is in the universe
func (u *Universe) Contains(symbol string) bool {
	for _, m := range u.Members {
		if m.Symbol == symbol {
			return true
		}
	}
	return false
}

// Count returns the number of members
func (u *Universe) Count() int {
	return len(u.Members)
}

package universe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/evidence/internal/contracts"
)

// file is the on-disk universe document
type file struct {
	Name    string                     `yaml:"name"`
	Filters map[string]interface{}     `yaml:"filters"`
	Members []contracts.UniverseMember `yaml:"members"`
}

// Definition is a loaded universe with its filter rules
type Definition struct {
	Universe contracts.Universe
	Filters  Filters
}

// Load reads a universe YAML file
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &contracts.ConfigurationError{Source: path, Err: err}
	}
	def, err := Parse(data)
	if err != nil {
		var cfgErr *contracts.ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = path
		}
		return nil, err
	}
	return def, nil
}

// Parse decodes a universe document
// 알 수 없는 최상위 필드 / 필터 키 → ConfigurationError
func Parse(data []byte) (*Definition, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &contracts.ConfigurationError{Source: "universe", Err: err}
	}

	if strings.TrimSpace(f.Name) == "" {
		return nil, contracts.NewConfigurationError("universe", "name", "required")
	}
	if len(f.Members) == 0 {
		return nil, contracts.NewConfigurationError("universe", "members", "at least one member required")
	}
	for i, m := range f.Members {
		if strings.TrimSpace(m.Symbol) == "" {
			return nil, contracts.NewConfigurationError("universe", fmt.Sprintf("members[%d].symbol", i), "required")
		}
	}

	filters, err := ParseFilters(f.Filters)
	if err != nil {
		return nil, err
	}

	return &Definition{
		Universe: contracts.Universe{Name: f.Name, Members: f.Members},
		Filters:  filters,
	}, nil
}

// FromSymbols builds an unfiltered ad-hoc universe
func FromSymbols(name string, symbols []string) *Definition {
	members := make([]contracts.UniverseMember, 0, len(symbols))
	for _, s := range symbols {
		members = append(members, contracts.UniverseMember{Symbol: s})
	}
	return &Definition{Universe: contracts.Universe{Name: name, Members: members}}
}

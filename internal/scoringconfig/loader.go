package scoringconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/evidence/internal/contracts"
)

// Load reads a YAML file on top of Default() and returns Config with raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (*Config, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &contracts.ConfigurationError{Source: path, Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		if cfgErr, ok := err.(*contracts.ConfigurationError); ok {
			cfgErr.Source = path
			return nil, data, cfgErr
		}
		return nil, data, err
	}

	return cfg, data, nil
}

// Parse decodes YAML bytes on top of Default()
// 지정하지 않은 항목은 기본값 유지
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(cfg); err != nil {
		return nil, &contracts.ConfigurationError{Source: "scoring config", Err: err}
	}

	if err := Validate(cfg); err != nil {
		return nil, &contracts.ConfigurationError{Source: "scoring config", Err: err}
	}

	return cfg, nil
}

// LoadOrDefault loads path when set, otherwise returns Default()
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, _, err := Load(path)
	return cfg, err
}

// Hash generates SHA256 hash from Config (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cfg *Config) (string, error) {
	// Struct → JSON (결정적 순서)
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

package contracts

import (
	"errors"
	"fmt"
)

// ProviderError is a network/subprocess/timeout failure for one symbol
// 항상 종목 단위에서 잡히고 errors[] 에 기록됨
type ProviderError struct {
	Provider string
	Symbol   string
	Method   string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s(%s): %v", e.Provider, e.Method, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err with provider context
func NewProviderError(provider, symbol, method string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Symbol: symbol, Method: method, Err: err}
}

// ConfigurationError is a malformed universe/preset/filter config
// 요청 경계에서 즉시 반환, 무시 금지
type ConfigurationError struct {
	Source string
	Field  string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error in %s (%s): %v", e.Source, e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError builds a ConfigurationError from a message
func NewConfigurationError(source, field, msg string) *ConfigurationError {
	return &ConfigurationError{Source: source, Field: field, Err: errors.New(msg)}
}

// PipelineError is a failed whole-run prerequisite
type PipelineError struct {
	Phase Phase
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed in %s: %v", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError wraps err with the phase it aborted
func NewPipelineError(phase Phase, err error) *PipelineError {
	return &PipelineError{Phase: phase, Err: err}
}

// SymbolErrorFrom converts any per-symbol failure into a SymbolError record
func SymbolErrorFrom(symbol string, phase Phase, err error) SymbolError {
	se := SymbolError{Symbol: symbol, Phase: phase, Message: err.Error()}
	var pe *ProviderError
	if errors.As(err, &pe) {
		se.Provider = pe.Provider
		se.Method = pe.Method
	}
	return se
}

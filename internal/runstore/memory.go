package runstore

import (
	"context"
	"sort"
	"sync"

	"github.com/wonny/evidence/internal/contracts"
)

// Backend is what the API and the cache layer read from
type Backend interface {
	contracts.ResultStore
	Get(ctx context.Context, runID string) (*contracts.ScoringResult, error)
	History(ctx context.Context, universe string, limit int) ([]RunSummary, error)
}

// MemoryStore keeps results in process when no database is configured
// 프로세스 재시작 시 사라짐
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*contracts.ScoringResult
	maxRuns int
}

// NewMemoryStore creates a store holding at most maxRuns results (0 = 100)
func NewMemoryStore(maxRuns int) *MemoryStore {
	if maxRuns <= 0 {
		maxRuns = 100
	}
	return &MemoryStore{runs: make(map[string]*contracts.ScoringResult), maxRuns: maxRuns}
}

// Save stores the result, evicting the oldest run past capacity
func (m *MemoryStore) Save(_ context.Context, result *contracts.ScoringResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[result.RunID] = result
	for len(m.runs) > m.maxRuns {
		ordered := m.ordered("")
		delete(m.runs, ordered[len(ordered)-1].RunID)
	}
	return nil
}

// Latest returns the most recent result for a universe ("" = any)
func (m *MemoryStore) Latest(_ context.Context, universe string) (*contracts.ScoringResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ordered := m.ordered(universe)
	if len(ordered) == 0 {
		return nil, ErrNotFound
	}
	return ordered[0], nil
}

// Get returns one run by id
func (m *MemoryStore) Get(_ context.Context, runID string) (*contracts.ScoringResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r, ok := m.runs[runID]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

// History lists recent runs, newest first
func (m *MemoryStore) History(_ context.Context, universe string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ordered := m.ordered(universe)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	out := make([]RunSummary, 0, len(ordered))
	for _, r := range ordered {
		out = append(out, summarize(r))
	}
	return out, nil
}

// ordered returns matching runs newest first (caller holds the lock)
func (m *MemoryStore) ordered(universe string) []*contracts.ScoringResult {
	out := make([]*contracts.ScoringResult, 0, len(m.runs))
	for _, r := range m.runs {
		if universe == "" || r.Metadata.Universe == universe {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Metadata.CompletedAt, out[j].Metadata.CompletedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].RunID > out[j].RunID
	})
	return out
}

func summarize(r *contracts.ScoringResult) RunSummary {
	return RunSummary{
		RunID:       r.RunID,
		Universe:    r.Metadata.Universe,
		Preset:      r.Metadata.Preset,
		ConfigHash:  r.Metadata.ConfigHash,
		ModeLabel:   r.Mode.Label,
		ScoredCount: len(r.Scores),
		ErrorCount:  len(r.Metadata.Errors),
		StaleRatio:  r.DataQualitySummary.StaleRatio,
		CompletedAt: r.Metadata.CompletedAt,
	}
}

var (
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*Store)(nil)
)

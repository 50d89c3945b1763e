package fetch

import (
	"sync/atomic"
	"time"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/pkg/metrics"
	"github.com/wonny/evidence/pkg/redis"
)

// Field classes, each with its own TTL
const (
	ClassFundamentals = redis.ClassFundamentals
	ClassTechnical    = redis.ClassTechnical
	ClassProfile      = redis.ClassProfile
)

// Classes lists every field class in fetch order
var Classes = []string{ClassFundamentals, ClassTechnical, ClassProfile}

type classCounter struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats counts cache and provider activity for one run
// ⭐ SSOT: 요청 예산 리포트의 유일한 출처 (동시 사용 안전)
type Stats struct {
	classes map[string]*classCounter

	providerRequests atomic.Int64
	fallbackRequests atomic.Int64
	batchRequests    atomic.Int64
	providerErrors   atomic.Int64
	throttleWait     atomic.Int64

	recorder *metrics.Recorder
}

// NewStats creates zeroed stats; recorder may be nil
func NewStats(recorder *metrics.Recorder) *Stats {
	s := &Stats{
		classes:  make(map[string]*classCounter, len(Classes)),
		recorder: recorder,
	}
	for _, c := range Classes {
		s.classes[c] = &classCounter{}
	}
	return s
}

// RecordLookup counts one cache lookup
func (s *Stats) RecordLookup(class string, hit bool) {
	if s == nil {
		return
	}
	if c, ok := s.classes[class]; ok {
		if hit {
			c.hits.Add(1)
		} else {
			c.misses.Add(1)
		}
	}
	s.recorder.RecordCacheLookup(class, hit)
}

// RecordRequest counts one outbound call
func (s *Stats) RecordRequest(provider, method string, fallback bool, err error) {
	if s == nil {
		return
	}
	if fallback {
		s.fallbackRequests.Add(1)
	} else {
		s.providerRequests.Add(1)
	}
	if err != nil {
		s.providerErrors.Add(1)
	}
	s.recorder.RecordProviderRequest(provider, method, err)
}

// RecordBatch counts one multi-symbol call
func (s *Stats) RecordBatch(provider string, err error) {
	if s == nil {
		return
	}
	s.batchRequests.Add(1)
	if err != nil {
		s.providerErrors.Add(1)
	}
	s.recorder.RecordProviderRequest(provider, "batch", err)
}

// RecordThrottleWait adds time spent waiting for the throttler
func (s *Stats) RecordThrottleWait(d time.Duration) {
	if s == nil {
		return
	}
	s.throttleWait.Add(int64(d))
}

// Hits returns cache hits for a class
func (s *Stats) Hits(class string) int64 {
	if c, ok := s.classes[class]; ok {
		return c.hits.Load()
	}
	return 0
}

// Misses returns cache misses for a class
func (s *Stats) Misses(class string) int64 {
	if c, ok := s.classes[class]; ok {
		return c.misses.Load()
	}
	return 0
}

// ProviderRequests returns primary provider call count
func (s *Stats) ProviderRequests() int64 {
	return s.providerRequests.Load()
}

// Snapshot returns a point-in-time copy
func (s *Stats) Snapshot() contracts.FetchStatsSnapshot {
	snap := contracts.FetchStatsSnapshot{
		CacheHits:   make(map[string]int64, len(Classes)),
		CacheMisses: make(map[string]int64, len(Classes)),
	}
	if s == nil {
		return snap
	}
	for _, class := range Classes {
		snap.CacheHits[class] = s.Hits(class)
		snap.CacheMisses[class] = s.Misses(class)
	}
	snap.ProviderRequests = s.providerRequests.Load()
	snap.FallbackRequests = s.fallbackRequests.Load()
	snap.BatchRequests = s.batchRequests.Load()
	snap.ProviderErrors = s.providerErrors.Load()
	snap.ThrottleWaitMs = time.Duration(s.throttleWait.Load()).Milliseconds()
	return snap
}

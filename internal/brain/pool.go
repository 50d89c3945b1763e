package brain

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/evidence/internal/contracts"
	"github.com/wonny/evidence/internal/fetch"
)

// fetchResult is one worker's output
type fetchResult struct {
	index   int
	outcome *fetch.Outcome
	err     error
}

// fetchAll runs FetchSymbolDataWithCache over a fixed worker pool
// 결과는 입력 순서(index)로 정렬되어 반환
func (s *UniverseScorer) fetchAll(ctx context.Context, r *run, symbols []string) []fetchResult {
	workers := s.opts.FetchConcurrency
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int, len(symbols))
	resultCh := make(chan fetchResult, len(symbols))
	var done atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				res := fetchResult{index: idx}
				select {
				case <-ctx.Done():
					res.err = ctx.Err()
				default:
					res.outcome, res.err = s.fetchOne(ctx, symbols[idx], r.stats)
				}
				resultCh <- res

				n := int(done.Add(1))
				s.deps.Progress.OnProgress(r.id, contracts.PhaseFetching, n, len(symbols))
			}
		}(i)
	}

	for i := range symbols {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]fetchResult, len(symbols))
	for res := range resultCh {
		results[res.index] = res
	}
	return results
}

// fetchOne isolates one symbol's fetch, converting panics to errors
func (s *UniverseScorer) fetchOne(ctx context.Context, symbol string, stats *fetch.Stats) (out *fetch.Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"panic":  fmt.Sprint(p),
				"stack":  string(debug.Stack()),
			}).Error("Recovered panic while fetching")
			out, err = nil, fmt.Errorf("panic while fetching %s: %v", symbol, p)
		}
	}()
	return s.deps.Fetcher.FetchSymbolDataWithCache(ctx, symbol, stats)
}

// forEach runs fn for every index with bounded concurrency
// fn 의 에러/패닉은 종목 단위로 격리되어 onErr 로 전달 (그룹 전체를 취소하지 않음)
func forEach(ctx context.Context, n, limit int, fn func(i int) error, onErr func(i int, err error)) {
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				onErr(i, err)
				return nil
			}
			if err := safeCall(func() error { return fn(i) }); err != nil {
				onErr(i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

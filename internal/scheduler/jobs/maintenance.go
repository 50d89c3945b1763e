package jobs

import (
	"context"

	"github.com/wonny/evidence/pkg/logger"
)

// Purger is a cache with expirable entries
type Purger interface {
	Purge() int
	Len() int
}

// CachePurgeJob drops expired entries from the in-process fetch cache
type CachePurgeJob struct {
	cache    Purger
	schedule string
	logger   *logger.Logger
}

// NewCachePurgeJob creates a new cache purge job
func NewCachePurgeJob(cache Purger, schedule string, log *logger.Logger) *CachePurgeJob {
	if schedule == "" {
		schedule = "0 0 * * * *" // 매시 정각
	}
	return &CachePurgeJob{
		cache:    cache,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *CachePurgeJob) Name() string {
	return "cache_purge"
}

// Schedule returns the cron schedule
func (j *CachePurgeJob) Schedule() string {
	return j.schedule
}

// Run executes the purge
func (j *CachePurgeJob) Run(ctx context.Context) error {
	removed := j.cache.Purge()
	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed":   removed,
			"remaining": j.cache.Len(),
		}).Info("Cache purge completed")
	}
	return nil
}

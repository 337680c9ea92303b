package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// JobCacheRepo is a Redis read-aside cache for job status lookups. The
// orchestrator writes through on every transition so status polling does
// not hit Postgres for hot jobs. A miss is (nil, nil), never an error.
type JobCacheRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewJobCacheRepo creates a JobCacheRepo with the given Redis client and TTL.
func NewJobCacheRepo(client redis.UniversalClient, ttl time.Duration) *JobCacheRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &JobCacheRepo{client: client, ttl: ttl}
}

func jobCacheKey(jobID string) string {
	return "jobs:" + jobID
}

// PutJob stores the serialized job under its id.
func (r *JobCacheRepo) PutJob(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job for cache: %w", err)
	}
	if err := r.client.Set(ctx, jobCacheKey(job.ID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache set job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob retrieves a cached job, or (nil, nil) on a miss.
func (r *JobCacheRepo) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	payload, err := r.client.Get(ctx, jobCacheKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get job %s: %w", jobID, err)
	}

	var job model.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		// A corrupt entry is treated as a miss; the store remains authoritative.
		return nil, nil
	}
	return &job, nil
}

// DeleteJob removes a cached job entry.
func (r *JobCacheRepo) DeleteJob(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrJobIDRequired
	}
	if err := r.client.Del(ctx, jobCacheKey(jobID)).Err(); err != nil {
		return fmt.Errorf("cache delete job %s: %w", jobID, err)
	}
	return nil
}

var _ core.JobStatusCache = (*JobCacheRepo)(nil)

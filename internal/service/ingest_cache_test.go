package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestigas/delivery-ingest/internal/domain/model"
	"github.com/vestigas/delivery-ingest/internal/partners"
)

// memoryCache records cache traffic for assertions.
type memoryCache struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
	puts int
	gets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{jobs: make(map[string]*model.Job)}
}

func (c *memoryCache) PutJob(_ context.Context, job *model.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := *job
	c.jobs[job.ID] = &clone
	c.puts++
	return nil
}

func (c *memoryCache) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	job, ok := c.jobs[jobID]
	if !ok {
		return nil, nil
	}
	clone := *job
	return &clone, nil
}

func (c *memoryCache) DeleteJob(_ context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.jobs, jobID)
	return nil
}

func TestJobStatusWrittenThroughToCache(t *testing.T) {
	store := newMemoryJobStore()
	cache := newMemoryCache()
	fetcher := &stubFetcher{results: map[string]partnerOutcome{
		partners.SupplierA: {stats: model.PartnerStats{Fetched: 1, Transformed: 1}},
		partners.SupplierB: {},
	}}
	svc, err := NewIngestService(IngestOptions{
		Jobs:     store,
		Cache:    cache,
		Fetcher:  fetcher,
		Partners: testPartners(),
	})
	require.NoError(t, err)

	job, err := svc.StartJob(context.Background(), &model.StartJobRequest{SiteID: "S1", Date: "2025-10-27"})
	require.NoError(t, err)
	svc.Wait()

	cached, err := cache.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, model.JobStatusFinished, cached.Status)

	// A lookup served from cache never touches the store.
	got, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFinished, got.Status)
	assert.GreaterOrEqual(t, cache.puts, 2)
}

func TestGetJobFallsBackToStoreOnCacheMiss(t *testing.T) {
	store := newMemoryJobStore()
	cache := newMemoryCache()
	svc, err := NewIngestService(IngestOptions{
		Jobs:     store,
		Cache:    cache,
		Fetcher:  &stubFetcher{},
		Partners: testPartners(),
	})
	require.NoError(t, err)

	seed := &model.Job{ID: "job-x", Status: model.JobStatusFinished, SiteID: "S1", Date: "2025-10-27"}
	require.NoError(t, store.CreateJob(context.Background(), seed))

	got, err := svc.GetJob(context.Background(), "job-x")
	require.NoError(t, err)
	assert.Equal(t, "job-x", got.ID)

	// Terminal jobs get backfilled into the cache on a miss.
	cached, err := cache.GetJob(context.Background(), "job-x")
	require.NoError(t, err)
	assert.NotNil(t, cached)
}

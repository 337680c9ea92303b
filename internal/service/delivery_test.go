package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// memoryDeliveryStore is a minimal DeliveryStore for read-side tests.
type memoryDeliveryStore struct {
	mu     sync.Mutex
	events []model.DeliveryEvent

	lastQuery core.DeliverySearchQuery
}

func (m *memoryDeliveryStore) Upsert(_ context.Context, p core.UpsertDeliveryParams) (*model.DeliveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev := model.DeliveryEvent{
		ID:                 int64(len(m.events) + 1),
		JobID:              p.JobID,
		SiteID:             p.Event.SiteID,
		Supplier:           p.Event.Supplier,
		SupplierDeliveryID: p.Event.SupplierDeliveryID,
		Status:             p.Event.Status,
		Score:              p.Event.Score,
	}
	m.events = append(m.events, ev)
	return &ev, nil
}

func (m *memoryDeliveryStore) ListByJob(_ context.Context, jobID string, limit, offset int) (int, []model.DeliveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []model.DeliveryEvent
	for _, ev := range m.events {
		if ev.JobID == jobID {
			matched = append(matched, ev)
		}
	}
	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return total, matched, nil
}

func (m *memoryDeliveryStore) Search(_ context.Context, q core.DeliverySearchQuery) (int, []model.DeliveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	var matched []model.DeliveryEvent
	for _, ev := range m.events {
		if q.SiteID != "" && ev.SiteID != q.SiteID {
			continue
		}
		if q.Status != "" && ev.Status != q.Status {
			continue
		}
		if q.MinScore != nil && ev.Score < *q.MinScore {
			continue
		}
		matched = append(matched, ev)
	}
	return len(matched), matched, nil
}

func seedDeliveryService(t *testing.T) (*DeliveryService, *memoryJobStore, *memoryDeliveryStore) {
	t.Helper()
	jobs := newMemoryJobStore()
	deliveries := &memoryDeliveryStore{}
	svc, err := NewDeliveryService(DeliveryOptions{Jobs: jobs, Deliveries: deliveries})
	require.NoError(t, err)
	return svc, jobs, deliveries
}

func seedJob(t *testing.T, jobs *memoryJobStore, id string, status model.JobStatus) {
	t.Helper()
	job := &model.Job{ID: id, Status: model.JobStatusCreated, SiteID: "S1", Date: "2025-10-27"}
	require.NoError(t, jobs.CreateJob(context.Background(), job))
	if status != model.JobStatusCreated {
		_, err := jobs.UpdateJobStatus(context.Background(), core.UpdateJobStatusParams{JobID: id, Status: status})
		require.NoError(t, err)
	}
}

func TestResultsForJob(t *testing.T) {
	svc, jobs, deliveries := seedDeliveryService(t)
	seedJob(t, jobs, "job-1", model.JobStatusFinished)
	deliveries.events = []model.DeliveryEvent{
		{ID: 1, JobID: "job-1", SiteID: "S1", Status: model.StatusDelivered, Score: 5},
		{ID: 2, JobID: "job-1", SiteID: "S1", Status: model.StatusPending, Score: 1},
		{ID: 3, JobID: "other", SiteID: "S1", Status: model.StatusDelivered, Score: 3},
	}

	job, total, events, err := svc.ResultsForJob(context.Background(), "job-1", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, 2, total)
	assert.Len(t, events, 2)
}

func TestResultsForJobNotTerminal(t *testing.T) {
	svc, jobs, _ := seedDeliveryService(t)
	seedJob(t, jobs, "job-2", model.JobStatusProcessing)

	_, _, _, err := svc.ResultsForJob(context.Background(), "job-2", 50, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobNotTerminal)
}

func TestResultsForJobNotFound(t *testing.T) {
	svc, _, _ := seedDeliveryService(t)

	_, _, _, err := svc.ResultsForJob(context.Background(), "missing", 50, 0)
	assert.ErrorIs(t, err, model.ErrJobNotFound)
}

func TestResultsForJobFailedJobStillServesResults(t *testing.T) {
	svc, jobs, _ := seedDeliveryService(t)
	seedJob(t, jobs, "job-3", model.JobStatusFailed)

	job, total, _, err := svc.ResultsForJob(context.Background(), "job-3", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Zero(t, total)
}

func TestSearchFilters(t *testing.T) {
	svc, _, deliveries := seedDeliveryService(t)
	deliveries.events = []model.DeliveryEvent{
		{ID: 1, SiteID: "S1", Status: model.StatusDelivered, Score: 5},
		{ID: 2, SiteID: "S1", Status: model.StatusPending, Score: 1},
		{ID: 3, SiteID: "S2", Status: model.StatusDelivered, Score: 3},
	}

	minScore := 3.0
	total, events, err := svc.Search(context.Background(), core.DeliverySearchQuery{
		SiteID:   "S1",
		Status:   model.StatusDelivered,
		MinScore: &minScore,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].ID)
}

func TestSearchRejectsInvalidStatus(t *testing.T) {
	svc, _, _ := seedDeliveryService(t)

	_, _, err := svc.Search(context.Background(), core.DeliverySearchQuery{Status: "shipped"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestSearchRejectsOutOfRangeMinScore(t *testing.T) {
	svc, _, _ := seedDeliveryService(t)

	tooHigh := 9.0
	_, _, err := svc.Search(context.Background(), core.DeliverySearchQuery{MinScore: &tooHigh})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be between")
}

func TestSearchClampsPagination(t *testing.T) {
	svc, _, deliveries := seedDeliveryService(t)

	_, _, err := svc.Search(context.Background(), core.DeliverySearchQuery{Limit: 9999, Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, 100, deliveries.lastQuery.Limit)
	assert.Zero(t, deliveries.lastQuery.Offset)

	_, _, err = svc.Search(context.Background(), core.DeliverySearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, 50, deliveries.lastQuery.Limit)
}

// Package service implements the ingestion orchestration and the read-side
// query services on top of the core store interfaces.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/data"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
	"github.com/vestigas/delivery-ingest/internal/observability/statsd"
	"github.com/vestigas/delivery-ingest/internal/partners"
)

// Fetcher pulls one partner's records for a job. A nil message means the
// batch completed; a non-nil message is a fatal, partner-scoped failure.
type Fetcher interface {
	Fetch(ctx context.Context, p partners.Partner, jobID, siteID, date string) (model.PartnerStats, *string)
}

// IngestOptions configures an IngestService.
type IngestOptions struct {
	Jobs         core.JobStore
	Cache        core.JobStatusCache // Optional
	Fetcher      Fetcher
	Partners     []partners.Partner
	Logger       *slog.Logger
	Metrics      statsd.Sink
	TimeProvider data.TimeProvider
}

// IngestService accepts ingestion jobs and runs the partner fan-out for
// each in a background goroutine. Job state is persisted through the
// JobStore; the cache, when configured, is written through on every
// transition so status polls rarely hit the database.
type IngestService struct {
	jobs         core.JobStore
	cache        core.JobStatusCache
	fetcher      Fetcher
	partners     []partners.Partner
	logger       *slog.Logger
	metrics      statsd.Sink
	timeProvider data.TimeProvider

	wg sync.WaitGroup
}

// NewIngestService creates an IngestService.
func NewIngestService(opts IngestOptions) (*IngestService, error) {
	if opts.Jobs == nil {
		return nil, fmt.Errorf("ingest: Jobs store is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("ingest: Fetcher is required")
	}
	if len(opts.Partners) == 0 {
		return nil, fmt.Errorf("ingest: at least one partner is required")
	}
	s := &IngestService{
		jobs:         opts.Jobs,
		cache:        opts.Cache,
		fetcher:      opts.Fetcher,
		partners:     opts.Partners,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		timeProvider: opts.TimeProvider,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.timeProvider == nil {
		s.timeProvider = &data.RealTimeProvider{}
	}
	return s, nil
}

// MustNewIngestService is like NewIngestService but panics on invalid options.
func MustNewIngestService(opts IngestOptions) *IngestService {
	s, err := NewIngestService(opts)
	if err != nil {
		panic(err)
	}
	return s
}

// PartnerNames returns the registered partner names in registration order.
func (s *IngestService) PartnerNames() []string {
	names := make([]string, len(s.partners))
	for i, p := range s.partners {
		names[i] = p.Name
	}
	return names
}

// StartJob validates the request, persists a new job in the created state,
// and launches the background run. Every call creates a distinct job, even
// for a site/date pair that is already being processed.
func (s *IngestService) StartJob(ctx context.Context, req *model.StartJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := &model.Job{
		ID:     uuid.NewString(),
		Status: model.JobStatusCreated,
		SiteID: req.SiteID,
		Date:   req.Date,
		Stats:  model.NewJobStats(s.PartnerNames()),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.cachePut(ctx, job)
	s.count("jobs.started", 1, nil)
	s.logger.InfoContext(ctx, "ingestion job accepted",
		"job_id", job.ID, "site_id", job.SiteID, "date", job.Date)

	s.wg.Add(1)
	go s.run(context.WithoutCancel(ctx), job)
	return job, nil
}

// GetJob returns a job by ID, consulting the cache before the store.
func (s *IngestService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if s.cache != nil {
		if job, err := s.cache.GetJob(ctx, jobID); err == nil && job != nil {
			return job, nil
		}
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		s.cachePut(ctx, job)
	}
	return job, nil
}

// Shutdown blocks until all in-flight job runs complete or ctx expires.
func (s *IngestService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until all in-flight job runs complete.
func (s *IngestService) Wait() {
	s.wg.Wait()
}

type partnerResult struct {
	name  string
	stats model.PartnerStats
	fatal *string
}

// run executes one job: fan out to every partner, merge the results, and
// record the terminal state. It owns the job's lifecycle from processing
// onward and must never leave the job in a non-terminal state.
func (s *IngestService) run(ctx context.Context, job *model.Job) {
	defer s.wg.Done()
	start := time.Now()
	logger := s.logger.With("job_id", job.ID, "site_id", job.SiteID, "date", job.Date)

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal error: %v", r)
			logger.ErrorContext(ctx, "job run panicked", "panic", r)
			s.finish(ctx, logger, job.ID, model.JobStatusFailed, nil, &msg)
			s.count("jobs.panics", 1, nil)
		}
	}()

	if _, err := s.jobs.UpdateJobStatus(ctx, core.UpdateJobStatusParams{
		JobID:  job.ID,
		Status: model.JobStatusProcessing,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to mark job processing", "error", err)
	}
	logger.InfoContext(ctx, "job processing started", "partners", len(s.partners))

	// Each goroutine writes only its own slot; the merge below runs after
	// the Wait barrier, so no locking is needed.
	results := make([]partnerResult, len(s.partners))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range s.partners {
		g.Go(func() error {
			stats, fatal := s.fetcher.Fetch(gctx, p, job.ID, job.SiteID, job.Date)
			results[i] = partnerResult{name: p.Name, stats: stats, fatal: fatal}
			return nil
		})
	}
	_ = g.Wait()

	stats := model.NewJobStats(s.PartnerNames())
	var firstFatal *string
	hasFatal := false
	for _, res := range results {
		stats.Partners[res.name] = res.stats
		stats.TotalFetched += res.stats.Fetched
		stats.Stored += res.stats.Transformed
		if res.fatal != nil {
			hasFatal = true
			if firstFatal == nil {
				firstFatal = res.fatal
			}
		}
	}

	// A job fails only when every stored count is zero and at least one
	// partner failed fatally. Partial results finish, retaining the first
	// fatal message for diagnostics.
	status := model.JobStatusFinished
	if hasFatal && stats.Stored == 0 {
		status = model.JobStatusFailed
	}

	s.finish(ctx, logger, job.ID, status, &stats, firstFatal)
	s.count("jobs."+string(status), 1, nil)
	s.timing("jobs.duration", time.Since(start))
	logger.InfoContext(ctx, "job completed",
		"status", status,
		"stored", stats.Stored,
		"total_fetched", stats.TotalFetched,
		"duration_ms", time.Since(start).Milliseconds())
}

// finish records a terminal transition and writes the result through to the
// cache. Persistence failures are logged; there is no caller to return them
// to.
func (s *IngestService) finish(ctx context.Context, logger *slog.Logger, jobID string, status model.JobStatus, stats *model.JobStats, errMsg *string) {
	updated, err := s.jobs.UpdateJobStatus(ctx, core.UpdateJobStatusParams{
		JobID:  jobID,
		Status: status,
		Stats:  stats,
		Error:  errMsg,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to record terminal job status",
			"status", status, "error", err)
		return
	}
	s.cachePut(ctx, updated)
}

func (s *IngestService) cachePut(ctx context.Context, job *model.Job) {
	if s.cache == nil {
		return
	}
	if err := s.cache.PutJob(ctx, job); err != nil {
		s.logger.WarnContext(ctx, "job cache write failed", "job_id", job.ID, "error", err)
	}
}

func (s *IngestService) count(name string, value int64, tags map[string]string) {
	if s.metrics != nil {
		s.metrics.Count(name, value, tags)
	}
}

func (s *IngestService) timing(name string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.Timing(name, d, nil)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// ErrJobNotTerminal is returned when results are requested for a job that
// has not reached a terminal status yet.
var ErrJobNotTerminal = errors.New("job has not finished processing")

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// DeliveryOptions configures a DeliveryService.
type DeliveryOptions struct {
	Jobs       core.JobStore
	Deliveries core.DeliveryStore
	Logger     *slog.Logger
}

// DeliveryService serves the read side: job results and delivery search.
type DeliveryService struct {
	jobs       core.JobStore
	deliveries core.DeliveryStore
	logger     *slog.Logger
}

// NewDeliveryService creates a DeliveryService.
func NewDeliveryService(opts DeliveryOptions) (*DeliveryService, error) {
	if opts.Jobs == nil {
		return nil, fmt.Errorf("delivery: Jobs store is required")
	}
	if opts.Deliveries == nil {
		return nil, fmt.Errorf("delivery: Deliveries store is required")
	}
	s := &DeliveryService{
		jobs:       opts.Jobs,
		deliveries: opts.Deliveries,
		logger:     opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// MustNewDeliveryService is like NewDeliveryService but panics on invalid
// options.
func MustNewDeliveryService(opts DeliveryOptions) *DeliveryService {
	s, err := NewDeliveryService(opts)
	if err != nil {
		panic(err)
	}
	return s
}

// ResultsForJob returns the job together with a page of the delivery events
// it stored. Results are only available once the job is terminal; until then
// ErrJobNotTerminal is returned so callers can tell "not ready" apart from
// "not found".
func (s *DeliveryService) ResultsForJob(ctx context.Context, jobID string, limit, offset int) (*model.Job, int, []model.DeliveryEvent, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, 0, nil, err
	}
	if !job.Status.Terminal() {
		return nil, 0, nil, fmt.Errorf("%w: job %s is %s", ErrJobNotTerminal, jobID, job.Status)
	}
	limit, offset = clampPage(limit, offset)
	total, events, err := s.deliveries.ListByJob(ctx, jobID, limit, offset)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("list deliveries for job %s: %w", jobID, err)
	}
	return job, total, events, nil
}

// Search returns delivery events matching the query filters. An unset
// status or min score filter matches everything.
func (s *DeliveryService) Search(ctx context.Context, q core.DeliverySearchQuery) (int, []model.DeliveryEvent, error) {
	if q.Status != "" && !q.Status.Valid() {
		return 0, nil, fmt.Errorf("invalid status filter %q", q.Status)
	}
	if q.MinScore != nil && (*q.MinScore < model.MinScore || *q.MinScore > model.MaxScore) {
		return 0, nil, fmt.Errorf("min_score must be between %.1f and %.1f", model.MinScore, model.MaxScore)
	}
	q.Limit, q.Offset = clampPage(q.Limit, q.Offset)
	total, events, err := s.deliveries.Search(ctx, q)
	if err != nil {
		return 0, nil, fmt.Errorf("search deliveries: %w", err)
	}
	return total, events, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

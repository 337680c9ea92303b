// Package core defines the store interfaces consumed by the ingestion
// services. Implementations live in internal/data.
package core

import (
	"context"
	"encoding/json"

	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// UpdateJobStatusParams groups the fields of a job status transition.
type UpdateJobStatusParams struct {
	JobID  string
	Status model.JobStatus
	Stats  *model.JobStats // Optional: replaces the stored stats when set
	Error  *string         // Optional: terminal error message
}

// JobStore persists ingestion jobs and their status transitions.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	// UpdateJobStatus applies a transition and returns the updated job.
	// The first terminal status sets finished_at; later updates, terminal
	// or not, leave it unchanged so the timestamp is set exactly once.
	UpdateJobStatus(ctx context.Context, p UpdateJobStatusParams) (*model.Job, error)
}

// UpsertDeliveryParams groups the inputs of an idempotent delivery upsert.
type UpsertDeliveryParams struct {
	Event      *model.NormalizedDelivery
	JobID      string
	SourceData json.RawMessage // Raw partner record, retained for audit
	DataErrors model.DataErrors
}

// DeliverySearchQuery holds optional filters for delivery search.
type DeliverySearchQuery struct {
	SiteID   string
	Status   model.Status
	MinScore *float64
	Limit    int
	Offset   int
}

// DeliveryStore persists normalized delivery events.
//
// Upsert must be a single atomic conflict-checked write on (supplier,
// supplier_delivery_id): first sighting inserts every field, a conflict
// updates only job_id and updated_at. Concurrent upserts for the same key
// must not create duplicate rows.
type DeliveryStore interface {
	Upsert(ctx context.Context, p UpsertDeliveryParams) (*model.DeliveryEvent, error)
	ListByJob(ctx context.Context, jobID string, limit, offset int) (int, []model.DeliveryEvent, error)
	Search(ctx context.Context, q DeliverySearchQuery) (int, []model.DeliveryEvent, error)
}

// JobStatusCache is an optional read-aside cache for job status lookups.
// A nil implementation is valid; all methods tolerate cache misses.
type JobStatusCache interface {
	PutJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// Package data implements the Postgres-backed stores for jobs and
// normalized delivery events.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/data/pgxutil"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// RepoConfig holds shared configuration options for the repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for ingestion jobs.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a JobRepo with the given database connection.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  status,
  site_id,
  target_date,
  stats,
  error,
  created_at,
  finished_at
`

// CreateJob inserts a new job row. The caller supplies the identifier and
// initial (zeroed) stats; status starts as created.
func (r *JobRepo) CreateJob(ctx context.Context, job *model.Job) error {
	if job == nil || job.ID == "" {
		return ErrJobIDRequired
	}

	stats, err := json.Marshal(job.Stats)
	if err != nil {
		return fmt.Errorf("marshal job stats: %w", err)
	}
	now := r.timeProvider.Now().UTC()
	job.CreatedAt = now

	err = pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, execErr := conn.Exec(ctx, `
			INSERT INTO jobs (id, status, site_id, target_date, stats, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, job.ID, job.Status, job.SiteID, job.Date, stats, now)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("create job: %w", mapDBError(err))
	}
	return nil
}

// GetJob retrieves a job by id. A miss or a malformed id returns
// model.ErrJobNotFound; the id column is uuid-typed, so garbage input is
// rejected here rather than surfacing a driver encode error.
func (r *JobRepo) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, ErrJobIDRequired
	}
	if uuid.Validate(jobID) != nil {
		return nil, model.ErrJobNotFound
	}

	var out model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		out, cerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Job])
		return cerr
	})
	if err != nil {
		return nil, mapDBError(err)
	}
	return &out, nil
}

// UpdateJobStatus applies a status transition. A terminal status sets
// finished_at once; any other status leaves it unchanged. Stats and error
// are only written when provided.
func (r *JobRepo) UpdateJobStatus(ctx context.Context, p core.UpdateJobStatusParams) (*model.Job, error) {
	if p.JobID == "" {
		return nil, ErrJobIDRequired
	}
	if uuid.Validate(p.JobID) != nil {
		return nil, model.ErrJobNotFound
	}
	if !p.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobStatus, p.Status)
	}

	var stats []byte
	if p.Stats != nil {
		var err error
		stats, err = json.Marshal(p.Stats)
		if err != nil {
			return nil, fmt.Errorf("marshal job stats: %w", err)
		}
	}
	now := r.timeProvider.Now().UTC()

	var out model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			UPDATE jobs SET
				status = $2,
				stats = COALESCE($3::jsonb, stats),
				error = COALESCE($4::text, error),
				finished_at = CASE WHEN $5::boolean THEN COALESCE(finished_at, $6::timestamptz) ELSE finished_at END
			WHERE id = $1
			RETURNING `+jobColumns+`
		`, p.JobID, p.Status, stats, p.Error, p.Status.Terminal(), now)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		out, cerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Job])
		return cerr
	})
	if err != nil {
		return nil, mapDBError(err)
	}

	if r.logger != nil {
		r.logger.DebugContext(ctx, "job status updated", "job_id", p.JobID, "status", p.Status)
	}
	return &out, nil
}

var _ core.JobStore = (*JobRepo)(nil)

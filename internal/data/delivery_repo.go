package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/data/pgxutil"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// DeliveryRepo provides database operations for normalized delivery events.
type DeliveryRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewDeliveryRepo creates a DeliveryRepo with the given database connection.
func NewDeliveryRepo(db *sql.DB, cfg RepoConfig) *DeliveryRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &DeliveryRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const deliveryColumns = `
  id,
  job_id,
  site_id,
  supplier,
  supplier_delivery_id,
  delivered_at,
  status,
  score,
  signed,
  source_data,
  data_errors,
  created_at,
  updated_at
`

// Upsert inserts a delivery event or, on conflict with an existing
// (supplier, supplier_delivery_id) row, moves only job_id and updated_at
// forward. Content fields of the first sighting are never overwritten; the
// single conflict-checked statement keeps concurrent retries race-free.
func (r *DeliveryRepo) Upsert(ctx context.Context, p core.UpsertDeliveryParams) (*model.DeliveryEvent, error) {
	if p.JobID == "" {
		return nil, ErrJobIDRequired
	}
	if p.Event == nil {
		return nil, errors.New("normalized delivery is required")
	}
	if err := p.Event.Validate(); err != nil {
		return nil, fmt.Errorf("validate delivery: %w", err)
	}

	var dataErrors []byte
	if len(p.DataErrors) > 0 {
		var err error
		dataErrors, err = json.Marshal(p.DataErrors)
		if err != nil {
			return nil, fmt.Errorf("marshal data errors: %w", err)
		}
	}
	now := r.timeProvider.Now().UTC()

	var out model.DeliveryEvent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			INSERT INTO delivery_events
				(job_id, site_id, supplier, supplier_delivery_id, delivered_at,
				 status, score, signed, source_data, data_errors, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
			ON CONFLICT (supplier, supplier_delivery_id)
			DO UPDATE SET job_id = EXCLUDED.job_id, updated_at = EXCLUDED.updated_at
			RETURNING `+deliveryColumns+`
		`, p.JobID, p.Event.SiteID, p.Event.Supplier, p.Event.SupplierDeliveryID,
			p.Event.DeliveredAt.UTC(), p.Event.Status, p.Event.Score, p.Event.Signed,
			[]byte(p.SourceData), dataErrors, now)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		out, cerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.DeliveryEvent])
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("upsert delivery: %w", mapDBError(err))
	}
	return &out, nil
}

// ListByJob returns the total count and a page of deliveries currently
// associated with the given job, newest first.
func (r *DeliveryRepo) ListByJob(ctx context.Context, jobID string, limit, offset int) (int, []model.DeliveryEvent, error) {
	if jobID == "" {
		return 0, nil, ErrJobIDRequired
	}
	if uuid.Validate(jobID) != nil {
		return 0, nil, model.ErrJobNotFound
	}

	var (
		total int
		out   []model.DeliveryEvent
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if cerr := conn.QueryRow(ctx,
			`SELECT count(*) FROM delivery_events WHERE job_id = $1`, jobID,
		).Scan(&total); cerr != nil {
			return cerr
		}

		rows, qerr := conn.Query(ctx, `
			SELECT `+deliveryColumns+`
			FROM delivery_events
			WHERE job_id = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, jobID, limit, offset)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		out, cerr = pgx.CollectRows(rows, pgx.RowToStructByName[model.DeliveryEvent])
		return cerr
	})
	if err != nil {
		return 0, nil, mapDBError(err)
	}
	return total, out, nil
}

// Search returns the total count and a page of deliveries matching the
// optional filters, newest first.
func (r *DeliveryRepo) Search(ctx context.Context, q core.DeliverySearchQuery) (int, []model.DeliveryEvent, error) {
	where, args := buildSearchConditions(q)

	var (
		total int
		out   []model.DeliveryEvent
	)
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if cerr := conn.QueryRow(ctx,
			`SELECT count(*) FROM delivery_events`+where, args...,
		).Scan(&total); cerr != nil {
			return cerr
		}

		pageArgs := append(args, q.Limit, q.Offset)
		query := `SELECT ` + deliveryColumns + ` FROM delivery_events` + where +
			` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) +
			` OFFSET $` + strconv.Itoa(len(args)+2)

		rows, qerr := conn.Query(ctx, query, pageArgs...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		var cerr error
		out, cerr = pgx.CollectRows(rows, pgx.RowToStructByName[model.DeliveryEvent])
		return cerr
	})
	if err != nil {
		return 0, nil, mapDBError(err)
	}
	return total, out, nil
}

// buildSearchConditions renders the WHERE clause and positional args for a
// delivery search.
func buildSearchConditions(q core.DeliverySearchQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(expr string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(expr, len(args)))
	}

	if q.SiteID != "" {
		add("site_id = $%d", q.SiteID)
	}
	if q.Status != "" {
		add("status = $%d", q.Status)
	}
	if q.MinScore != nil {
		add("score >= $%d", *q.MinScore)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var _ core.DeliveryStore = (*DeliveryRepo)(nil)

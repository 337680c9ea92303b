package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobIDRequired is returned when an operation is missing its job id.
	ErrJobIDRequired = errors.New("job id is required")
	// ErrInvalidJobStatus is returned for a status outside the closed set.
	ErrInvalidJobStatus = errors.New("invalid job status")
	// ErrDuplicateDelivery is returned when a unique violation escapes the
	// upsert path, which indicates a schema/constraint mismatch.
	ErrDuplicateDelivery = errors.New("duplicate delivery for (supplier, supplier_delivery_id)")
)

// mapDBError normalizes low-level database errors into the sentinels and
// wrapped forms callers match on with errors.Is.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrJobNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicateDelivery, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("foreign key violation on %s: %w", pgErr.ConstraintName, err)
		}
	}
	return err
}

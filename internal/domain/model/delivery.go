// Package model defines the core data types shared across the delivery ingestion system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the normalized delivery status. Partner vocabularies are mapped
// into this closed set before anything is persisted.
type Status string

const (
	// StatusDelivered indicates the delivery completed.
	StatusDelivered Status = "delivered"
	// StatusCancelled indicates the delivery was cancelled, rejected, or failed.
	StatusCancelled Status = "cancelled"
	// StatusPending indicates the delivery is scheduled or in transit.
	StatusPending Status = "pending"
	// StatusOther covers partner statuses that match no known category.
	StatusOther Status = "other"
)

// Valid returns true if the Status is one of the closed set.
func (s Status) Valid() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusPending || s == StatusOther
}

// Bounds for the delivery quality score.
const (
	MinScore = 1.0
	MaxScore = 5.0
)

// DataErrors records per-field soft transformation errors, keyed by the
// normalized field name (e.g. "deliveredAt").
type DataErrors map[string]string

// NormalizedDelivery is the canonical representation of one delivery produced
// by a partner transformer, before it is persisted.
type NormalizedDelivery struct {
	SiteID             string    `json:"siteId"`
	Supplier           string    `json:"supplier"`
	SupplierDeliveryID string    `json:"supplierDeliveryId"`
	DeliveredAt        time.Time `json:"deliveredAt"`
	Status             Status    `json:"status"`
	Score              float64   `json:"deliveryScore"`
	Signed             bool      `json:"isSigned"`
}

// Validate checks the constructed normalized delivery against the target
// schema. A failure here indicates a source bug, not a data quality issue,
// and is fatal for the record.
func (d *NormalizedDelivery) Validate() error {
	if d.SiteID == "" {
		return errors.New("siteId is required and cannot be empty")
	}
	if d.Supplier == "" {
		return errors.New("supplier is required and cannot be empty")
	}
	if d.SupplierDeliveryID == "" {
		return errors.New("supplierDeliveryId is required and cannot be empty")
	}
	if d.DeliveredAt.IsZero() {
		return errors.New("deliveredAt is required and cannot be empty")
	}
	if !d.Status.Valid() {
		return fmt.Errorf("status must be one of: delivered, cancelled, pending, other (got %q)", d.Status)
	}
	if d.Score < MinScore || d.Score > MaxScore {
		return fmt.Errorf("deliveryScore must be between %.1f and %.1f (got %.2f)", MinScore, MaxScore, d.Score)
	}
	return nil
}

// DeliveryEvent is a stored delivery row. The pair (supplier,
// supplier_delivery_id) is globally unique; re-ingestion of the same logical
// delivery only moves job_id and updated_at forward.
type DeliveryEvent struct {
	ID                 int64           `json:"id"                   db:"id"`
	JobID              string          `json:"jobId"                db:"job_id"`
	SiteID             string          `json:"siteId"               db:"site_id"`
	Supplier           string          `json:"supplier"             db:"supplier"`
	SupplierDeliveryID string          `json:"supplierDeliveryId"   db:"supplier_delivery_id"`
	DeliveredAt        time.Time       `json:"deliveredAt"          db:"delivered_at"`
	Status             Status          `json:"status"               db:"status"`
	Score              float64         `json:"deliveryScore"        db:"score"`
	Signed             bool            `json:"isSigned"             db:"signed"`
	SourceData         json.RawMessage `json:"sourceData,omitempty" db:"source_data"`
	DataErrors         json.RawMessage `json:"dataErrors,omitempty" db:"data_errors"`
	CreatedAt          time.Time       `json:"createdAt"            db:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt"            db:"updated_at"`
}

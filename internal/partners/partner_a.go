package partners

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vestigas/delivery-ingest/internal/domain/delivery"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// SupplierA is the partner identifier for the flat-schema logistics partner.
const SupplierA = "Partner_A"

// partnerARecord is Partner A's flat record shape.
type partnerARecord struct {
	SiteID         string `json:"site_id"`
	OrderID        string `json:"order_id"`
	DeliveryStatus string `json:"deliveryStatus"`
	PodSigned      bool   `json:"podSigned"`
	DeliveryTime   string `json:"deliveryTime"`
}

// PartnerA transforms Partner A's flat record shape. Timestamps arrive as
// ISO-8601 strings, usually with a trailing Z.
type PartnerA struct{}

// Supplier implements Transformer.
func (PartnerA) Supplier() string { return SupplierA }

// Transform implements Transformer.
func (PartnerA) Transform(raw json.RawMessage, now time.Time) (*model.NormalizedDelivery, model.DataErrors, error) {
	var rec partnerARecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode %s record: %w", SupplierA, err)
	}

	dataErrors := model.DataErrors{}
	status := delivery.NormalizeStatus(rec.DeliveryStatus)
	isDelivered := status == model.StatusDelivered

	deliveredAt, err := parseISOTimestamp(rec.DeliveryTime)
	if err != nil {
		dataErrors["deliveredAt"] = fmt.Sprintf("failed to parse deliveryTime %q: %v", rec.DeliveryTime, err)
		deliveredAt = now
	}

	event := &model.NormalizedDelivery{
		SiteID:             rec.SiteID,
		Supplier:           SupplierA,
		SupplierDeliveryID: rec.OrderID,
		DeliveredAt:        deliveredAt,
		Status:             status,
		Score:              delivery.Score(isDelivered, rec.PodSigned),
		Signed:             rec.PodSigned,
	}
	if err := event.Validate(); err != nil {
		return nil, dataErrors, fmt.Errorf("%s normalized event validation: %w", SupplierA, err)
	}

	if len(dataErrors) == 0 {
		dataErrors = nil
	}
	return event, dataErrors, nil
}

// isoTimestampLayouts are tried in order; timestamps without an offset are
// assumed UTC.
var isoTimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseISOTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is missing or empty")
	}
	var lastErr error
	for _, layout := range isoTimestampLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

package partners

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/vestigas/delivery-ingest/internal/domain/delivery"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// SupplierB is the partner identifier for the nested-schema logistics partner.
const SupplierB = "Partner_B"

// Partner B nests its fields; the lookups are JMESPath expressions so the
// extraction survives optional intermediate objects without nil checks.
const (
	exprBSiteRef     = "location.site_ref"
	exprBReferenceID = "reference_id"
	exprBStatusCode  = "status.code"
	exprBProofSigned = "proof.signed"
	exprBCompletion  = "timestamps.delivery_completion"
)

// PartnerB transforms Partner B's nested record shape. Delivery timestamps
// arrive as Unix epoch seconds, as an integer or a string of digits.
type PartnerB struct{}

// Supplier implements Transformer.
func (PartnerB) Supplier() string { return SupplierB }

// Transform implements Transformer.
func (PartnerB) Transform(raw json.RawMessage, now time.Time) (*model.NormalizedDelivery, model.DataErrors, error) {
	var rec any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode %s record: %w", SupplierB, err)
	}

	dataErrors := model.DataErrors{}
	statusRaw, _ := searchString(exprBStatusCode, rec)
	status := delivery.NormalizeStatus(statusRaw)
	isDelivered := status == model.StatusDelivered
	signed := searchBool(exprBProofSigned, rec)

	deliveredAt, err := parseEpochTimestamp(rec)
	if err != nil {
		dataErrors["deliveredAt"] = fmt.Sprintf("failed to parse delivery_completion timestamp: %v", err)
		deliveredAt = now
	}

	siteID, _ := searchString(exprBSiteRef, rec)
	referenceID, _ := searchString(exprBReferenceID, rec)

	event := &model.NormalizedDelivery{
		SiteID:             siteID,
		Supplier:           SupplierB,
		SupplierDeliveryID: referenceID,
		DeliveredAt:        deliveredAt,
		Status:             status,
		Score:              delivery.Score(isDelivered, signed),
		Signed:             signed,
	}
	if err := event.Validate(); err != nil {
		return nil, dataErrors, fmt.Errorf("%s normalized event validation: %w", SupplierB, err)
	}

	if len(dataErrors) == 0 {
		dataErrors = nil
	}
	return event, dataErrors, nil
}

func parseEpochTimestamp(rec any) (time.Time, error) {
	value, ok := searchString(exprBCompletion, rec)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp is missing or empty")
	}
	epoch, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a unix timestamp: %w", value, err)
	}
	return time.Unix(epoch, 0).UTC(), nil
}

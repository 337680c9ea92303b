package httpx

import (
	"net/http"

	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
	"github.com/vestigas/delivery-ingest/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// DeliveryHandlers provides HTTP handlers for delivery search.
type DeliveryHandlers struct {
	Svc *service.DeliveryService
}

// deliveryListResponse is the paginated search response body.
type deliveryListResponse struct {
	Total      int                   `json:"total"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
	Deliveries []model.DeliveryEvent `json:"deliveries"`
}

// ListDeliveries handles GET /deliveries with optional siteId, status, and
// min_score filters.
func (h *DeliveryHandlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	minScore, err := parseFloatQuery(r, "min_score")
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_query", Err: err})
		return
	}
	q := core.DeliverySearchQuery{
		SiteID:   r.URL.Query().Get("siteId"),
		Status:   model.Status(r.URL.Query().Get("status")),
		MinScore: minScore,
		Limit:    limit,
		Offset:   offset,
	}

	total, events, err := h.Svc.Search(r.Context(), q)
	if err != nil {
		if isValidationError(err) {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_query", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "search_failed", Err: err})
		return
	}
	if events == nil {
		events = []model.DeliveryEvent{}
	}

	WriteJSON(w, http.StatusOK, deliveryListResponse{
		Total:      total,
		Limit:      limit,
		Offset:     offset,
		Deliveries: events,
	})
}

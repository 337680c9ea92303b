// Package delivery holds the pure normalization and scoring rules applied to
// every partner record before it is persisted.
package delivery

import (
	"strings"

	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// Keyword sets for status classification. Order matters: the first matching
// category wins, so "cancelled after delivery" still maps to delivered.
var statusKeywords = []struct {
	status   model.Status
	keywords []string
}{
	{model.StatusDelivered, []string{"delivered", "done", "complete"}},
	{model.StatusCancelled, []string{"cancel", "fail", "rejected"}},
	{model.StatusPending, []string{"transit", "shipped", "pending", "scheduled"}},
}

// NormalizeStatus maps an arbitrary partner status string to the closed
// status set using case-insensitive substring matching.
func NormalizeStatus(raw string) model.Status {
	lowered := strings.ToLower(raw)
	for _, entry := range statusKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				return entry.status
			}
		}
	}
	return model.StatusOther
}

// Package partners contains the per-partner transformers and the resilient
// fetch client that pulls raw delivery records from partner endpoints.
package partners

import (
	"encoding/json"
	"strconv"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/vestigas/delivery-ingest/internal/domain/model"
)

// Transformer converts one partner's raw record shape into a normalized
// delivery. Soft per-field parse failures are reported through the returned
// DataErrors and never fail the record; a non-nil error means the
// constructed event failed schema validation and the record must be skipped.
type Transformer interface {
	// Supplier returns the partner identifier stamped on every event.
	Supplier() string
	// Transform normalizes a raw record. now is the processing time used as
	// the fallback deliveredAt when the partner timestamp cannot be parsed.
	Transform(raw json.RawMessage, now time.Time) (*model.NormalizedDelivery, model.DataErrors, error)
}

// searchString evaluates a JMESPath expression and coerces the result to a
// string. Numbers are formatted rather than rejected since partners are
// loose about quoting identifiers.
func searchString(expr string, data any) (string, bool) {
	v, err := jmespath.Search(expr, data)
	if err != nil || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, s != ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return "", false
	}
}

// searchBool evaluates a JMESPath expression as a boolean, defaulting to false.
func searchBool(expr string, data any) bool {
	v, err := jmespath.Search(expr, data)
	if err != nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

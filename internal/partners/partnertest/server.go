// Package partnertest provides in-process partner endpoints with canned
// records, used by tests and the mockpartner command.
package partnertest

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"time"
)

// Options configures a partner handler.
type Options struct {
	// Records is the full canned dataset; requests are filtered to the
	// requested siteId before responding.
	Records []map[string]any
	// SiteIDOf extracts the site identifier from one record.
	SiteIDOf func(rec map[string]any) string
	// FailureRate is the probability in [0,1] that a request is answered
	// with a 503 instead of data.
	FailureRate float64
	// Rand overrides the randomness source for the failure simulation.
	Rand func() float64
}

// Handler returns an http.Handler that serves records matching the siteId
// query parameter, optionally failing a fraction of requests with a 503.
func Handler(opts Options) http.Handler {
	randFloat := opts.Rand
	if randFloat == nil {
		randFloat = rand.Float64
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opts.FailureRate > 0 && randFloat() < opts.FailureRate {
			http.Error(w, `{"error":"service temporarily unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		siteID := r.URL.Query().Get("siteId")
		matched := make([]map[string]any, 0, len(opts.Records))
		for _, rec := range opts.Records {
			if siteID == "" || opts.SiteIDOf == nil || opts.SiteIDOf(rec) == siteID {
				matched = append(matched, rec)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(matched)
	})
}

// PartnerARecords returns sample flat-schema records for the given site.
func PartnerARecords(siteID string) []map[string]any {
	base := time.Date(2025, 10, 27, 8, 0, 0, 0, time.UTC)
	return []map[string]any{
		{
			"site_id":        siteID,
			"order_id":       "A-1001",
			"deliveryStatus": "DELIVERED",
			"podSigned":      true,
			"deliveryTime":   base.Format(time.RFC3339),
		},
		{
			"site_id":        siteID,
			"order_id":       "A-1002",
			"deliveryStatus": "IN_TRANSIT",
			"podSigned":      false,
			"deliveryTime":   base.Add(2 * time.Hour).Format(time.RFC3339),
		},
		{
			"site_id":        siteID,
			"order_id":       "A-1003",
			"deliveryStatus": "CANCELLED",
			"podSigned":      false,
			"deliveryTime":   "not-a-timestamp",
		},
	}
}

// SiteIDOfPartnerA extracts the site identifier from a flat-schema record.
func SiteIDOfPartnerA(rec map[string]any) string {
	s, _ := rec["site_id"].(string)
	return s
}

// PartnerBRecords returns sample nested-schema records for the given site.
func PartnerBRecords(siteID string) []map[string]any {
	base := time.Date(2025, 10, 27, 9, 30, 0, 0, time.UTC)
	return []map[string]any{
		{
			"reference_id": "B-9001",
			"location":     map[string]any{"site_ref": siteID},
			"status":       map[string]any{"code": "COMPLETE"},
			"proof":        map[string]any{"signed": true},
			"timestamps":   map[string]any{"delivery_completion": base.Unix()},
		},
		{
			"reference_id": "B-9002",
			"location":     map[string]any{"site_ref": siteID},
			"status":       map[string]any{"code": "SCHEDULED"},
			"proof":        map[string]any{"signed": false},
			"timestamps":   map[string]any{"delivery_completion": base.Add(3 * time.Hour).Unix()},
		},
	}
}

// SiteIDOfPartnerB extracts the site identifier from a nested-schema record.
func SiteIDOfPartnerB(rec map[string]any) string {
	loc, _ := rec["location"].(map[string]any)
	s, _ := loc["site_ref"].(string)
	return s
}

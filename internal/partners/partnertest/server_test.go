package partnertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRecords(t *testing.T, h http.Handler, url string) (int, []map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", url, nil))
	if rec.Code != http.StatusOK {
		return rec.Code, nil
	}
	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	return rec.Code, records
}

func TestHandlerFiltersBySite(t *testing.T) {
	records := append(PartnerARecords("S1"), PartnerARecords("S2")...)
	h := Handler(Options{Records: records, SiteIDOf: SiteIDOfPartnerA})

	code, matched := getRecords(t, h, "/deliveries?siteId=S1")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, matched, 3)
	for _, rec := range matched {
		assert.Equal(t, "S1", SiteIDOfPartnerA(rec))
	}

	code, matched = getRecords(t, h, "/deliveries")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, matched, 6)
}

func TestHandlerSimulatedFailure(t *testing.T) {
	h := Handler(Options{
		Records:     PartnerBRecords("S1"),
		SiteIDOf:    SiteIDOfPartnerB,
		FailureRate: 0.5,
		Rand:        func() float64 { return 0.1 },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/shipments?siteId=S1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = Handler(Options{
		Records:     PartnerBRecords("S1"),
		SiteIDOf:    SiteIDOfPartnerB,
		FailureRate: 0.5,
		Rand:        func() float64 { return 0.9 },
	})
	code, matched := getRecords(t, h, "/shipments?siteId=S1")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, matched, 2)
}

func TestHandlerUnknownSiteReturnsEmptyArray(t *testing.T) {
	h := Handler(Options{Records: PartnerARecords("S1"), SiteIDOf: SiteIDOfPartnerA})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/deliveries?siteId=nope", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

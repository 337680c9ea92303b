package partners

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/data"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
	"github.com/vestigas/delivery-ingest/internal/domain/retry"
	"github.com/vestigas/delivery-ingest/internal/partners/partnertest"
)

// memoryStore is an in-memory DeliveryStore that mirrors the upsert contract
// on (supplier, supplier_delivery_id).
type memoryStore struct {
	mu     sync.Mutex
	events map[string]*model.DeliveryEvent
	nextID int64

	failFor map[string]error // keyed by supplier delivery id
}

func newMemoryStore() *memoryStore {
	return &memoryStore{events: make(map[string]*model.DeliveryEvent), failFor: make(map[string]error)}
}

func (m *memoryStore) Upsert(_ context.Context, p core.UpsertDeliveryParams) (*model.DeliveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failFor[p.Event.SupplierDeliveryID]; err != nil {
		return nil, err
	}

	key := p.Event.Supplier + "/" + p.Event.SupplierDeliveryID
	if existing, ok := m.events[key]; ok {
		existing.JobID = p.JobID
		existing.UpdatedAt = time.Now().UTC()
		return existing, nil
	}

	m.nextID++
	ev := &model.DeliveryEvent{
		ID:                 m.nextID,
		JobID:              p.JobID,
		SiteID:             p.Event.SiteID,
		Supplier:           p.Event.Supplier,
		SupplierDeliveryID: p.Event.SupplierDeliveryID,
		DeliveredAt:        p.Event.DeliveredAt,
		Status:             p.Event.Status,
		Score:              p.Event.Score,
		Signed:             p.Event.Signed,
		SourceData:         p.SourceData,
		CreatedAt:          time.Now().UTC(),
		UpdatedAt:          time.Now().UTC(),
	}
	m.events[key] = ev
	return ev, nil
}

func (m *memoryStore) ListByJob(_ context.Context, jobID string, _, _ int) (int, []model.DeliveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DeliveryEvent
	for _, ev := range m.events {
		if ev.JobID == jobID {
			out = append(out, *ev)
		}
	}
	return len(out), out, nil
}

func (m *memoryStore) Search(_ context.Context, _ core.DeliverySearchQuery) (int, []model.DeliveryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DeliveryEvent
	for _, ev := range m.events {
		out = append(out, *ev)
	}
	return len(out), out, nil
}

func instantRetry(maxRetries int) *retry.Policy {
	return retry.NewPolicy(retry.PolicyOptions{
		MaxRetries: maxRetries,
		Sleep:      func(context.Context, time.Duration) error { return nil },
	})
}

func newTestClient(t *testing.T, store core.DeliveryStore, maxRetries int) *Client {
	t.Helper()
	c, err := NewClient(ClientOptions{
		Store:        store,
		Retry:        instantRetry(maxRetries),
		FetchTimeout: 2 * time.Second,
		TimeProvider: data.NewFixedTimeProvider(transformNow),
	})
	require.NoError(t, err)
	return c
}

func TestClientFetchStoresRecords(t *testing.T) {
	server := httptest.NewServer(partnertest.Handler(partnertest.Options{
		Records:  partnertest.PartnerARecords("S1"),
		SiteIDOf: partnertest.SiteIDOfPartnerA,
	}))
	defer server.Close()

	store := newMemoryStore()
	client := newTestClient(t, store, 0)

	stats, fatal := client.Fetch(context.Background(), Partner{
		Name:        SupplierA,
		BaseURL:     server.URL,
		Transformer: PartnerA{},
	}, "job-1", "S1", "2025-10-27")

	assert.Nil(t, fatal)
	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 3, stats.Transformed)
	assert.Zero(t, stats.Errors)
	assert.Nil(t, stats.ErrorMessage)
	assert.Len(t, store.events, 3)
}

func TestClientFetchFiltersBySite(t *testing.T) {
	records := append(partnertest.PartnerARecords("S1"), partnertest.PartnerARecords("S2")...)
	server := httptest.NewServer(partnertest.Handler(partnertest.Options{
		Records:  records,
		SiteIDOf: partnertest.SiteIDOfPartnerA,
	}))
	defer server.Close()

	store := newMemoryStore()
	client := newTestClient(t, store, 0)

	stats, fatal := client.Fetch(context.Background(), Partner{
		Name:        SupplierA,
		BaseURL:     server.URL,
		Transformer: PartnerA{},
	}, "job-1", "S2", "2025-10-27")

	assert.Nil(t, fatal)
	assert.Equal(t, 3, stats.Fetched)
	for _, ev := range store.events {
		assert.Equal(t, "S2", ev.SiteID)
	}
}

func TestClientFetchRetriesTransientFailure(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 2 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(partnertest.PartnerBRecords("S1"))
	}))
	defer server.Close()

	store := newMemoryStore()
	client := newTestClient(t, store, 3)

	stats, fatal := client.Fetch(context.Background(), Partner{
		Name:        SupplierB,
		BaseURL:     server.URL,
		Transformer: PartnerB{},
	}, "job-2", "S1", "2025-10-27")

	assert.Nil(t, fatal)
	assert.Equal(t, 3, requests)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 2, stats.Transformed)
}

func TestClientFetchFatalHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such endpoint", http.StatusNotFound)
	}))
	defer server.Close()

	store := newMemoryStore()
	client := newTestClient(t, store, 3)

	stats, fatal := client.Fetch(context.Background(), Partner{
		Name:        SupplierA,
		BaseURL:     server.URL,
		Transformer: PartnerA{},
	}, "job-3", "S1", "2025-10-27")

	require.NotNil(t, fatal)
	assert.Contains(t, *fatal, SupplierA)
	require.NotNil(t, stats.ErrorMessage)
	assert.Contains(t, *stats.ErrorMessage, "404")
	assert.Zero(t, stats.Fetched)
	assert.Empty(t, store.events)
}

func TestClientFetchExhaustedRetriesIsFatal(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		http.Error(w, "still broken", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := newMemoryStore()
	client := newTestClient(t, store, 2)

	stats, fatal := client.Fetch(context.Background(), Partner{
		Name:        SupplierB,
		BaseURL:     server.URL,
		Transformer: PartnerB{},
	}, "job-4", "S1", "2025-10-27")

	require.NotNil(t, fatal)
	assert.Equal(t, 3, requests)
	require.NotNil(t, stats.ErrorMessage)
	assert.Contains(t, *stats.ErrorMessage, "retries exhausted")
}

func TestClientFetchNonArrayResponseIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"error": "unexpected shape"}`)
	}))
	defer server.Close()

	store := newMemoryStore()
	client := newTestClient(t, store, 0)

	stats, fatal := client.Fetch(context.Background(), Partner{
		Name:        SupplierA,
		BaseURL:     server.URL,
		Transformer: PartnerA{},
	}, "job-5", "S1", "2025-10-27")

	require.NotNil(t, fatal)
	require.NotNil(t, stats.ErrorMessage)
	assert.Empty(t, store.events)
}

func TestClientFetchIsolatesRecordFailures(t *testing.T) {
	server := httptest.NewServer(partnertest.Handler(partnertest.Options{
		Records:  partnertest.PartnerARecords("S1"),
		SiteIDOf: partnertest.SiteIDOfPartnerA,
	}))
	defer server.Close()

	store := newMemoryStore()
	store.failFor["A-1002"] = fmt.Errorf("unique constraint blew up")
	client := newTestClient(t, store, 0)

	stats, fatal := client.Fetch(context.Background(), Partner{
		Name:        SupplierA,
		BaseURL:     server.URL,
		Transformer: PartnerA{},
	}, "job-6", "S1", "2025-10-27")

	assert.Nil(t, fatal)
	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 2, stats.Transformed)
	assert.Equal(t, 1, stats.Errors)
	assert.Len(t, store.events, 2)
}

func TestClientFetchUnconfiguredBaseURL(t *testing.T) {
	store := newMemoryStore()
	client := newTestClient(t, store, 0)

	stats, fatal := client.Fetch(context.Background(), Partner{
		Name:        SupplierA,
		Transformer: PartnerA{},
	}, "job-7", "S1", "2025-10-27")

	require.NotNil(t, fatal)
	require.NotNil(t, stats.ErrorMessage)
	assert.Contains(t, *stats.ErrorMessage, "not configured")
}

func TestClientFetchSendsQueryParams(t *testing.T) {
	var gotSite, gotDate string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSite = r.URL.Query().Get("siteId")
		gotDate = r.URL.Query().Get("date")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	store := newMemoryStore()
	client := newTestClient(t, store, 0)

	stats, fatal := client.Fetch(context.Background(), Partner{
		Name:        SupplierA,
		BaseURL:     server.URL,
		Transformer: PartnerA{},
	}, "job-8", "S9", "2025-01-02")

	assert.Nil(t, fatal)
	assert.Zero(t, stats.Fetched)
	assert.Equal(t, "S9", gotSite)
	assert.Equal(t, "2025-01-02", gotDate)
}

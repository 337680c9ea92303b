package httpx

import (
	"log/slog"
	"net/http"

	"github.com/vestigas/delivery-ingest/internal/observability/statsd"
	"github.com/vestigas/delivery-ingest/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Ingest     *service.IngestService
	Deliveries *service.DeliveryService
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Ingest: services.Ingest, Deliveries: services.Deliveries}
	deliveryHandlers := &DeliveryHandlers{Svc: services.Deliveries}

	mux.Handle("POST /fetch", http.HandlerFunc(jobHandlers.StartFetch))
	mux.Handle("GET /jobs/{jobId}", http.HandlerFunc(jobHandlers.GetJob))
	mux.Handle("GET /jobs/{jobId}/results", http.HandlerFunc(jobHandlers.GetJobResults))
	mux.Handle("GET /deliveries", http.HandlerFunc(deliveryHandlers.ListDeliveries))
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = mux
	handler = Metrics(services.Metrics)(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

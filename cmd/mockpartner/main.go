// Command mockpartner serves canned partner data for local development.
// Run one instance per partner shape:
//
//	mockpartner -shape a -addr :9001
//	mockpartner -shape b -addr :9002 -failure-rate 0.3
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/vestigas/delivery-ingest/internal/partners/partnertest"
)

func main() {
	shape := flag.String("shape", "a", "partner record shape to serve: a (flat) or b (nested)")
	addr := flag.String("addr", ":9001", "listen address")
	siteID := flag.String("site", "S1", "site id the canned records belong to")
	failureRate := flag.Float64("failure-rate", 0, "probability in [0,1] of answering 503")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var handler http.Handler
	switch *shape {
	case "a":
		handler = partnertest.Handler(partnertest.Options{
			Records:     partnertest.PartnerARecords(*siteID),
			SiteIDOf:    partnertest.SiteIDOfPartnerA,
			FailureRate: *failureRate,
		})
	case "b":
		handler = partnertest.Handler(partnertest.Options{
			Records:     partnertest.PartnerBRecords(*siteID),
			SiteIDOf:    partnertest.SiteIDOfPartnerB,
			FailureRate: *failureRate,
		})
	default:
		logger.Error("invalid shape", "shape", *shape)
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status on bad flags
	}

	logger.Info("mock partner listening",
		"addr", *addr, "shape", *shape, "site", *siteID, "failure_rate", *failureRate)
	server := &http.Server{Addr: *addr, Handler: handler}
	if err := server.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate server failure to callers
	}
}

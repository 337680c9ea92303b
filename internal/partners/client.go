package partners

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vestigas/delivery-ingest/internal/core"
	"github.com/vestigas/delivery-ingest/internal/data"
	"github.com/vestigas/delivery-ingest/internal/domain/model"
	"github.com/vestigas/delivery-ingest/internal/domain/retry"
	oerrors "github.com/vestigas/delivery-ingest/internal/observability/errors"
	"github.com/vestigas/delivery-ingest/internal/observability/statsd"
)

const (
	defaultFetchTimeout = 5 * time.Second

	// maxResponseBytes caps how much of a partner response is read.
	maxResponseBytes = 10 << 20

	// maxErrorBodyBytes caps how much of an error response body is kept for
	// diagnostics.
	maxErrorBodyBytes = 256
)

// Partner binds a named endpoint to the transformer for its record shape.
type Partner struct {
	Name        string
	BaseURL     string
	Transformer Transformer
}

// ClientOptions configures a fetch Client.
type ClientOptions struct {
	Store        core.DeliveryStore
	HTTPClient   *http.Client
	Retry        *retry.Policy
	FetchTimeout time.Duration
	Logger       *slog.Logger
	Metrics      statsd.Sink
	TimeProvider data.TimeProvider
}

// Client fetches raw records from partner endpoints, transforms them, and
// stores the resulting delivery events. Transport failures are retried per
// the configured policy; record-level failures are isolated so one bad
// record never sinks the batch.
type Client struct {
	store        core.DeliveryStore
	http         *http.Client
	retry        *retry.Policy
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      statsd.Sink
	timeProvider data.TimeProvider
}

// NewClient creates a Client, applying defaults for unset options.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("partners: Store is required")
	}
	c := &Client{
		store:        opts.Store,
		http:         opts.HTTPClient,
		retry:        opts.Retry,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		timeProvider: opts.TimeProvider,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.retry == nil {
		c.retry = retry.NewPolicy(retry.PolicyOptions{Logger: opts.Logger, Metrics: opts.Metrics})
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = defaultFetchTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.timeProvider == nil {
		c.timeProvider = &data.RealTimeProvider{}
	}
	return c, nil
}

// MustNewClient is like NewClient but panics on invalid options.
func MustNewClient(opts ClientOptions) *Client {
	c, err := NewClient(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// Fetch pulls one partner's records for a site and date, transforms them,
// and upserts each resulting event under the given job. It never returns an
// error: transport or decode failures that exhaust the retry budget are
// fatal for this partner only, reported through the returned message. A nil
// message means the batch completed, possibly with record-level errors
// counted in the stats.
func (c *Client) Fetch(ctx context.Context, p Partner, jobID, siteID, date string) (model.PartnerStats, *string) {
	stats := model.PartnerStats{}
	logger := c.logger.With("partner", p.Name, "job_id", jobID, "site_id", siteID, "date", date)

	endpoint, err := partnerURL(p.BaseURL, siteID, date)
	if err != nil {
		detail := err.Error()
		stats.ErrorMessage = &detail
		fatal := fmt.Sprintf("failed to fetch data from %s: %s", p.Name, detail)
		logger.ErrorContext(ctx, "partner endpoint misconfigured", "error", err)
		return stats, &fatal
	}

	var payload []byte
	start := time.Now()
	err = c.retry.Do(ctx, p.Name+" fetch", func(ctx context.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()

		req, rerr := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
		if rerr != nil {
			return fmt.Errorf("build request: %w", rerr)
		}
		req.Header.Set("Accept", "application/json")

		resp, derr := c.http.Do(req)
		if derr != nil {
			return derr
		}
		defer resp.Body.Close()

		body, berr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if berr != nil {
			return fmt.Errorf("read response: %w", berr)
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return &retry.HTTPStatusError{Code: resp.StatusCode, Body: truncate(body, maxErrorBodyBytes)}
		}
		payload = body
		return nil
	})
	c.timing("partner.fetch.duration", time.Since(start), p.Name)
	if err != nil {
		return stats, c.fatal(ctx, logger, p, &stats, "partner fetch failed", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(payload, &records); err != nil {
		return stats, c.fatal(ctx, logger, p, &stats, "partner response is not a record array", err)
	}
	stats.Fetched = len(records)
	c.count("partner.records.fetched", int64(len(records)), p.Name)

	now := c.timeProvider.Now().UTC()
	for _, raw := range records {
		event, dataErrors, terr := p.Transformer.Transform(raw, now)
		if terr != nil {
			stats.Errors++
			logger.ErrorContext(ctx, "record transform failed",
				"record_id", recordID(raw),
				"error", terr,
				"error_class", oerrors.Classify(terr))
			c.count("partner.records.errors", 1, p.Name)
			continue
		}
		if len(dataErrors) > 0 {
			logger.WarnContext(ctx, "record stored with field errors",
				"record_id", event.SupplierDeliveryID,
				"data_errors", dataErrors)
		}
		if _, uerr := c.store.Upsert(ctx, core.UpsertDeliveryParams{
			Event:      event,
			JobID:      jobID,
			SourceData: raw,
			DataErrors: dataErrors,
		}); uerr != nil {
			stats.Errors++
			logger.ErrorContext(ctx, "record upsert failed",
				"record_id", event.SupplierDeliveryID,
				"error", uerr,
				"error_class", oerrors.Classify(uerr))
			c.count("partner.records.errors", 1, p.Name)
			continue
		}
		stats.Transformed++
	}
	c.count("partner.records.stored", int64(stats.Transformed), p.Name)

	logger.InfoContext(ctx, "partner fetch completed",
		"fetched", stats.Fetched,
		"transformed", stats.Transformed,
		"errors", stats.Errors)
	return stats, nil
}

// fatal records a batch-level failure on the stats and builds the message
// that surfaces as the job error.
func (c *Client) fatal(ctx context.Context, logger *slog.Logger, p Partner, stats *model.PartnerStats, msg string, err error) *string {
	detail := err.Error()
	stats.ErrorMessage = &detail
	logger.ErrorContext(ctx, msg, "error", err, "error_class", oerrors.Classify(err))
	c.count("partner.fetch.fatal", 1, p.Name)
	fatal := fmt.Sprintf("failed to fetch data from %s: %s", p.Name, detail)
	return &fatal
}

func (c *Client) count(name string, value int64, partner string) {
	if c.metrics != nil {
		c.metrics.Count(name, value, map[string]string{"partner": partner})
	}
}

func (c *Client) timing(name string, d time.Duration, partner string) {
	if c.metrics != nil {
		c.metrics.Timing(name, d, map[string]string{"partner": partner})
	}
}

func partnerURL(base, siteID, date string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("partner base URL is not configured")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse partner base URL: %w", err)
	}
	q := u.Query()
	q.Set("siteId", siteID)
	q.Set("date", date)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func truncate(body []byte, limit int) string {
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// recordID pulls a best-effort identifier from a raw record for log lines.
func recordID(raw json.RawMessage) string {
	var probe struct {
		OrderID     string `json:"order_id"`
		ReferenceID string `json:"reference_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	if probe.OrderID != "" {
		return probe.OrderID
	}
	return probe.ReferenceID
}

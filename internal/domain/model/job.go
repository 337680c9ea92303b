package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of an ingestion job.
type JobStatus string

const (
	// JobStatusCreated indicates a job has been accepted but not started.
	JobStatusCreated JobStatus = "created"
	// JobStatusProcessing indicates the background fetch run is in flight.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusFinished indicates the run completed, possibly with partial
	// partner failures.
	JobStatusFinished JobStatus = "finished"
	// JobStatusFailed indicates every partner failed fatally with nothing
	// stored, or the orchestration itself broke.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusCreated || s == JobStatusProcessing || s == JobStatusFinished || s == JobStatusFailed
}

// Terminal returns true for statuses that end the job lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

// PartnerStats holds per-partner counters for a single job run.
type PartnerStats struct {
	Fetched      int     `json:"fetched"`
	Transformed  int     `json:"transformed"`
	Errors       int     `json:"errors"`
	ErrorMessage *string `json:"error_message"`
}

// JobStats aggregates per-partner statistics plus overall totals.
//
// The JSON shape is flat: partner names appear as top-level keys next to
// "stored" and "total_fetched", which is what API consumers already parse.
type JobStats struct {
	Partners     map[string]PartnerStats
	Stored       int
	TotalFetched int
}

// NewJobStats returns zeroed stats with an entry per registered partner.
func NewJobStats(partnerNames []string) JobStats {
	partners := make(map[string]PartnerStats, len(partnerNames))
	for _, name := range partnerNames {
		partners[name] = PartnerStats{}
	}
	return JobStats{Partners: partners}
}

// MarshalJSON flattens the partner map into the top-level object.
func (s JobStats) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Partners)+2)
	for name, stats := range s.Partners {
		out[name] = stats
	}
	out["stored"] = s.Stored
	out["total_fetched"] = s.TotalFetched
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON: any key other than the totals is a
// partner entry.
func (s *JobStats) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Partners = make(map[string]PartnerStats)
	for key, val := range raw {
		switch key {
		case "stored":
			if err := json.Unmarshal(val, &s.Stored); err != nil {
				return fmt.Errorf("unmarshal stored: %w", err)
			}
		case "total_fetched":
			if err := json.Unmarshal(val, &s.TotalFetched); err != nil {
				return fmt.Errorf("unmarshal total_fetched: %w", err)
			}
		default:
			var ps PartnerStats
			if err := json.Unmarshal(val, &ps); err != nil {
				return fmt.Errorf("unmarshal partner stats %q: %w", key, err)
			}
			s.Partners[key] = ps
		}
	}
	return nil
}

// Job tracks one asynchronous ingestion run for a site/date pair.
// FinishedAt is non-nil iff Status is terminal; the store's status
// transition enforces this, not callers.
type Job struct {
	ID         string     `json:"jobId"                db:"id"`
	Status     JobStatus  `json:"status"               db:"status"`
	SiteID     string     `json:"siteId"               db:"site_id"`
	Date       string     `json:"date"                 db:"target_date"`
	Stats      JobStats   `json:"stats"                db:"stats"`
	Error      *string    `json:"error,omitempty"      db:"error"`
	CreatedAt  time.Time  `json:"createdAt"            db:"created_at"`
	FinishedAt *time.Time `json:"finishedAt,omitempty" db:"finished_at"`
}

// ErrJobNotFound is returned when a job lookup misses.
var ErrJobNotFound = errors.New("job not found")

// StartJobRequest is the input for starting a new ingestion job.
type StartJobRequest struct {
	SiteID string `json:"siteId"`
	Date   string `json:"date"`
}

const dateLayout = "2006-01-02"

// Validate checks the request fields. The date must be YYYY-MM-DD.
func (r *StartJobRequest) Validate() error {
	if r.SiteID == "" {
		return errors.New("siteId is required and cannot be empty")
	}
	if r.Date == "" {
		return errors.New("date is required and cannot be empty")
	}
	if _, err := time.Parse(dateLayout, r.Date); err != nil {
		return fmt.Errorf("date must be in YYYY-MM-DD format: %w", err)
	}
	return nil
}

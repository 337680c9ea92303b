package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatsJSONFlattening(t *testing.T) {
	msg := "boom"
	stats := JobStats{
		Partners: map[string]PartnerStats{
			"Partner_A": {Fetched: 3, Transformed: 2, Errors: 1},
			"Partner_B": {ErrorMessage: &msg},
		},
		Stored:       2,
		TotalFetched: 3,
	}

	raw, err := json.Marshal(stats)
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Contains(t, flat, "Partner_A")
	assert.Contains(t, flat, "Partner_B")
	assert.Contains(t, flat, "stored")
	assert.Contains(t, flat, "total_fetched")
	assert.NotContains(t, flat, "Partners")

	var back JobStats
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, stats.Stored, back.Stored)
	assert.Equal(t, stats.TotalFetched, back.TotalFetched)
	assert.Equal(t, stats.Partners["Partner_A"], back.Partners["Partner_A"])
	require.NotNil(t, back.Partners["Partner_B"].ErrorMessage)
	assert.Equal(t, msg, *back.Partners["Partner_B"].ErrorMessage)
}

func TestNewJobStats(t *testing.T) {
	stats := NewJobStats([]string{"Partner_A", "Partner_B"})
	assert.Len(t, stats.Partners, 2)
	assert.Equal(t, PartnerStats{}, stats.Partners["Partner_A"])
	assert.Zero(t, stats.Stored)
	assert.Zero(t, stats.TotalFetched)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusCreated.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusFinished.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatus("bogus").Valid())
}

func TestStartJobRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     StartJobRequest
		wantErr string
	}{
		{name: "valid", req: StartJobRequest{SiteID: "S1", Date: "2025-10-27"}},
		{name: "missing site", req: StartJobRequest{Date: "2025-10-27"}, wantErr: "siteId is required"},
		{name: "missing date", req: StartJobRequest{SiteID: "S1"}, wantErr: "date is required"},
		{name: "bad date format", req: StartJobRequest{SiteID: "S1", Date: "27-10-2025"}, wantErr: "YYYY-MM-DD"},
		{name: "impossible date", req: StartJobRequest{SiteID: "S1", Date: "2025-13-45"}, wantErr: "YYYY-MM-DD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

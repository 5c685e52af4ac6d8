package sync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

func TestMapJobState(t *testing.T) {
	tests := []struct {
		remote   string
		expected models.JobState
	}{
		{"recruit", models.JobRecruiting},
		{"recruiting", models.JobRecruiting},
		{"open", models.JobOpen},
		{"pause", models.JobPaused},
		{"paused", models.JobPaused},
		{"close", models.JobClosed},
		{"closed", models.JobClosed},
		{"done", models.JobClosed},
		{"cancel", models.JobCancelled},
		{"canceled", models.JobCancelled},
		{" Cancelled ", models.JobCancelled},
		{"", models.JobOpen},
		{"on-hold", models.JobOpen},
	}

	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapJobState(tt.remote))
		})
	}
}

func TestMapCandidateStage(t *testing.T) {
	tests := []struct {
		label    string
		expected models.CandidateState
	}{
		{"New", models.CandidateApplied},
		{"Initial Qualification", models.CandidateApplied},
		{"qualification", models.CandidateQualified},
		{"Qualified", models.CandidateQualified},
		{"First Interview", models.CandidateInterview},
		{"Second Interview", models.CandidateInterview},
		{"  interview ", models.CandidateInterview},
		{"Contract Proposal", models.CandidateOffer},
		{"Offer", models.CandidateOffer},
		{"Contract Signed", models.CandidateHired},
		{"Hired", models.CandidateHired},
		{"Refused", models.CandidateRejected},
		{"rejected", models.CandidateRejected},
		{"", models.CandidateApplied},
		{"Technical Test", models.CandidateApplied},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapCandidateStage(tt.label))
		})
	}
}

func TestParseRemoteDate(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected *time.Time
		wantErr  bool
	}{
		{name: "empty", value: ""},
		{name: "odoo datetime", value: "2026-09-30 10:15:00", expected: models.Ptr(time.Date(2026, 9, 30, 10, 15, 0, 0, time.UTC))},
		{name: "odoo date", value: "2026-09-30", expected: models.Ptr(time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC))},
		{name: "rfc3339", value: "2026-09-30T12:15:00+02:00", expected: models.Ptr(time.Date(2026, 9, 30, 10, 15, 0, 0, time.UTC))},
		{name: "garbage", value: "30/09/2026", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRemoteDate(tt.value)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedRemoteData))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.expected.Equal(*got), "got %s", got)
		})
	}
}

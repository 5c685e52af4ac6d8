package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/chmdznr/odoo-recruit-sync/pkg/models"
)

// DefaultStage is assumed when an applicant carries no stage label.
const DefaultStage = "Applied"

var jobStates = map[string]models.JobState{
	"recruit":    models.JobRecruiting,
	"recruiting": models.JobRecruiting,
	"open":       models.JobOpen,
	"pause":      models.JobPaused,
	"paused":     models.JobPaused,
	"close":      models.JobClosed,
	"closed":     models.JobClosed,
	"done":       models.JobClosed,
	"cancel":     models.JobCancelled,
	"cancelled":  models.JobCancelled,
	"canceled":   models.JobCancelled,
}

var candidateStages = map[string]models.CandidateState{
	"new":                   models.CandidateApplied,
	"applied":               models.CandidateApplied,
	"initial qualification": models.CandidateApplied,
	"qualified":             models.CandidateQualified,
	"qualification":         models.CandidateQualified,
	"first interview":       models.CandidateInterview,
	"second interview":      models.CandidateInterview,
	"interview":             models.CandidateInterview,
	"contract proposal":     models.CandidateOffer,
	"offer":                 models.CandidateOffer,
	"contract signed":       models.CandidateHired,
	"hired":                 models.CandidateHired,
	"refused":               models.CandidateRejected,
	"rejected":              models.CandidateRejected,
}

// MapJobState maps a remote job state to the local vocabulary. Unknown
// values map to open.
func MapJobState(remote string) models.JobState {
	if state, ok := jobStates[strings.ToLower(strings.TrimSpace(remote))]; ok {
		return state
	}
	return models.JobOpen
}

// MapCandidateStage maps a remote pipeline stage label to a candidate state.
// Unknown labels map to applied.
func MapCandidateStage(label string) models.CandidateState {
	if strings.TrimSpace(label) == "" {
		label = DefaultStage
	}
	if state, ok := candidateStages[strings.ToLower(strings.TrimSpace(label))]; ok {
		return state
	}
	return models.CandidateApplied
}

var remoteDateLayouts = []string{
	time.DateTime,
	time.DateOnly,
	time.RFC3339,
}

// parseRemoteDate reads an Odoo datetime or date (always UTC). An empty
// value is nil without error.
func parseRemoteDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range remoteDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: unparseable date %q", ErrMalformedRemoteData, value)
}

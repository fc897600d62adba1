package reports

import (
	"time"

	"github.com/bryanwahyu/iqexport/internal/domain/apps"
)

// Status enum untuk per-application outcome
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// FetchOutcome is produced exactly once per application per run.
type FetchOutcome struct {
	Application apps.Application `json:"application"`
	Status      Status           `json:"status"`
	Path        string           `json:"path,omitempty"`
	ArtifactURL string           `json:"artifact_url,omitempty"`
	Attempts    int              `json:"attempts"`
	ErrKind     ErrorKind        `json:"error_kind,omitempty"`
	Reason      string           `json:"reason,omitempty"`
}

// Failure is one failed application in the run summary.
type Failure struct {
	PublicID     string    `json:"publicId"`
	Name         string    `json:"name"`
	Organization string    `json:"organization,omitempty"`
	Kind         ErrorKind `json:"kind"`
	Reason       string    `json:"reason"`
}

// RunSummary is the aggregate result of one full pass.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Total          int       `json:"total"`
	Success        int       `json:"success"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
	Failures       []Failure `json:"failures,omitempty"`
}

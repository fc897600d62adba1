package runs

import "time"

// Record is one persisted export run.
type Record struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Total          int       `json:"total"`
	Success        int       `json:"success"`
	Skipped        int       `json:"skipped"`
	Failed         int       `json:"failed"`
}

// Outcome is one persisted per-application result row.
type Outcome struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	ApplicationID string    `json:"application_id"`
	PublicID      string    `json:"public_id"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OutputPath    string    `json:"output_path,omitempty"`
	ArtifactURL   string    `json:"artifact_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

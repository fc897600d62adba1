package export

import (
	"sync"
	"time"

	"github.com/bryanwahyu/iqexport/internal/domain/reports"
	"github.com/bryanwahyu/iqexport/internal/metrics"
)

// Progress is a point-in-time snapshot of a running export, served by the
// status endpoint.
type Progress struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Success   int       `json:"success"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// Aggregator collects FetchOutcomes from concurrent pipelines. It is the only
// shared mutable state of a run; all mutation goes through the lock.
type Aggregator struct {
	mu sync.Mutex

	runID          string
	organizationID string
	startedAt      time.Time
	total          int

	success  int
	skipped  int
	failed   int
	failures []reports.Failure
	outcomes []reports.FetchOutcome

	// org id -> display name, best effort
	orgNames map[string]string
}

func NewAggregator(runID, organizationID string, startedAt time.Time, total int, orgNames map[string]string) *Aggregator {
	return &Aggregator{
		runID:          runID,
		organizationID: organizationID,
		startedAt:      startedAt,
		total:          total,
		orgNames:       orgNames,
	}
}

// Record accepts one outcome. Safe for concurrent use.
func (a *Aggregator) Record(o reports.FetchOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcomes = append(a.outcomes, o)
	switch o.Status {
	case reports.StatusSuccess:
		a.success++
	case reports.StatusSkipped:
		a.skipped++
	case reports.StatusFailed:
		a.failed++
		a.failures = append(a.failures, reports.Failure{
			PublicID:     o.Application.PublicID,
			Name:         o.Application.Name,
			Organization: a.orgNames[o.Application.OrganizationID],
			Kind:         o.ErrKind,
			Reason:       o.Reason,
		})
	}
	metrics.OutcomesTotal.WithLabelValues(string(o.Status)).Inc()
}

// Progress returns a snapshot for the status server.
func (a *Aggregator) Progress() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Progress{
		RunID:     a.runID,
		StartedAt: a.startedAt,
		Total:     a.total,
		Completed: a.success + a.skipped + a.failed,
		Success:   a.success,
		Skipped:   a.skipped,
		Failed:    a.failed,
	}
}

// Summary finalizes the run. Call after every dispatched pipeline settled.
func (a *Aggregator) Summary(finishedAt time.Time) *reports.RunSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	failures := make([]reports.Failure, len(a.failures))
	copy(failures, a.failures)
	return &reports.RunSummary{
		RunID:          a.runID,
		OrganizationID: a.organizationID,
		StartedAt:      a.startedAt,
		FinishedAt:     finishedAt,
		Total:          a.total,
		Success:        a.success,
		Skipped:        a.skipped,
		Failed:         a.failed,
		Failures:       failures,
	}
}

// Outcomes returns a copy of everything recorded so far.
func (a *Aggregator) Outcomes() []reports.FetchOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]reports.FetchOutcome, len(a.outcomes))
	copy(out, a.outcomes)
	return out
}

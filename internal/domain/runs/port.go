package runs

import "context"

// Repository defines persistence for export runs and their outcomes
type Repository interface {
	SaveRun(ctx context.Context, r *Record) error
	SaveOutcomes(ctx context.Context, outcomes []*Outcome) error
	LatestRuns(ctx context.Context, limit int) ([]*Record, error)
}

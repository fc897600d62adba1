package ai

import "context"

// Client produces a triage summary for a finished export run.
type Client interface {
	Analyze(ctx context.Context, runSummaryJSON string) (string, error)
}

package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/iqexport/internal/application"
	"github.com/bryanwahyu/iqexport/internal/domain/ai"
	"github.com/bryanwahyu/iqexport/internal/domain/apps"
	"github.com/bryanwahyu/iqexport/internal/domain/reports"
	"github.com/bryanwahyu/iqexport/internal/domain/runs"
	"github.com/bryanwahyu/iqexport/internal/metrics"
)

// Service implements the export use-case: enumerate applications once, run
// the resolve -> fetch -> serialize pipeline for each one under a bounded
// worker pool, and aggregate outcomes. Safe for a single Run per instance.
type Service struct {
	Directory  apps.Directory
	Source     reports.Source
	Serializer reports.Serializer

	// Optional collaborators; nil disables the feature.
	Artifacts reports.ArtifactStore
	History   runs.Repository
	Triage    ai.Client

	Clock  application.Clock
	Logger *zap.Logger

	// TriageDir is where the triage JSON lands; empty falls back to logging.
	TriageDir string

	// Workers caps the number of application pipelines in flight.
	Workers int
	// OrganizationID restricts enumeration when non-empty.
	OrganizationID string

	mu  sync.Mutex
	agg *Aggregator
}

// Progress reports the state of the current run; zero value before Run starts.
func (s *Service) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agg == nil {
		return Progress{}
	}
	return s.agg.Progress()
}

// Run performs one full pass over the application set. Only enumeration
// failures and authentication failures are fatal; everything else is folded
// into the summary. The partial summary is returned alongside a fatal error.
func (s *Service) Run(ctx context.Context) (*reports.RunSummary, error) {
	runID := uuid.New().String()
	started := s.Clock.Now()
	log := s.Logger.With(zap.String("run_id", runID))

	applications, err := s.Directory.ListApplications(ctx, s.OrganizationID)
	if err != nil {
		log.Error("application enumeration failed", zap.Error(err))
		agg := NewAggregator(runID, s.OrganizationID, started, 0, nil)
		return agg.Summary(s.Clock.Now()), fmt.Errorf("list applications: %w", err)
	}
	log.Info("enumerated applications",
		zap.Int("count", len(applications)),
		zap.String("organization_id", s.OrganizationID))

	// Best effort: org names enrich logs, failures and the run history.
	orgNames := s.organizationNames(ctx, log)

	agg := NewAggregator(runID, s.OrganizationID, started, len(applications), orgNames)
	s.mu.Lock()
	s.agg = agg
	s.mu.Unlock()

	workers := s.Workers
	if workers <= 0 {
		workers = 8
	}
	if workers > len(applications) && len(applications) > 0 {
		workers = len(applications)
	}

	runCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

dispatch:
	for _, app := range applications {
		// First AuthError cancels pending dispatch; in-flight pipelines
		// are left to settle naturally.
		select {
		case <-runCtx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(app apps.Application) {
			defer wg.Done()
			defer func() { <-sem }()

			// The run may have been aborted while this pipeline waited
			// for its slot.
			if runCtx.Err() != nil {
				return
			}

			metrics.PipelinesInFlight.Inc()
			defer metrics.PipelinesInFlight.Dec()

			outcome := s.processOne(runCtx, log, runID, app)
			if outcome.ErrKind == reports.KindAuth {
				abort(&reports.Error{Kind: reports.KindAuth, Err: fmt.Errorf("credentials rejected while processing %s", app.PublicID)})
			}
			agg.Record(outcome)
		}(app)
	}

	wg.Wait()

	summary := agg.Summary(s.Clock.Now())
	s.finish(ctx, log, summary, agg)

	if cause := context.Cause(runCtx); cause != nil && reports.IsAuth(cause) {
		return summary, cause
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// organizationNames builds the org id -> name map; a failure here degrades to
// raw ids, matching the rest of the tool's per-application isolation.
func (s *Service) organizationNames(ctx context.Context, log *zap.Logger) map[string]string {
	orgs, err := s.Directory.ListOrganizations(ctx)
	if err != nil {
		log.Warn("organization listing failed, using raw ids", zap.Error(err))
		return nil
	}
	names := make(map[string]string, len(orgs))
	for _, org := range orgs {
		names[org.ID] = org.Name
	}
	return names
}

// processOne runs the per-application pipeline. Every failure is converted to
// a FetchOutcome at this boundary so it cannot affect sibling pipelines.
func (s *Service) processOne(ctx context.Context, log *zap.Logger, runID string, app apps.Application) reports.FetchOutcome {
	log = log.With(zap.String("public_id", app.PublicID), zap.String("application", app.Name))

	info, attempts, err := s.Source.LatestReport(ctx, app)
	if err != nil {
		log.Warn("resolve latest report failed", zap.Error(err))
		return failedOutcome(app, err)
	}
	if info == nil {
		log.Info("no report yet, skipping")
		return reports.FetchOutcome{Application: app, Status: reports.StatusSkipped, Attempts: attempts}
	}

	payload, fetchAttempts, err := s.Source.RawReport(ctx, app, *info)
	if fetchAttempts > attempts {
		attempts = fetchAttempts
	}
	if err != nil {
		log.Warn("raw report fetch failed", zap.Error(err))
		return failedOutcome(app, err)
	}

	filePath, err := s.Serializer.Serialize(app, *info, payload)
	if err != nil {
		log.Warn("serialize failed", zap.Error(err))
		o := failedOutcome(app, err)
		o.Attempts = attempts
		return o
	}

	outcome := reports.FetchOutcome{
		Application: app,
		Status:      reports.StatusSuccess,
		Path:        filePath,
		Attempts:    attempts,
	}

	if s.Artifacts != nil {
		key := fmt.Sprintf("%s/%s", runID, path.Base(filePath))
		url, upErr := s.Artifacts.Upload(ctx, filePath, key)
		if upErr != nil {
			// Upload is a convenience on top of the local CSV; never
			// fail the pipeline for it.
			log.Warn("artifact upload failed", zap.Error(upErr))
		} else {
			outcome.ArtifactURL = url
		}
	}

	log.Info("report exported",
		zap.String("path", filePath),
		zap.Int("components", len(payload.Components)),
		zap.Int("attempts", attempts))
	return outcome
}

func failedOutcome(app apps.Application, err error) reports.FetchOutcome {
	return reports.FetchOutcome{
		Application: app,
		Status:      reports.StatusFailed,
		Attempts:    reports.AttemptsOf(err),
		ErrKind:     reports.KindOf(err),
		Reason:      err.Error(),
	}
}

// finish logs the summary and drives the optional post-run collaborators.
func (s *Service) finish(ctx context.Context, log *zap.Logger, summary *reports.RunSummary, agg *Aggregator) {
	log.Info("run finished",
		zap.Int("total", summary.Total),
		zap.Int("success", summary.Success),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	for _, f := range summary.Failures {
		log.Warn("application failed",
			zap.String("public_id", f.PublicID),
			zap.String("kind", string(f.Kind)),
			zap.String("reason", f.Reason))
	}

	if s.History != nil {
		if err := s.persistHistory(ctx, summary, agg.Outcomes()); err != nil {
			log.Warn("run history persist failed", zap.Error(err))
		}
	}

	if s.Triage != nil && summary.Total > 0 {
		if err := s.runTriage(ctx, summary); err != nil {
			log.Warn("triage failed", zap.Error(err))
		}
	}
}

func (s *Service) persistHistory(ctx context.Context, summary *reports.RunSummary, outcomes []reports.FetchOutcome) error {
	rec := &runs.Record{
		ID:             summary.RunID,
		OrganizationID: summary.OrganizationID,
		StartedAt:      summary.StartedAt,
		FinishedAt:     summary.FinishedAt,
		Total:          summary.Total,
		Success:        summary.Success,
		Skipped:        summary.Skipped,
		Failed:         summary.Failed,
	}
	if err := s.History.SaveRun(ctx, rec); err != nil {
		return err
	}

	rows := make([]*runs.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, &runs.Outcome{
			RunID:         summary.RunID,
			ApplicationID: string(o.Application.ID),
			PublicID:      o.Application.PublicID,
			Status:        string(o.Status),
			Attempts:      o.Attempts,
			ErrorKind:     string(o.ErrKind),
			Reason:        o.Reason,
			OutputPath:    o.Path,
			ArtifactURL:   o.ArtifactURL,
			CreatedAt:     summary.FinishedAt,
		})
	}
	return s.History.SaveOutcomes(ctx, rows)
}

func (s *Service) runTriage(ctx context.Context, summary *reports.RunSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	result, err := s.Triage.Analyze(ctx, string(body))
	if err != nil {
		return err
	}
	if s.TriageDir != "" {
		dest := path.Join(s.TriageDir, summary.RunID+"_triage.json")
		if err := os.WriteFile(dest, []byte(result), 0o644); err != nil {
			return err
		}
		s.Logger.Info("triage summary written", zap.String("path", dest))
		return nil
	}
	s.Logger.Info("triage summary",
		zap.String("run_id", summary.RunID),
		zap.String("result", result))
	return nil
}

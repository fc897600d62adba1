package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/bryanwahyu/iqexport/internal/domain/runs"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) SaveRun(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO export_runs
(id, organization_id, started_at, finished_at, total, success, skipped, failed)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
 finished_at=EXCLUDED.finished_at,
 total=EXCLUDED.total, success=EXCLUDED.success,
 skipped=EXCLUDED.skipped, failed=EXCLUDED.failed;
`
	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, orDash(rec.OrganizationID), started, rec.FinishedAt,
		rec.Total, rec.Success, rec.Skipped, rec.Failed,
	)
	return err
}

func (r *RunRepository) SaveOutcomes(ctx context.Context, outcomes []*domain.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	const q = `
INSERT INTO export_outcomes
(run_id, application_id, public_id, status, attempts, error_kind, reason, output_path, artifact_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);
`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		created := o.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			o.RunID, orDash(o.ApplicationID), orDash(o.PublicID),
			orDash(o.Status), o.Attempts,
			o.ErrorKind, o.Reason, o.OutputPath, o.ArtifactURL, created,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *RunRepository) LatestRuns(ctx context.Context, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, organization_id, started_at, finished_at, total, success, skipped, failed
FROM export_runs
ORDER BY started_at DESC
LIMIT $1;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(
			&rec.ID, &rec.OrganizationID, &rec.StartedAt, &rec.FinishedAt,
			&rec.Total, &rec.Success, &rec.Skipped, &rec.Failed,
		); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DeividasMat/deal-website-sub000/internal/ingest"
)

const maxRunErrorLength = 4000

var (
	_ ingest.Store       = (*Pool)(nil)
	_ ingest.RunRecorder = (*Pool)(nil)
)

// IngestRunRecord is one row of the run audit trail.
type IngestRunRecord struct {
	RunUUID      string     `json:"run_uuid"`
	TargetDate   time.Time  `json:"target_date"`
	Status       string     `json:"status"`
	Sections     int        `json:"sections"`
	Candidates   int        `json:"candidates"`
	Inserted     int        `json:"inserted"`
	Patched      int        `json:"patched"`
	Skipped      int        `json:"skipped"`
	SweepDeleted int        `json:"sweep_deleted"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func (p *Pool) StartIngestRun(ctx context.Context, runUUID string, targetDate, startedAt time.Time) error {
	const q = `
INSERT INTO deals.ingest_runs (ingest_run_uuid, target_date, status, started_at)
VALUES ($1::uuid, $2::date, 'running', $3)
`
	if _, err := p.Exec(ctx, q, runUUID, dayParam(targetDate), startedAt.UTC()); err != nil {
		return fmt.Errorf("insert ingest run: %w", err)
	}
	return nil
}

// FinishIngestRun stores the final counters and the full summary document.
func (p *Pool) FinishIngestRun(ctx context.Context, summary ingest.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}

	var errorMessage *string
	if msg := truncateRunError(summary.Error); msg != "" {
		errorMessage = &msg
	}
	status := summary.Status
	if status == "" {
		status = ingest.RunStatusCompleted
	}

	const q = `
UPDATE deals.ingest_runs
SET
	status = $2::deals.ingest_run_status,
	sections = $3,
	candidates = $4,
	items_inserted = $5,
	items_patched = $6,
	items_skipped = $7,
	sweep_deleted = $8,
	summary = $9::jsonb,
	error_message = $10,
	finished_at = $11,
	updated_at = now()
WHERE ingest_run_uuid = $1::uuid
`
	tag, err := p.Exec(ctx, q,
		summary.RunUUID,
		status,
		summary.Sections,
		summary.Candidates,
		summary.Inserted,
		summary.Patched,
		summary.Skipped,
		summary.Sweep.Deleted,
		string(payload),
		errorMessage,
		summary.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("finish ingest run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (p *Pool) ListIngestRuns(ctx context.Context, limit int) ([]IngestRunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	r.ingest_run_uuid::text,
	r.target_date,
	r.status::text,
	r.sections,
	r.candidates,
	r.items_inserted,
	r.items_patched,
	r.items_skipped,
	r.sweep_deleted,
	r.error_message,
	r.started_at,
	r.finished_at
FROM deals.ingest_runs r
ORDER BY r.started_at DESC, r.run_id DESC
LIMIT $1
`
	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingest runs: %w", err)
	}
	defer rows.Close()

	out := make([]IngestRunRecord, 0, limit)
	for rows.Next() {
		var r IngestRunRecord
		if err := rows.Scan(
			&r.RunUUID,
			&r.TargetDate,
			&r.Status,
			&r.Sections,
			&r.Candidates,
			&r.Inserted,
			&r.Patched,
			&r.Skipped,
			&r.SweepDeleted,
			&r.ErrorMessage,
			&r.StartedAt,
			&r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ingest run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingest runs: %w", err)
	}
	return out, nil
}

func truncateRunError(msg string) string {
	msg = strings.TrimSpace(msg)
	if len(msg) > maxRunErrorLength {
		msg = msg[:maxRunErrorLength]
	}
	return msg
}

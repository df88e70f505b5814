package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nexus-crypto-desk/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// RunRepository persists completed analysis runs and audit events. Run
// artifacts are stored as JSONB documents; they are written once and read
// back whole, never queried field by field.
type RunRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewRunRepository(pool PgxPool, tracer trace.Tracer) *RunRepository {
	return &RunRepository{pool: pool, tracer: tracer}
}

func (r *RunRepository) RecordRun(ctx context.Context, record *domain.RunRecord) error {
	_, span := r.tracer.Start(ctx, "run-repo.record-run")
	defer span.End()

	snapshot, err := json.Marshal(record.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	outputs, err := json.Marshal(record.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	var plan []byte
	if record.Plan != nil {
		if plan, err = json.Marshal(record.Plan); err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
	}
	validation, err := json.Marshal(record.Validation)
	if err != nil {
		return fmt.Errorf("marshal validation: %w", err)
	}
	freshness, err := json.Marshal(record.Freshness)
	if err != nil {
		return fmt.Errorf("marshal freshness: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO run_records (symbol, mode, snapshot, outputs, plan, validation, freshness, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.Symbol, record.Mode, snapshot, outputs, plan, validation, freshness,
		record.StartedAt, record.FinishedAt,
	)
	return err
}

// RecentRuns returns the newest runs for a symbol, newest first. An empty
// symbol returns runs across all assets.
func (r *RunRepository) RecentRuns(ctx context.Context, symbol string, limit int) ([]*domain.RunRecord, error) {
	_, span := r.tracer.Start(ctx, "run-repo.recent-runs")
	defer span.End()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `SELECT id, symbol, mode, snapshot, outputs, plan, validation, freshness, started_at, finished_at
		 FROM run_records`
	args := []any{}
	if symbol != "" {
		query += ` WHERE symbol = $1`
		args = append(args, symbol)
	}
	query += fmt.Sprintf(` ORDER BY finished_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.RunRecord
	for rows.Next() {
		record := &domain.RunRecord{}
		var snapshot, outputs, plan, validation, freshness []byte
		if err := rows.Scan(&record.ID, &record.Symbol, &record.Mode,
			&snapshot, &outputs, &plan, &validation, &freshness,
			&record.StartedAt, &record.FinishedAt); err != nil {
			return nil, err
		}
		if err := unmarshalRun(record, snapshot, outputs, plan, validation, freshness); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func unmarshalRun(record *domain.RunRecord, snapshot, outputs, plan, validation, freshness []byte) error {
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &record.Snapshot); err != nil {
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
	}
	if len(outputs) > 0 {
		if err := json.Unmarshal(outputs, &record.Outputs); err != nil {
			return fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	if len(plan) > 0 {
		if err := json.Unmarshal(plan, &record.Plan); err != nil {
			return fmt.Errorf("unmarshal plan: %w", err)
		}
	}
	if len(validation) > 0 {
		if err := json.Unmarshal(validation, &record.Validation); err != nil {
			return fmt.Errorf("unmarshal validation: %w", err)
		}
	}
	if len(freshness) > 0 {
		if err := json.Unmarshal(freshness, &record.Freshness); err != nil {
			return fmt.Errorf("unmarshal freshness: %w", err)
		}
	}
	return nil
}

func (r *RunRepository) RecordAuditEvent(ctx context.Context, action, status string, metadata map[string]any) error {
	_, span := r.tracer.Start(ctx, "run-repo.record-audit-event")
	defer span.End()

	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_events (action, status, metadata, created_at)
		 VALUES ($1, $2, $3, $4)`,
		action, status, meta, time.Now().UTC(),
	)
	return err
}

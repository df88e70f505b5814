package repository

import (
	"context"
	"errors"
	"time"

	"nexus-crypto-desk/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// ErrPlanNotFound is returned when a plan id does not exist.
var ErrPlanNotFound = errors.New("trade plan not found")

type PlanRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPlanRepository(pool PgxPool, tracer trace.Tracer) *PlanRepository {
	return &PlanRepository{pool: pool, tracer: tracer}
}

func (r *PlanRepository) Create(ctx context.Context, plan *domain.TradePlan) error {
	_, span := r.tracer.Start(ctx, "plan-repo.create")
	defer span.End()

	now := time.Now().UTC()
	plan.Status = domain.PlanActive
	plan.CreatedAt = now
	plan.UpdatedAt = now

	return r.pool.QueryRow(ctx,
		`INSERT INTO trade_plans (symbol, side, entry_price, target_price, stop_price, status, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		plan.Symbol, plan.Side, plan.EntryPrice, plan.TargetPrice, plan.StopPrice,
		plan.Status, plan.Note, plan.CreatedAt, plan.UpdatedAt,
	).Scan(&plan.ID)
}

func (r *PlanRepository) Get(ctx context.Context, id int64) (*domain.TradePlan, error) {
	_, span := r.tracer.Start(ctx, "plan-repo.get")
	defer span.End()

	plan := &domain.TradePlan{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, symbol, side, entry_price, target_price, stop_price, status, note, created_at, updated_at
		 FROM trade_plans WHERE id = $1`, id,
	).Scan(&plan.ID, &plan.Symbol, &plan.Side, &plan.EntryPrice, &plan.TargetPrice,
		&plan.StopPrice, &plan.Status, &plan.Note, &plan.CreatedAt, &plan.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// List returns plans newest first. An empty statuses slice returns all plans.
func (r *PlanRepository) List(ctx context.Context, statuses []string) ([]*domain.TradePlan, error) {
	_, span := r.tracer.Start(ctx, "plan-repo.list")
	defer span.End()

	query := `SELECT id, symbol, side, entry_price, target_price, stop_price, status, note, created_at, updated_at
		 FROM trade_plans`
	args := []any{}
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		args = append(args, statuses)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*domain.TradePlan
	for rows.Next() {
		plan := &domain.TradePlan{}
		if err := rows.Scan(&plan.ID, &plan.Symbol, &plan.Side, &plan.EntryPrice,
			&plan.TargetPrice, &plan.StopPrice, &plan.Status, &plan.Note,
			&plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, span := r.tracer.Start(ctx, "plan-repo.update-status")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`UPDATE trade_plans SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanNotFound
	}
	return nil
}

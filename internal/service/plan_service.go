package service

import (
	"context"
	"fmt"
	"log"

	"nexus-crypto-desk/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PlanRepo is the persistence surface for trade plans.
type PlanRepo interface {
	Create(ctx context.Context, plan *domain.TradePlan) error
	Get(ctx context.Context, id int64) (*domain.TradePlan, error)
	List(ctx context.Context, statuses []string) ([]*domain.TradePlan, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// QuoteSource supplies the latest quote per symbol.
type QuoteSource interface {
	GetCurrentPrice(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)
}

// PlanNotifier receives plan status-change alerts. Nil disables alerting.
type PlanNotifier interface {
	NotifyPlan(plan *domain.TradePlan, price float64)
}

// ActivitySink receives desk log entries.
type ActivitySink interface {
	Add(kind, message, details string)
}

// PlanService manages user trade plans and evaluates them against live
// quotes. The desk only watches: no orders are ever placed.
type PlanService struct {
	tracer   trace.Tracer
	repo     PlanRepo
	quotes   QuoteSource
	notifier PlanNotifier
	logs     ActivitySink
}

func NewPlanService(tracer trace.Tracer, repo PlanRepo, quotes QuoteSource, notifier PlanNotifier, logs ActivitySink) *PlanService {
	return &PlanService{tracer: tracer, repo: repo, quotes: quotes, notifier: notifier, logs: logs}
}

func (s *PlanService) Create(ctx context.Context, plan *domain.TradePlan) error {
	_, span := s.tracer.Start(ctx, "plan-service.create")
	defer span.End()

	if err := validatePlan(plan); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return err
	}
	s.logs.Add(domain.LogSystem,
		fmt.Sprintf("trade plan #%d created for %s", plan.ID, plan.Symbol),
		fmt.Sprintf("%s entry %.4f target %.4f stop %.4f", plan.Side, plan.EntryPrice, plan.TargetPrice, plan.StopPrice))
	return nil
}

func (s *PlanService) Get(ctx context.Context, id int64) (*domain.TradePlan, error) {
	return s.repo.Get(ctx, id)
}

func (s *PlanService) List(ctx context.Context, statuses []string) ([]*domain.TradePlan, error) {
	return s.repo.List(ctx, statuses)
}

func (s *PlanService) Cancel(ctx context.Context, id int64) error {
	_, span := s.tracer.Start(ctx, "plan-service.cancel")
	defer span.End()

	plan, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if plan.Status != domain.PlanActive && plan.Status != domain.PlanTriggered {
		return fmt.Errorf("plan #%d is %s and cannot be cancelled", id, plan.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, domain.PlanCancelled); err != nil {
		return err
	}
	s.logs.Add(domain.LogSystem, fmt.Sprintf("trade plan #%d cancelled", id), "")
	return nil
}

// Sync evaluates every open plan against the latest quote and applies
// status transitions. Quotes are fetched once per distinct symbol.
func (s *PlanService) Sync(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "plan-service.sync")
	defer span.End()

	plans, err := s.repo.List(ctx, []string{domain.PlanActive, domain.PlanTriggered})
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("open_plans", len(plans)))

	quotes := make(map[string]float64)
	for _, plan := range plans {
		price, ok := quotes[plan.Symbol]
		if !ok {
			snap, err := s.quotes.GetCurrentPrice(ctx, plan.Symbol)
			if err != nil {
				log.Printf("plan sync quote for %s: %v", plan.Symbol, err)
				continue
			}
			price = snap.PriceUSD
			quotes[plan.Symbol] = price
		}

		next := nextPlanStatus(plan, price)
		if next == "" {
			continue
		}
		if err := s.repo.UpdateStatus(ctx, plan.ID, next); err != nil {
			log.Printf("plan sync update #%d: %v", plan.ID, err)
			continue
		}
		plan.Status = next
		s.logs.Add(domain.LogSystem,
			fmt.Sprintf("trade plan #%d for %s is now %s", plan.ID, plan.Symbol, next),
			fmt.Sprintf("price %.4f", price))
		if s.notifier != nil {
			s.notifier.NotifyPlan(plan, price)
		}
	}
	return nil
}

// nextPlanStatus returns the transition for one plan at the given price, or
// "" when the plan stays put. An ACTIVE plan triggers when price touches
// the entry; a TRIGGERED plan resolves at target or stop, stop winning ties.
func nextPlanStatus(plan *domain.TradePlan, price float64) string {
	long := plan.Side == domain.SideLong
	switch plan.Status {
	case domain.PlanActive:
		if long && price <= plan.EntryPrice {
			return domain.PlanTriggered
		}
		if !long && price >= plan.EntryPrice {
			return domain.PlanTriggered
		}
	case domain.PlanTriggered:
		if long {
			if price <= plan.StopPrice {
				return domain.PlanStopped
			}
			if price >= plan.TargetPrice {
				return domain.PlanTargetHit
			}
		} else {
			if price >= plan.StopPrice {
				return domain.PlanStopped
			}
			if price <= plan.TargetPrice {
				return domain.PlanTargetHit
			}
		}
	}
	return ""
}

func validatePlan(plan *domain.TradePlan) error {
	if !domain.IsSupportedSymbol(plan.Symbol) {
		return fmt.Errorf("unsupported symbol: %s", plan.Symbol)
	}
	if !domain.IsValidSide(plan.Side) {
		return fmt.Errorf("side must be %s or %s", domain.SideLong, domain.SideShort)
	}
	if plan.EntryPrice <= 0 || plan.TargetPrice <= 0 || plan.StopPrice <= 0 {
		return fmt.Errorf("entry, target, and stop prices must be positive")
	}
	if plan.Side == domain.SideLong && !(plan.TargetPrice > plan.EntryPrice && plan.EntryPrice > plan.StopPrice) {
		return fmt.Errorf("long plan requires target > entry > stop")
	}
	if plan.Side == domain.SideShort && !(plan.TargetPrice < plan.EntryPrice && plan.EntryPrice < plan.StopPrice) {
		return fmt.Errorf("short plan requires target < entry < stop")
	}
	return nil
}

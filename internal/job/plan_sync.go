package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// PlanSyncJob periodically checks open trade plans against live quotes and
// advances their state machine.
type PlanSyncJob struct {
	tracer       trace.Tracer
	plans        PlanSyncer
	syncInterval time.Duration
}

type PlanSyncer interface {
	Sync(ctx context.Context) error
}

func NewPlanSyncJob(tracer trace.Tracer, plans PlanSyncer, syncIntervalSecs int) *PlanSyncJob {
	return &PlanSyncJob{
		tracer:       tracer,
		plans:        plans,
		syncInterval: time.Duration(syncIntervalSecs) * time.Second,
	}
}

// Start blocks until ctx is cancelled, syncing plans on every tick.
func (j *PlanSyncJob) Start(ctx context.Context) {
	log.Println("Plan sync starting...")

	ticker := time.NewTicker(j.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Plan sync stopped")
			return
		case <-ticker.C:
			runCtx, span := j.tracer.Start(ctx, "job.plan-sync")
			if err := j.plans.Sync(runCtx); err != nil {
				log.Printf("plan sync error: %v", err)
			}
			span.End()
		}
	}
}

package chaos

import (
	"context"
	"log"
	"time"

	"github.com/cosmocargo/project/internal/platform/metrics"
)

var schedulerTicks = metrics.NewCounterVec(metrics.Opts{
	Name: "chaos_scheduler_ticks_total",
	Help: "Scheduler iterations, by outcome.",
}, []string{"outcome"})

func init() {
	metrics.Default.MustRegister(schedulerTicks)
}

// ShipmentSource picks a random shipment that is still in flight, or
// nil when none exists.
type ShipmentSource interface {
	RandomEligibleShipment(ctx context.Context) (*Shipment, error)
}

// Scheduler periodically applies a chaos event to a random eligible
// shipment. Failures are logged and the loop carries on; only context
// cancellation stops it.
type Scheduler struct {
	Engine *Engine
	Repo   ShipmentSource
	Config *Config
	Logf   func(format string, args ...any)
}

func NewScheduler(engine *Engine, repo ShipmentSource, cfg *Config) *Scheduler {
	return &Scheduler{
		Engine: engine,
		Repo:   repo,
		Config: cfg,
		Logf:   log.Printf,
	}
}

func (s *Scheduler) logf(format string, args ...any) {
	if s.Logf != nil {
		s.Logf(format, args...)
	}
}

// Run blocks until ctx is cancelled. The enabled flag and the interval
// are re-read every iteration, so both react to runtime changes: a
// disabled scheduler keeps waking up, sees the flag, and does nothing.
func (s *Scheduler) Run(ctx context.Context) {
	s.logf("chaos scheduler started: enabled=%t interval=%s", s.Config.Enabled(), s.Config.Interval())
	for {
		if ctx.Err() != nil {
			s.logf("chaos scheduler stopped")
			return
		}
		if s.Config.Enabled() {
			s.tick(ctx)
		} else {
			schedulerTicks.WithLabelValues("disabled").Inc()
		}

		select {
		case <-ctx.Done():
			s.logf("chaos scheduler stopped")
			return
		case <-time.After(s.Config.Interval()):
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	shipment, err := s.Repo.RandomEligibleShipment(ctx)
	if err != nil {
		s.logf("chaos scheduler: pick shipment: %v", err)
		schedulerTicks.WithLabelValues("error").Inc()
		return
	}
	if shipment == nil {
		s.logf("chaos scheduler: no eligible shipments")
		schedulerTicks.WithLabelValues("no_shipment").Inc()
		return
	}

	_, entry, err := s.Engine.Apply(ctx, *shipment)
	if err != nil {
		s.logf("chaos scheduler: %v", err)
		schedulerTicks.WithLabelValues("error").Inc()
		return
	}
	if entry == nil {
		s.logf("chaos scheduler: no chaos event applied to shipment %s", shipment.ID)
		schedulerTicks.WithLabelValues("no_event").Inc()
		return
	}

	s.logf("chaos scheduler: applied %s to shipment %s (log %d)", entry.EventType, shipment.ID, entry.ID)
	schedulerTicks.WithLabelValues("applied").Inc()
}

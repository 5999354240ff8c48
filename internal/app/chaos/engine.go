package chaos

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cosmocargo/project/internal/app/catalog"
	"github.com/cosmocargo/project/internal/contracts"
	"github.com/cosmocargo/project/internal/platform/metrics"
	"github.com/cosmocargo/project/internal/sharding"
)

var eventsApplied = metrics.NewCounterVec(metrics.Opts{
	Name: "chaos_events_applied_total",
	Help: "Chaos events applied to shipments, by event type.",
}, []string{"event_type"})

func init() {
	metrics.Default.MustRegister(eventsApplied)
}

// DefinitionSource lists the current event catalog.
type DefinitionSource interface {
	List(ctx context.Context) ([]catalog.Definition, error)
}

// EventWriter persists a shipment mutation and its log entry in one
// transaction and returns the assigned log id.
type EventWriter interface {
	ApplyEvent(ctx context.Context, shipment Shipment, entry Log) (int64, error)
}

type PublishFunc func(subject string, payload []byte) error

// Engine selects a chaos event and applies it to one shipment: the
// shipment row and the log entry are written atomically, then the
// applied event is announced on the message bus. Publishing is best
// effort; the database record is the source of truth.
type Engine struct {
	Catalog  DefinitionSource
	Repo     EventWriter
	Selector Selector
	Registry map[string]Mutation
	Publish  PublishFunc
	Now      func() time.Time
}

func NewEngine(catalogSvc DefinitionSource, repo EventWriter, publish PublishFunc) *Engine {
	return &Engine{
		Catalog:  catalogSvc,
		Repo:     repo,
		Selector: NewSelector(),
		Registry: DefaultRegistry(),
		Publish:  publish,
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply runs one chaos round against the given shipment and returns
// the selected definition together with its log entry. Both are nil
// when the catalog is empty or carries no positive weight, meaning
// there was nothing to apply.
func (e *Engine) Apply(ctx context.Context, shipment Shipment) (*catalog.Definition, *Log, error) {
	defs, err := e.Catalog.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list definitions: %w", err)
	}

	selected := e.Selector.Select(defs)
	if selected == nil {
		return nil, nil, nil
	}

	entry := Log{
		Timestamp:        e.Now().UTC(),
		ShipmentID:       shipment.ID,
		EventType:        selected.Name,
		EventDescription: selected.Description,
	}
	if mutation, ok := e.Registry[selected.Name]; ok {
		shipment.Status = mutation.Status
		shipment.UpdatedAt = entry.Timestamp
		entry.ImpactDetails = mutation.Impact
	} else {
		entry.ImpactDetails = fmt.Sprintf("No mutation logic defined for event type: %s.", selected.Name)
	}

	id, err := e.Repo.ApplyEvent(ctx, shipment, entry)
	if err != nil {
		return nil, nil, fmt.Errorf("apply event %s to shipment %s: %w", entry.EventType, shipment.ID, err)
	}
	entry.ID = id

	eventsApplied.WithLabelValues(entry.EventType).Inc()
	e.announce(entry)
	return selected, &entry, nil
}

func (e *Engine) announce(entry Log) {
	if e.Publish == nil {
		return
	}
	shipmentID := entry.ShipmentID.String()
	msg := contracts.EventApplied{
		LogID:            entry.ID,
		Timestamp:        entry.Timestamp,
		ShipmentID:       shipmentID,
		EventType:        entry.EventType,
		EventDescription: entry.EventDescription,
		ImpactDetails:    entry.ImpactDetails,
		ShardID:          sharding.GetShardID(shipmentID),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal chaos event %d: %v", entry.ID, err)
		return
	}
	if err := e.Publish(sharding.GetEventSubject(shipmentID), payload); err != nil {
		log.Printf("publish chaos event %d: %v", entry.ID, err)
	}
}

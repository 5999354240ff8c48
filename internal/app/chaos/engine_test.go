package chaos

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cosmocargo/project/internal/app/catalog"
	"github.com/cosmocargo/project/internal/contracts"
	"github.com/google/uuid"
)

type fakeCatalog struct {
	defs []catalog.Definition
	err  error
}

func (f fakeCatalog) List(_ context.Context) ([]catalog.Definition, error) {
	return f.defs, f.err
}

type fakeWriter struct {
	applied []struct {
		shipment Shipment
		entry    Log
	}
	nextID int64
	err    error
}

func (f *fakeWriter) ApplyEvent(_ context.Context, shipment Shipment, entry Log) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.applied = append(f.applied, struct {
		shipment Shipment
		entry    Log
	}{shipment, entry})
	f.nextID++
	return f.nextID, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
}

func testEngine(defs []catalog.Definition, writer *fakeWriter, publish PublishFunc) *Engine {
	eng := NewEngine(fakeCatalog{defs: defs}, writer, publish)
	eng.Selector = Selector{Float64: func() float64 { return 0 }}
	eng.Now = fixedNow
	return eng
}

func TestApply_MutatesShipmentAndLogs(t *testing.T) {
	writer := &fakeWriter{}
	var published struct {
		subject string
		payload []byte
	}
	eng := testEngine(
		[]catalog.Definition{{ID: 1, Name: "AsteroidStrike", Weight: 1, Description: "rogue asteroid"}},
		writer,
		func(subject string, payload []byte) error {
			published.subject = subject
			published.payload = payload
			return nil
		},
	)

	shipment := Shipment{ID: uuid.New(), Status: StatusApproved}
	def, entry, err := eng.Apply(context.Background(), shipment)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if entry == nil {
		t.Fatal("expected applied event")
	}
	if def == nil || def.ID != 1 || def.Name != "AsteroidStrike" || def.Weight != 1 {
		t.Fatalf("unexpected selected definition: %+v", def)
	}
	if entry.ID != 1 {
		t.Fatalf("expected log id 1, got %d", entry.ID)
	}
	if entry.EventType != "AsteroidStrike" || entry.EventDescription != "rogue asteroid" {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
	if entry.ImpactDetails != "Shipment delayed by asteroid impact. Status set to InTransit." {
		t.Fatalf("unexpected impact details: %q", entry.ImpactDetails)
	}
	if !entry.Timestamp.Equal(fixedNow()) {
		t.Fatalf("unexpected timestamp: %v", entry.Timestamp)
	}

	if len(writer.applied) != 1 {
		t.Fatalf("expected one write, got %d", len(writer.applied))
	}
	if writer.applied[0].shipment.Status != StatusInTransit {
		t.Fatalf("expected shipment moved to InTransit, got %s", writer.applied[0].shipment.Status)
	}
	if !writer.applied[0].shipment.UpdatedAt.Equal(fixedNow()) {
		t.Fatalf("expected updated_at bumped to %v, got %v", fixedNow(), writer.applied[0].shipment.UpdatedAt)
	}

	var msg contracts.EventApplied
	if err := json.Unmarshal(published.payload, &msg); err != nil {
		t.Fatalf("unmarshal published payload: %v", err)
	}
	if msg.LogID != 1 || msg.ShipmentID != shipment.ID.String() || msg.EventType != "AsteroidStrike" {
		t.Fatalf("unexpected published message: %+v", msg)
	}
	want := "chaos.event."
	if len(published.subject) <= len(want) || published.subject[:len(want)] != want {
		t.Fatalf("unexpected subject: %q", published.subject)
	}
}

func TestApply_UnknownEventLeavesShipmentUntouched(t *testing.T) {
	writer := &fakeWriter{}
	eng := testEngine(
		[]catalog.Definition{{ID: 9, Name: "GravityWave", Weight: 1}},
		writer,
		nil,
	)

	lastSeen := time.Date(2026, 8, 20, 8, 0, 0, 0, time.UTC)
	shipment := Shipment{ID: uuid.New(), Status: StatusApproved, UpdatedAt: lastSeen}
	def, entry, err := eng.Apply(context.Background(), shipment)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if entry == nil {
		t.Fatal("expected log entry for unknown event type")
	}
	if def == nil || def.Name != "GravityWave" {
		t.Fatalf("unexpected selected definition: %+v", def)
	}
	if entry.ImpactDetails != "No mutation logic defined for event type: GravityWave." {
		t.Fatalf("unexpected impact details: %q", entry.ImpactDetails)
	}
	if writer.applied[0].shipment.Status != StatusApproved {
		t.Fatalf("status must stay unchanged, got %s", writer.applied[0].shipment.Status)
	}
	if !writer.applied[0].shipment.UpdatedAt.Equal(lastSeen) {
		t.Fatalf("updated_at must stay unchanged, got %v", writer.applied[0].shipment.UpdatedAt)
	}
}

func TestApply_EmptyCatalogIsNoop(t *testing.T) {
	writer := &fakeWriter{}
	eng := testEngine(nil, writer, nil)

	def, entry, err := eng.Apply(context.Background(), Shipment{ID: uuid.New(), Status: StatusApproved})
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if def != nil || entry != nil {
		t.Fatalf("expected nil result, got %+v / %+v", def, entry)
	}
	if len(writer.applied) != 0 {
		t.Fatal("nothing should be written when no event is selected")
	}
}

func TestApply_WriteErrorIsReturned(t *testing.T) {
	wantErr := errors.New("connection reset")
	writer := &fakeWriter{err: wantErr}
	published := false
	eng := testEngine(
		[]catalog.Definition{{Name: "SolarFlare", Weight: 1}},
		writer,
		func(string, []byte) error {
			published = true
			return nil
		},
	)

	if _, _, err := eng.Apply(context.Background(), Shipment{ID: uuid.New()}); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
	if published {
		t.Fatal("nothing should be published when the write fails")
	}
}

func TestApply_PublishFailureIsNotFatal(t *testing.T) {
	writer := &fakeWriter{}
	eng := testEngine(
		[]catalog.Definition{{Name: "SolarFlare", Weight: 1}},
		writer,
		func(string, []byte) error { return errors.New("nats down") },
	)

	_, entry, err := eng.Apply(context.Background(), Shipment{ID: uuid.New(), Status: StatusAssigned})
	if err != nil {
		t.Fatalf("Apply must succeed despite publish failure, got %v", err)
	}
	if entry == nil {
		t.Fatal("expected applied event")
	}
}

package chaos

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cosmocargo/project/internal/app/catalog"
	"github.com/google/uuid"
)

type fakeSource struct {
	calls    atomic.Int64
	shipment *Shipment
	err      error
}

func (f *fakeSource) RandomEligibleShipment(_ context.Context) (*Shipment, error) {
	f.calls.Add(1)
	return f.shipment, f.err
}

func testScheduler(source *fakeSource, writer *fakeWriter, cfg *Config) *Scheduler {
	eng := testEngine(
		[]catalog.Definition{{Name: "AsteroidStrike", Weight: 1}},
		writer,
		nil,
	)
	sched := NewScheduler(eng, source, cfg)
	sched.Logf = func(string, ...any) {}
	return sched
}

func runFor(s *Scheduler, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	s.Run(ctx)
}

func TestRun_DisabledSchedulerDoesNothing(t *testing.T) {
	source := &fakeSource{shipment: &Shipment{ID: uuid.New(), Status: StatusApproved}}
	writer := &fakeWriter{}
	cfg := NewConfig(false, MinIntervalSeconds)

	runFor(testScheduler(source, writer, cfg), 50*time.Millisecond)

	if got := source.calls.Load(); got != 0 {
		t.Fatalf("disabled scheduler queried shipments %d times", got)
	}
	if len(writer.applied) != 0 {
		t.Fatal("disabled scheduler applied an event")
	}
}

func TestRun_AppliesEventsWhileEnabled(t *testing.T) {
	source := &fakeSource{shipment: &Shipment{ID: uuid.New(), Status: StatusApproved}}
	writer := &fakeWriter{}
	cfg := NewConfig(true, MinIntervalSeconds)

	runFor(testScheduler(source, writer, cfg), 50*time.Millisecond)

	if source.calls.Load() == 0 {
		t.Fatal("scheduler never queried for shipments")
	}
	if len(writer.applied) == 0 {
		t.Fatal("scheduler never applied an event")
	}
}

func TestRun_ContinuesAfterErrors(t *testing.T) {
	source := &fakeSource{err: errors.New("db offline")}
	writer := &fakeWriter{}
	cfg := NewConfig(true, MinIntervalSeconds)
	sched := testScheduler(source, writer, cfg)

	// Interval floor is one second; shrink it under test so multiple
	// iterations fit in the window.
	cfg.intervalSeconds.Store(0)

	runFor(sched, 50*time.Millisecond)

	if source.calls.Load() < 2 {
		t.Fatalf("expected scheduler to keep iterating after errors, got %d calls", source.calls.Load())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	source := &fakeSource{}
	cfg := NewConfig(true, MaxIntervalSeconds)
	sched := testScheduler(source, &fakeWriter{}, cfg)

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}
}

func TestRun_CancelledContextStartsNoTick(t *testing.T) {
	source := &fakeSource{shipment: &Shipment{ID: uuid.New(), Status: StatusApproved}}
	writer := &fakeWriter{}
	sched := testScheduler(source, writer, NewConfig(true, MinIntervalSeconds))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sched.Run(ctx)

	if got := source.calls.Load(); got != 0 {
		t.Fatalf("cancelled scheduler started %d ticks", got)
	}
	if len(writer.applied) != 0 {
		t.Fatal("cancelled scheduler applied an event")
	}
}

func TestConfig_ClampsInterval(t *testing.T) {
	cfg := NewConfig(true, 0)
	if got := cfg.IntervalSeconds(); got != MinIntervalSeconds {
		t.Fatalf("expected clamp to %d, got %d", MinIntervalSeconds, got)
	}
	if got := cfg.SetIntervalSeconds(1000000); got != MaxIntervalSeconds {
		t.Fatalf("expected clamp to %d, got %d", MaxIntervalSeconds, got)
	}
	if got := cfg.SetIntervalSeconds(45); got != 45 || cfg.Interval() != 45*time.Second {
		t.Fatalf("expected 45s interval, got %d / %s", got, cfg.Interval())
	}
}

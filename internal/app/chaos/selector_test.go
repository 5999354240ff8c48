package chaos

import (
	"math/rand"
	"testing"

	"github.com/cosmocargo/project/internal/app/catalog"
)

func TestSelect_EmptyCatalog(t *testing.T) {
	s := NewSelector()
	if got := s.Select(nil); got != nil {
		t.Fatalf("expected nil for empty catalog, got %+v", got)
	}
}

func TestSelect_NoPositiveWeight(t *testing.T) {
	s := NewSelector()
	defs := []catalog.Definition{
		{Name: "AsteroidStrike", Weight: 0},
		{Name: "PirateAttack", Weight: 0},
	}
	if got := s.Select(defs); got != nil {
		t.Fatalf("expected nil when total weight is zero, got %+v", got)
	}
}

func TestSelect_SingleDefinition(t *testing.T) {
	s := NewSelector()
	defs := []catalog.Definition{{Name: "SolarFlare", Weight: 0.1}}
	got := s.Select(defs)
	if got == nil || got.Name != "SolarFlare" {
		t.Fatalf("expected SolarFlare, got %+v", got)
	}
}

func TestSelect_RollWalksCumulativeWeights(t *testing.T) {
	defs := []catalog.Definition{
		{Name: "AsteroidStrike", Weight: 1},
		{Name: "PirateAttack", Weight: 3},
	}

	// Total weight 4: rolls below 1 land on the first entry, the rest
	// on the second.
	s := Selector{Float64: func() float64 { return 0.2 }} // roll 0.8
	if got := s.Select(defs); got == nil || got.Name != "AsteroidStrike" {
		t.Fatalf("roll 0.8: expected AsteroidStrike, got %+v", got)
	}

	s = Selector{Float64: func() float64 { return 0.6 }} // roll 2.4
	if got := s.Select(defs); got == nil || got.Name != "PirateAttack" {
		t.Fatalf("roll 2.4: expected PirateAttack, got %+v", got)
	}
}

func TestSelect_FallsBackToLastEntry(t *testing.T) {
	defs := []catalog.Definition{
		{Name: "AsteroidStrike", Weight: 1},
		{Name: "PirateAttack", Weight: 1},
	}
	// A roll at the very top of the range can escape the cumulative
	// walk through floating point error; the last entry must catch it.
	s := Selector{Float64: func() float64 { return 1.0 }}
	if got := s.Select(defs); got == nil || got.Name != "PirateAttack" {
		t.Fatalf("expected last entry as fallback, got %+v", got)
	}
}

func TestSelect_RespectsWeightRatio(t *testing.T) {
	defs := []catalog.Definition{
		{Name: "AsteroidStrike", Weight: 1},
		{Name: "PirateAttack", Weight: 3},
	}
	s := Selector{Float64: rand.New(rand.NewSource(42)).Float64}

	const draws = 10000
	counts := map[string]int{}
	for i := 0; i < draws; i++ {
		got := s.Select(defs)
		if got == nil {
			t.Fatal("unexpected nil selection")
		}
		counts[got.Name]++
	}

	ratio := float64(counts["PirateAttack"]) / float64(counts["AsteroidStrike"])
	if ratio < 2.5 || ratio > 3.5 {
		t.Fatalf("expected ratio near 3, got %.2f (%v)", ratio, counts)
	}
}

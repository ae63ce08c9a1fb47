package sim

import (
	"math"
	"testing"

	"github.com/pthm-cable/horde/config"
)

func TestSimulation_RunsDeterministicTicks(t *testing.T) {
	config.MustInit("")

	s, err := New(Options{Seed: 7})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if s.Population() == 0 {
		t.Fatal("expected an initial population")
	}

	for i := 0; i < 600; i++ {
		s.Step()
	}

	if s.Tick() != 600 {
		t.Errorf("Tick = %d, want 600", s.Tick())
	}
	if s.Population() <= 0 {
		t.Errorf("population collapsed to %d", s.Population())
	}
	if s.Population() > config.Cfg().Agents.MaxCount {
		t.Errorf("population %d over the cap %d", s.Population(), config.Cfg().Agents.MaxCount)
	}
	if s.NowMS() != int64(600)*config.Cfg().Derived.TickMS {
		t.Errorf("NowMS = %d, want %d", s.NowMS(), int64(600)*config.Cfg().Derived.TickMS)
	}
}

func TestSimulation_SameSeedSameOutcome(t *testing.T) {
	config.MustInit("")

	run := func() (int, int, float64, float64) {
		s, err := New(Options{Seed: 42})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer s.Close()
		for i := 0; i < 300; i++ {
			s.Step()
		}
		px, py := s.PreyPosition()
		return s.Population(), len(s.Walls().Living()), px, py
	}

	pop1, walls1, px1, py1 := run()
	pop2, walls2, px2, py2 := run()
	if pop1 != pop2 || walls1 != walls2 || px1 != px2 || py1 != py2 {
		t.Errorf("same seed diverged: pop %d/%d walls %d/%d prey (%f,%f)/(%f,%f)",
			pop1, pop2, walls1, walls2, px1, py1, px2, py2)
	}
}

func TestSimulation_SpawnerRespectsCap(t *testing.T) {
	config.MustInit("")

	s, err := New(Options{Seed: 3})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	// Run long enough for the timed spawner to fire many times.
	for i := 0; i < 2000; i++ {
		s.Step()
		if s.Population() > config.Cfg().Agents.MaxCount {
			t.Fatalf("population %d over the cap at tick %d", s.Population(), s.Tick())
		}
	}
}

func TestSimulation_RemoveAgentUpdatesCounts(t *testing.T) {
	config.MustInit("")

	s, err := New(Options{Seed: 9})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	before := s.Population()
	id := s.spawnNormal(600, 400)
	if s.Population() != before+1 {
		t.Fatalf("spawn did not grow the population: %d", s.Population())
	}
	s.RemoveAgent(id)
	if s.Population() != before {
		t.Errorf("remove did not shrink the population: %d", s.Population())
	}
	if _, ok := s.byID[id]; ok {
		t.Error("removed agent still indexed")
	}
}

func TestSimulation_NormalAgentChasesVisiblePrey(t *testing.T) {
	config.MustInit("")

	s, err := New(Options{Seed: 11})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	// Spawn right next to the prey, well inside sight range with nothing
	// between them.
	px, py := s.PreyPosition()
	id := s.spawnNormal(px-5, py)
	entry := s.byID[id]
	pos := s.posMap.Get(entry.entity)
	ag := s.agentMap.Get(entry.entity)
	wd := s.wanderMap.Get(entry.entity)
	ag.Speed = ag.BaseSpeed

	dx, dy := s.dispatch(entry.entity, pos, ag, wd)
	if math.Abs(dx-ag.Speed) > 1e-9 || math.Abs(dy) > 1e-9 {
		t.Errorf("expected (%f, 0) toward the prey, got (%f, %f)", ag.Speed, dx, dy)
	}
}

func TestWeightedIndex_ZeroWeightsFallBack(t *testing.T) {
	config.MustInit("")

	s, err := New(Options{Seed: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	idx := weightedIndex(s.rng, []float64{0, 0, 0})
	if idx != 0 {
		t.Errorf("weightedIndex with zero weights = %d, want 0", idx)
	}

	idx = weightedIndex(s.rng, []float64{0, 1, 0})
	if idx != 1 {
		t.Errorf("weightedIndex with a single live weight = %d, want 1", idx)
	}
}

package systems

import (
	"testing"

	"github.com/pthm-cable/horde/components"
)

func testScentParams() ScentParams {
	return ScentParams{
		ScanIntervalMS:   250,
		LostTimeoutMS:    4000,
		ScentRadius:      160,
		FarScentRadius:   420,
		NewerFootprintMS: 1500,
		RelockDelayMS:    2000,
		TopK:             3,
		FootprintStep:    24,
	}
}

func noBlocked() map[Cell]struct{} { return map[Cell]struct{}{} }

func TestUpdateScentTarget_PicksNewestReachablePrint(t *testing.T) {
	params := testScentParams()
	layout := NewLayout(30, 22, 40)
	var s components.Scent

	prints := []Footprint{
		{X: 20, Y: 0, TimeMS: 600},
		{X: 30, Y: 0, TimeMS: 1400},
	}

	UpdateScentTarget(&s, 0, 0, prints, noBlocked(), layout, 1500, params)

	if !s.HasTarget {
		t.Fatal("expected a target")
	}
	if s.TargetX != 30 || s.TargetAtMS != 1400 {
		t.Errorf("expected the newest print (30, t=1400), got (%f, t=%d)", s.TargetX, s.TargetAtMS)
	}
}

func TestUpdateScentTarget_EmptyTrailClearsTarget(t *testing.T) {
	params := testScentParams()
	layout := NewLayout(30, 22, 40)
	s := components.Scent{HasTarget: true, TargetX: 30, TargetAtMS: 500}

	UpdateScentTarget(&s, 0, 0, nil, noBlocked(), layout, 1500, params)

	if s.HasTarget {
		t.Error("a scan over an empty trail should drop the stale target")
	}
}

func TestUpdateScentTarget_RespectsScanInterval(t *testing.T) {
	params := testScentParams()
	layout := NewLayout(30, 22, 40)
	s := components.Scent{LastScanMS: 1400}

	prints := []Footprint{{X: 30, Y: 0, TimeMS: 1400}}
	UpdateScentTarget(&s, 0, 0, prints, noBlocked(), layout, 1500, params)

	if s.HasTarget {
		t.Error("scan before the interval elapsed should be a no-op")
	}
}

func TestUpdateScentTarget_IgnoresPrintUnderfoot(t *testing.T) {
	params := testScentParams()
	layout := NewLayout(30, 22, 40)
	var s components.Scent

	// Closer than half a footprint step; standing on it already.
	prints := []Footprint{{X: 10, Y: 0, TimeMS: 1400}}
	UpdateScentTarget(&s, 0, 0, prints, noBlocked(), layout, 1500, params)

	if s.HasTarget {
		t.Error("a print underfoot should not become a target")
	}
}

func TestUpdateScentTarget_BlockedSightNeverSelected(t *testing.T) {
	params := testScentParams()
	layout := NewLayout(30, 22, 40)
	var s components.Scent

	blocked := map[Cell]struct{}{
		{Col: 1, Row: 0}: {},
		{Col: 2, Row: 0}: {},
		{Col: 3, Row: 0}: {},
		{Col: 1, Row: 1}: {},
		{Col: 2, Row: 1}: {},
		{Col: 3, Row: 1}: {},
	}
	prints := []Footprint{{X: 180, Y: 20, TimeMS: 1000}}

	UpdateScentTarget(&s, 20, 20, prints, blocked, layout, 1500, params)

	if s.HasTarget {
		t.Error("a print behind a wall should never be selected")
	}
}

func TestUpdateScentTarget_ProgressTimeoutMarksLost(t *testing.T) {
	params := testScentParams()
	layout := NewLayout(30, 22, 40)
	s := components.Scent{
		HasTarget:   true,
		TargetX:     50,
		TargetAtMS:  1000,
		HasProgress: true,
		ProgressMS:  1000,
	}

	// Nothing newer than the current target on the trail.
	prints := []Footprint{{X: 50, Y: 0, TimeMS: 800}}
	UpdateScentTarget(&s, 0, 0, prints, noBlocked(), layout, 5000, params)

	if s.HasTarget {
		t.Error("expected the trail marked lost after the progress timeout")
	}
	if !s.HasIgnore || s.IgnoreAtMS != 1000 {
		t.Errorf("expected prints at or before t=1000 ignored, got HasIgnore=%v at %d", s.HasIgnore, s.IgnoreAtMS)
	}

	// A later scan must not re-adopt prints inside the ignore window.
	UpdateScentTarget(&s, 0, 0, prints, noBlocked(), layout, 5300, params)
	if s.HasTarget {
		t.Error("an ignored print was re-adopted")
	}
}

func TestMarkForceWander_OpensRelockWindow(t *testing.T) {
	params := testScentParams()
	layout := NewLayout(30, 22, 40)
	s := components.Scent{HasTarget: true, TargetX: 50, TargetAtMS: 1000}

	MarkForceWander(&s, 1200, params)

	if s.HasTarget {
		t.Error("expected the target dropped")
	}
	if !s.HasRelock || s.RelockAtMS != 3000 {
		t.Fatalf("expected relock until t=3000, got %v at %d", s.HasRelock, s.RelockAtMS)
	}

	// Prints older than the relock boundary stay locked out.
	old := []Footprint{{X: 50, Y: 0, TimeMS: 1000}}
	UpdateScentTarget(&s, 0, 0, old, noBlocked(), layout, 1500, params)
	if s.HasTarget {
		t.Error("a print inside the relock window was adopted")
	}

	// A print past the boundary clears the window.
	fresh := []Footprint{{X: 50, Y: 0, TimeMS: 3000}}
	UpdateScentTarget(&s, 0, 0, fresh, noBlocked(), layout, 3100, params)
	if !s.HasTarget {
		t.Fatal("expected the fresh print adopted")
	}
	if s.HasRelock {
		t.Error("expected the relock window cleared")
	}
}

func TestUpdateScentTarget_FarPrintNeedsFarScan(t *testing.T) {
	params := testScentParams()
	layout := NewLayout(30, 22, 40)

	// Close-scan mode: a target is held and nothing is clearly newer, so
	// prints outside the close radius stay out of reach.
	s := components.Scent{HasTarget: true, TargetX: 5, TargetY: 5, TargetAtMS: 1000}
	prints := []Footprint{{X: 300, Y: 0, TimeMS: 1400}}
	UpdateScentTarget(&s, 0, 0, prints, noBlocked(), layout, 1500, params)
	if s.TargetX == 300 {
		t.Error("a print beyond the close radius was adopted without a far scan")
	}

	// Without a held target the far scan reaches it.
	var fresh components.Scent
	UpdateScentTarget(&fresh, 0, 0, prints, noBlocked(), layout, 1500, params)
	if !fresh.HasTarget || fresh.TargetX != 300 {
		t.Error("expected the far scan to reach the distant print")
	}
}

func TestTrail_RecordsByStepDistance(t *testing.T) {
	trail := NewTrail(24, 4)

	trail.Record(0, 0, 100)
	trail.Record(10, 0, 116) // closer than a step, skipped
	trail.Record(25, 0, 132)
	trail.Record(50, 0, 148)

	prints := trail.Prints()
	if len(prints) != 3 {
		t.Fatalf("expected 3 prints, got %d", len(prints))
	}
	if prints[0].X != 0 || prints[1].X != 25 || prints[2].X != 50 {
		t.Errorf("unexpected print positions: %+v", prints)
	}

	// The ring keeps only the newest max entries.
	trail.Record(75, 0, 164)
	trail.Record(100, 0, 180)
	prints = trail.Prints()
	if len(prints) != 4 {
		t.Fatalf("expected the trail capped at 4, got %d", len(prints))
	}
	if prints[0].X != 25 {
		t.Errorf("expected the oldest print evicted, oldest is now %f", prints[0].X)
	}
}

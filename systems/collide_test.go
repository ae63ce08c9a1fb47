package systems

import "testing"

func testWallLayout() *Layout {
	return NewLayout(10, 10, 40)
}

func TestResolveWallCollision_BothAxesBlocked(t *testing.T) {
	layout := testWallLayout()
	set := NewWallSet(layout)
	right := NewWall(1, Rect{X: 40, Y: 40, W: 40, H: 40}, [4]bool{}, 12)
	below := NewWall(2, Rect{X: 0, Y: 80, W: 40, H: 40}, [4]bool{}, 12)
	set.Add(right)
	set.Add(below)
	set.RebuildIfDirty()

	walls := []*Wall{right, below}
	x, y, hits := ResolveWallCollision(20, 60, 10, 40, 90, walls, set, 1)

	if x != 20 || y != 60 {
		t.Errorf("expected no movement with both axes blocked, got (%f, %f)", x, y)
	}
	if hits != 2 {
		t.Errorf("expected one damage hit per blocked axis, got %d", hits)
	}
	if right.Health != 11 {
		t.Errorf("x-axis wall health = %d, want 11", right.Health)
	}
	if below.Health != 11 {
		t.Errorf("y-axis wall health = %d, want 11", below.Health)
	}
}

func TestResolveWallCollision_SingleAxisSlides(t *testing.T) {
	layout := testWallLayout()
	set := NewWallSet(layout)
	right := NewWall(1, Rect{X: 40, Y: 40, W: 40, H: 40}, [4]bool{}, 12)
	set.Add(right)
	set.RebuildIfDirty()

	x, y, hits := ResolveWallCollision(20, 60, 10, 40, 65, []*Wall{right}, set, 1)

	if x != 20 {
		t.Errorf("expected x cancelled, got %f", x)
	}
	if y != 65 {
		t.Errorf("expected y to pass, got %f", y)
	}
	if hits != 1 {
		t.Errorf("expected a single hit, got %d", hits)
	}
}

func TestResolveWallCollision_KillingBlowPassesThrough(t *testing.T) {
	layout := testWallLayout()
	set := NewWallSet(layout)
	right := NewWall(1, Rect{X: 40, Y: 40, W: 40, H: 40}, [4]bool{}, 1)
	set.Add(right)
	set.RebuildIfDirty()

	x, _, hits := ResolveWallCollision(20, 60, 10, 40, 60, []*Wall{right}, set, 1)

	if x != 40 {
		t.Errorf("expected movement to pass after the killing blow, got x=%f", x)
	}
	if hits != 1 {
		t.Errorf("expected one hit, got %d", hits)
	}
	if right.Alive {
		t.Error("expected wall destroyed")
	}
	if set.Destroyed != 1 {
		t.Errorf("expected destroyed counter 1, got %d", set.Destroyed)
	}
}

func TestResolveWallCollision_NoDamageLeavesWallStanding(t *testing.T) {
	layout := testWallLayout()
	set := NewWallSet(layout)
	right := NewWall(1, Rect{X: 40, Y: 40, W: 40, H: 40}, [4]bool{}, 12)
	set.Add(right)
	set.RebuildIfDirty()

	x, _, _ := ResolveWallCollision(20, 60, 10, 40, 60, []*Wall{right}, set, 0)

	if x != 20 {
		t.Errorf("expected x blocked, got %f", x)
	}
	if right.Health != 12 {
		t.Errorf("expected wall untouched at 12 health, got %d", right.Health)
	}
}

func TestWallSet_DamageAndRebuild(t *testing.T) {
	layout := testWallLayout()
	set := NewWallSet(layout)
	w := NewWall(1, Rect{X: 40, Y: 40, W: 40, H: 40}, [4]bool{}, 2)
	set.Add(w)
	set.RebuildIfDirty()

	if len(set.Living()) != 1 {
		t.Fatalf("expected 1 living wall, got %d", len(set.Living()))
	}
	if destroyed := set.Damage(w, 1); destroyed {
		t.Error("first hit should not destroy the wall")
	}
	if destroyed := set.Damage(w, 1); !destroyed {
		t.Error("second hit should destroy the wall")
	}
	if !set.RebuildIfDirty() {
		t.Error("expected a rebuild after destruction")
	}
	if len(set.Living()) != 0 {
		t.Errorf("expected no living walls, got %d", len(set.Living()))
	}
	if _, ok := set.Cells()[Cell{Col: 1, Row: 1}]; ok {
		t.Error("destroyed wall cell still indexed")
	}
}

func TestNewWall_BevelCutsCorner(t *testing.T) {
	plain := NewWall(1, Rect{X: 0, Y: 0, W: 40, H: 40}, [4]bool{}, 12)
	beveled := NewWall(2, Rect{X: 0, Y: 0, W: 40, H: 40}, [4]bool{true, false, false, false}, 12)

	if beveled.Polygon == nil {
		t.Fatal("expected a polygon for a beveled wall")
	}
	// A small circle tucked into the cut corner region.
	if !plain.CollidesCircle(2, 2, 1) {
		t.Error("plain wall should cover its corner")
	}
	if beveled.CollidesCircle(2, 2, 1) {
		t.Error("beveled wall should not cover the cut corner")
	}
	// The body of the cell is still solid.
	if !beveled.CollidesCircle(20, 20, 1) {
		t.Error("beveled wall should cover its center")
	}
}

func TestLineOfSightClearCells(t *testing.T) {
	blocked := map[Cell]struct{}{
		{Col: 2, Row: 0}: {},
	}
	if !LineOfSightClearCells(20, 20, 60, 20, blocked, 40, 10, 10) {
		t.Error("expected clear sight between adjacent open cells")
	}
	if LineOfSightClearCells(20, 20, 180, 20, blocked, 40, 10, 10) {
		t.Error("expected sight blocked through an occupied cell")
	}
}

package systems

import (
	"math"
	"testing"
)

func testTrainParams() TrainParams {
	return TrainParams{
		JoinRadius:         40,
		MergeApproach:      40,
		MergeSnap:          30,
		MarkerSpacing:      24,
		MinStepDistance:    2.0,
		DissolveIntervalMS: 4000,
	}
}

// fakeHost implements TrainHost for manager tests.
type fakeHost struct {
	atCap     bool
	nextID    uint32
	spawned   []uint32
	spawnedAt []Point
	removed   []uint32
}

func (h *fakeHost) AtPopulationCap() bool { return h.atCap }

func (h *fakeHost) SpawnLineHead(x, y float64) (uint32, bool) {
	if h.atCap {
		return 0, false
	}
	h.nextID++
	h.spawned = append(h.spawned, h.nextID)
	h.spawnedAt = append(h.spawnedAt, Point{x, y})
	return h.nextID, true
}

func (h *fakeHost) RemoveAgent(id uint32) {
	h.removed = append(h.removed, id)
}

func TestPosRing_PushEvictAndResize(t *testing.T) {
	r := NewPosRing(3)

	r.PushNewest(Point{1, 0})
	r.PushNewest(Point{2, 0})
	r.PushNewest(Point{3, 0})
	if r.Len() != 3 {
		t.Fatalf("expected length 3, got %d", r.Len())
	}

	// Full ring evicts the oldest.
	r.PushNewest(Point{4, 0})
	if r.Len() != 3 {
		t.Fatalf("expected length capped at 3, got %d", r.Len())
	}
	if r.At(0).X != 2 || r.Newest().X != 4 {
		t.Errorf("expected [2 3 4], got oldest=%f newest=%f", r.At(0).X, r.Newest().X)
	}

	// PushOldest is dropped when full.
	r.PushOldest(Point{0, 0})
	if r.At(0).X != 2 {
		t.Errorf("PushOldest on a full ring should drop, oldest=%f", r.At(0).X)
	}

	// Growing keeps order; prepending works again.
	r.Resize(5)
	r.PushOldest(Point{1, 0})
	if r.Len() != 4 || r.At(0).X != 1 || r.Newest().X != 4 {
		t.Errorf("expected [1 2 3 4], got len=%d oldest=%f newest=%f", r.Len(), r.At(0).X, r.Newest().X)
	}

	// Shrinking keeps the newest points.
	r.Resize(2)
	if r.Len() != 2 || r.At(0).X != 3 || r.Newest().X != 4 {
		t.Errorf("expected [3 4], got len=%d oldest=%f newest=%f", r.Len(), r.At(0).X, r.Newest().X)
	}
}

func TestPlaceMarkers_InterpolatesAlongTrail(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	id := m.CreateTrain(1, 80, 100, 0, false, 0)

	heads := map[uint32]TrainAgent{1: {ID: 1, X: 100, Y: 100}}
	m.PostUpdate(heads)

	m.AppendMarker(id, 80, 100)
	heads[1] = TrainAgent{ID: 1, X: 110, Y: 100}
	m.PostUpdate(heads)

	tr := m.Trains()[id]
	if len(tr.Markers) != 1 {
		t.Fatalf("expected 1 marker, got %d", len(tr.Markers))
	}
	mk := tr.Markers[0]
	if math.Abs(mk.X-86) > 1e-9 || math.Abs(mk.Y-100) > 1e-9 {
		t.Errorf("expected the marker one spacing behind the head at (86, 100), got (%f, %f)", mk.X, mk.Y)
	}
	if math.Abs(mk.Angle) > 1e-9 {
		t.Errorf("expected the marker to face its head along +x, got angle %f", mk.Angle)
	}
}

func TestPlaceMarkers_ShortTrailStacksOnOldest(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	id := m.CreateTrain(1, 100, 100, 0, false, 0)
	m.AppendMarker(id, 100, 100)
	m.AppendMarker(id, 100, 100)

	heads := map[uint32]TrainAgent{1: {ID: 1, X: 110, Y: 100}}
	m.PostUpdate(heads)

	tr := m.Trains()[id]
	for i, mk := range tr.Markers {
		if mk.X != 100 || mk.Y != 100 {
			t.Errorf("marker %d should stack on the oldest trail point, got (%f, %f)", i, mk.X, mk.Y)
		}
	}
}

func TestPostUpdate_RecordsOnlyRealMovement(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	id := m.CreateTrain(1, 100, 100, 0, false, 0)
	tr := m.Trains()[id]

	// Sub-step jitter is not recorded.
	m.PostUpdate(map[uint32]TrainAgent{1: {ID: 1, X: 101, Y: 100}})
	if tr.History.Len() != 1 {
		t.Errorf("expected jitter below the step threshold ignored, history len %d", tr.History.Len())
	}

	m.PostUpdate(map[uint32]TrainAgent{1: {ID: 1, X: 102, Y: 101}})
	if tr.History.Len() != 2 {
		t.Errorf("expected a full step recorded, history len %d", tr.History.Len())
	}
}

func TestPreUpdate_AssignsNearestUnreservedTarget(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	id := m.CreateTrain(1, 100, 100, 0, false, 0)
	host := &fakeHost{nextID: 100}

	heads := map[uint32]TrainAgent{1: {ID: 1, X: 100, Y: 100}}
	targets := []TrainAgent{
		{ID: 50, X: 130, Y: 100},
		{ID: 51, X: 115, Y: 100},
	}

	m.PreUpdate(heads, targets, host, 1000)

	tr := m.Trains()[id]
	if !tr.HasTarget || tr.TargetID != 51 {
		t.Errorf("expected the nearest target 51, got HasTarget=%v id=%d", tr.HasTarget, tr.TargetID)
	}
	if !tr.HasTargetPos || tr.TargetPosX != 115 {
		t.Errorf("expected chase position (115, 100), got (%f, %f)", tr.TargetPosX, tr.TargetPosY)
	}
}

func TestPreUpdate_LoneHeadMergesAtTail(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	dstID := m.CreateTrain(1, 100, 100, 50, true, 0)
	srcID := m.CreateTrain(2, 100, 105, 0, false, 0)
	host := &fakeHost{nextID: 100}

	heads := map[uint32]TrainAgent{
		1: {ID: 1, X: 100, Y: 100},
		2: {ID: 2, X: 100, Y: 105},
	}
	targets := []TrainAgent{{ID: 50, X: 110, Y: 100}}

	m.PreUpdate(heads, targets, host, 1000)

	if _, alive := m.Trains()[srcID]; alive {
		t.Fatal("expected the lone train absorbed")
	}
	dst := m.Trains()[dstID]
	if len(dst.Markers) != 1 {
		t.Fatalf("expected the absorbed head as a tail marker, got %d markers", len(dst.Markers))
	}
	if dst.Markers[0].X != 100 || dst.Markers[0].Y != 105 {
		t.Errorf("tail marker at (%f, %f), want (100, 105)", dst.Markers[0].X, dst.Markers[0].Y)
	}
	if len(host.removed) != 1 || host.removed[0] != 2 {
		t.Errorf("expected head agent 2 removed, got %v", host.removed)
	}
	if m.Merges != 1 {
		t.Errorf("expected merge counter 1, got %d", m.Merges)
	}
	if len(m.MergeLog) != 1 || m.MergeLog[0].HeadID != 2 || m.MergeLog[0].TrainID != dstID {
		t.Errorf("expected the merge logged, got %+v", m.MergeLog)
	}
}

func TestPreUpdate_NoMergeAwayFromTrail(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	dstID := m.CreateTrain(1, 100, 100, 50, true, 0)

	// The destination head has walked far from its recorded trail; the
	// joiner is near the target but not near any trail point.
	dst := m.Trains()[dstID]
	dst.History.Clear()
	dst.History.PushNewest(Point{300, 300})
	m.AppendMarker(dstID, 300, 300)

	srcID := m.CreateTrain(2, 100, 105, 0, false, 0)
	host := &fakeHost{nextID: 100}

	heads := map[uint32]TrainAgent{
		1: {ID: 1, X: 100, Y: 100},
		2: {ID: 2, X: 100, Y: 105},
	}
	targets := []TrainAgent{{ID: 50, X: 110, Y: 100}}

	m.PreUpdate(heads, targets, host, 1000)

	if _, alive := m.Trains()[srcID]; !alive {
		t.Fatal("expected no merge when the joiner is off the trail")
	}
	if len(host.removed) != 0 {
		t.Errorf("no agent should be removed, got %v", host.removed)
	}
}

func TestPreUpdate_DissolvePromotesFrontMarker(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	id := m.CreateTrain(1, 100, 100, 0, false, 0)
	m.AppendMarker(id, 120, 100)
	m.AppendMarker(id, 140, 100)
	host := &fakeHost{nextID: 100}

	heads := map[uint32]TrainAgent{1: {ID: 1, X: 100, Y: 100}}

	// No targets anywhere: the train starts dissolving and immediately
	// promotes its front marker.
	m.PreUpdate(heads, nil, host, 1000)

	tr := m.Trains()[id]
	if !tr.Dissolving {
		t.Fatal("expected the train dissolving with no targets")
	}
	if len(host.spawned) != 1 {
		t.Fatalf("expected one promotion, got %d", len(host.spawned))
	}
	if host.spawnedAt[0].X != 120 {
		t.Errorf("expected the front marker promoted at x=120, got %f", host.spawnedAt[0].X)
	}
	if len(tr.Markers) != 1 || tr.Markers[0].X != 140 {
		t.Errorf("expected the back marker left, got %+v", tr.Markers)
	}
	if tr.NextDissolveMS != 1000+testTrainParams().DissolveIntervalMS {
		t.Errorf("expected the next dissolve scheduled, got %d", tr.NextDissolveMS)
	}
	if m.Promotions != 1 {
		t.Errorf("expected promotion counter 1, got %d", m.Promotions)
	}
	if len(m.PromoteLog) != 1 || m.PromoteLog[0].HeadID != host.spawned[0] || m.PromoteLog[0].TrainID != id {
		t.Errorf("expected the promotion logged, got %+v", m.PromoteLog)
	}

	// The promoted head got its own train.
	if m.TrainByHead(host.spawned[0]) == nil {
		t.Error("expected a new train for the promoted head")
	}
}

func TestPreUpdate_PromotionWaitsAtPopulationCap(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	id := m.CreateTrain(1, 100, 100, 0, false, 0)
	m.AppendMarker(id, 120, 100)
	host := &fakeHost{atCap: true, nextID: 100}

	heads := map[uint32]TrainAgent{1: {ID: 1, X: 100, Y: 100}}
	m.PreUpdate(heads, nil, host, 1000)

	tr := m.Trains()[id]
	if len(tr.Markers) != 1 {
		t.Errorf("expected the marker held at the cap, got %d markers", len(tr.Markers))
	}
	if len(host.spawned) != 0 {
		t.Errorf("no head should spawn at the cap, got %v", host.spawned)
	}
	if tr.NextDissolveMS != 1000+testTrainParams().DissolveIntervalMS {
		t.Errorf("expected the retry rescheduled, got %d", tr.NextDissolveMS)
	}
}

func TestPreUpdate_HeadlessTrainDissolves(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	id := m.CreateTrain(1, 100, 100, 0, false, 0)
	m.AppendMarker(id, 120, 100)
	host := &fakeHost{nextID: 100}

	// The head died; no entry in the heads map. Dissolving starts at once
	// and the single marker is promoted, emptying the train.
	m.PreUpdate(map[uint32]TrainAgent{}, nil, host, 1000)

	if _, alive := m.Trains()[id]; alive {
		t.Fatal("expected the headless train fully dissolved")
	}
	if len(host.spawned) != 1 {
		t.Errorf("expected the orphaned marker promoted, got %d spawns", len(host.spawned))
	}
}

func TestPopMarkersInCircle(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	id := m.CreateTrain(1, 0, 0, 0, false, 0)
	m.AppendMarker(id, 10, 0)
	m.AppendMarker(id, 100, 0)

	if !m.AnyMarkerInCircle(12, 0, 5) {
		t.Error("expected a marker inside the circle")
	}
	removed := m.PopMarkersInCircle(12, 0, 5)
	if removed != 1 {
		t.Errorf("expected 1 marker removed, got %d", removed)
	}
	if m.TotalMarkerCount() != 1 {
		t.Errorf("expected 1 marker left, got %d", m.TotalMarkerCount())
	}
}

func TestResolveSpawnTarget(t *testing.T) {
	m := NewTrainManager(testTrainParams())
	targets := []TrainAgent{{ID: 50, X: 110, Y: 100}}

	// Unowned target: a new train should form around it.
	_, hasTrain, targetID, hasTarget := m.ResolveSpawnTarget(targets, 100, 100)
	if hasTrain {
		t.Error("no train should own the target yet")
	}
	if !hasTarget || targetID != 50 {
		t.Errorf("expected target 50, got hasTarget=%v id=%d", hasTarget, targetID)
	}

	// Once a train owns it, spawns nearby join as markers.
	id := m.CreateTrain(1, 100, 100, 50, true, 0)
	trainID, hasTrain, _, _ := m.ResolveSpawnTarget(targets, 100, 100)
	if !hasTrain || trainID != id {
		t.Errorf("expected the owning train %d, got hasTrain=%v id=%d", id, hasTrain, trainID)
	}

	// Out of the join radius nothing resolves.
	_, hasTrain, _, hasTarget = m.ResolveSpawnTarget(targets, 400, 400)
	if hasTrain || hasTarget {
		t.Error("expected no resolution far from every target")
	}
}

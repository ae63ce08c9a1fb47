package systems

import "math"

// PosRing is a fixed-capacity ring of positions ordered oldest to newest.
// The trail history of a train lives in one of these; capacity grows with
// the marker count.
type PosRing struct {
	buf   []Point
	start int
	n     int
}

// NewPosRing creates a ring holding at most capacity points.
func NewPosRing(capacity int) *PosRing {
	if capacity < 1 {
		capacity = 1
	}
	return &PosRing{buf: make([]Point, capacity)}
}

func (r *PosRing) Len() int { return r.n }
func (r *PosRing) Cap() int { return len(r.buf) }

// At returns the i-th point counting from the oldest.
func (r *PosRing) At(i int) Point {
	return r.buf[(r.start+i)%len(r.buf)]
}

// Newest returns the most recent point. Only valid when Len() > 0.
func (r *PosRing) Newest() Point {
	return r.At(r.n - 1)
}

// PushNewest appends a point, evicting the oldest when full.
func (r *PosRing) PushNewest(p Point) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = p
		r.n++
		return
	}
	r.buf[r.start] = p
	r.start = (r.start + 1) % len(r.buf)
}

// PushOldest prepends a point at the old end. Dropped when full.
func (r *PosRing) PushOldest(p Point) {
	if r.n >= len(r.buf) {
		return
	}
	r.start = (r.start - 1 + len(r.buf)) % len(r.buf)
	r.buf[r.start] = p
	r.n++
}

// Clear empties the ring without shrinking it.
func (r *PosRing) Clear() {
	r.start = 0
	r.n = 0
}

// Resize grows the ring, keeping its contents in order. Shrinking keeps
// the newest points.
func (r *PosRing) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == len(r.buf) {
		return
	}
	keep := r.n
	if keep > capacity {
		keep = capacity
	}
	buf := make([]Point, capacity)
	for i := 0; i < keep; i++ {
		buf[i] = r.At(r.n - keep + i)
	}
	r.buf = buf
	r.start = 0
	r.n = keep
}

// TrainAgent is the train manager's view of a living agent.
type TrainAgent struct {
	ID   uint32
	X, Y float64
}

// TrainHost is what the manager needs from the simulation to dissolve and
// merge trains.
type TrainHost interface {
	// AtPopulationCap reports whether another agent may not spawn yet.
	AtPopulationCap() bool
	// SpawnLineHead creates a new convoy head at the position and
	// returns its agent ID.
	SpawnLineHead(x, y float64) (uint32, bool)
	// RemoveAgent retires a head absorbed by a merge.
	RemoveAgent(id uint32)
}

// Marker is one body segment of a train, placed along the head's trail.
type Marker struct {
	X, Y  float64
	Angle float64
}

// Train is a convoy: one head agent plus trailing markers following the
// head's recorded path.
type Train struct {
	ID     uint32
	HeadID uint32

	HasTarget bool
	TargetID  uint32

	Markers []Marker
	History *PosRing

	Dissolving     bool
	NextDissolveMS int64

	// Chase output for the head's movement strategy, refreshed each
	// pre-pass.
	HasTargetPos     bool
	TargetPosX       float64
	TargetPosY       float64
	LastTargetSeenMS int64
}

// Length counts the head plus its markers.
func (t *Train) Length() int { return 1 + len(t.Markers) }

// TrainParams holds the convoy tunables.
type TrainParams struct {
	JoinRadius         float64 // target search radius
	MergeApproach      float64 // max head distance to the destination tail
	MergeSnap          float64 // max head distance to a recorded trail point
	MarkerSpacing      float64 // arc length between consecutive segments
	MinStepDistance    float64 // Manhattan movement needed to record a trail point
	DissolveIntervalMS int64
}

// TrainManager owns every lineformer train and runs the pre- and
// post-pass around the per-agent update.
type TrainManager struct {
	params      TrainParams
	nextTrainID uint32

	trains        map[uint32]*Train
	targetToTrain map[uint32]uint32

	Merges     int // merge events this run
	Promotions int // markers promoted to heads this run

	// Per-pre-pass records for the caller's telemetry, reset each call.
	MergeLog   []TrainEvent
	PromoteLog []TrainEvent
}

// TrainEvent records one merge or promotion: the head agent involved, the
// train it concerns and where it happened.
type TrainEvent struct {
	HeadID  uint32
	TrainID uint32
	X, Y    float64
}

// NewTrainManager creates an empty manager.
func NewTrainManager(params TrainParams) *TrainManager {
	return &TrainManager{
		params:        params,
		nextTrainID:   1,
		trains:        make(map[uint32]*Train),
		targetToTrain: make(map[uint32]uint32),
	}
}

// Trains returns the live trains keyed by ID. The map is shared; callers
// must not mutate it.
func (m *TrainManager) Trains() map[uint32]*Train { return m.trains }

// TrainByHead returns the train led by the given head agent.
func (m *TrainManager) TrainByHead(headID uint32) *Train {
	for _, t := range m.trains {
		if t.HeadID == headID {
			return t
		}
	}
	return nil
}

// TotalMarkerCount counts markers across all trains.
func (m *TrainManager) TotalMarkerCount() int {
	n := 0
	for _, t := range m.trains {
		n += len(t.Markers)
	}
	return n
}

func (m *TrainManager) historyCapacity(markerCount int) int {
	perMarker := int(math.Ceil(m.params.MarkerSpacing / math.Max(1, m.params.MinStepDistance)))
	required := (markerCount + 2) * perMarker
	if required < 64 {
		return 64
	}
	return required + 8
}

func (m *TrainManager) ensureHistoryCapacity(t *Train) {
	required := m.historyCapacity(len(t.Markers))
	if t.History.Cap() < required {
		t.History.Resize(required)
	}
}

func (m *TrainManager) rebuildTargetIndex() {
	clear(m.targetToTrain)
	for _, t := range m.trains {
		if t.Dissolving || !t.HasTarget {
			continue
		}
		m.targetToTrain[t.TargetID] = t.ID
	}
}

func findNearestTarget(x, y float64, targets []TrainAgent, radius float64, excluded map[uint32]struct{}) (TrainAgent, bool) {
	var best TrainAgent
	found := false
	bestDistSq := radius * radius
	for _, tg := range targets {
		if excluded != nil {
			if _, skip := excluded[tg.ID]; skip {
				continue
			}
		}
		distSq := distanceSq(tg.X, tg.Y, x, y)
		if distSq <= bestDistSq {
			best = tg
			bestDistSq = distSq
			found = true
		}
	}
	return best, found
}

// ResolveSpawnTarget decides what a freshly spawned lineformer should do:
// join the train already hunting the nearest target, or start a new train
// on that target. Both results are absent when no target is in range.
func (m *TrainManager) ResolveSpawnTarget(targets []TrainAgent, x, y float64) (trainID uint32, hasTrain bool, targetID uint32, hasTarget bool) {
	m.rebuildTargetIndex()
	tg, found := findNearestTarget(x, y, targets, m.params.JoinRadius, nil)
	if !found {
		return 0, false, 0, false
	}
	if owner, ok := m.targetToTrain[tg.ID]; ok {
		return owner, true, 0, false
	}
	return 0, false, tg.ID, true
}

// CreateTrain starts a new train for a head agent. The head's position
// seeds the trail history.
func (m *TrainManager) CreateTrain(headID uint32, x, y float64, targetID uint32, hasTarget bool, nowMS int64) uint32 {
	id := m.nextTrainID
	m.nextTrainID++
	t := &Train{
		ID:        id,
		HeadID:    headID,
		HasTarget: hasTarget,
		TargetID:  targetID,
		History:   NewPosRing(m.historyCapacity(0)),
	}
	t.History.PushNewest(Point{x, y})
	if hasTarget {
		t.LastTargetSeenMS = nowMS
	}
	m.trains[id] = t
	return id
}

// AppendMarker grows a train by one tail segment.
func (m *TrainManager) AppendMarker(trainID uint32, x, y float64) bool {
	t, ok := m.trains[trainID]
	if !ok {
		return false
	}
	t.Markers = append(t.Markers, Marker{X: x, Y: y})
	m.ensureHistoryCapacity(t)
	return true
}

func (m *TrainManager) startDissolving(t *Train, nowMS int64) {
	t.Dissolving = true
	t.NextDissolveMS = nowMS
	t.HasTarget = false
	t.HasTargetPos = false
}

// tailPosition is where a joining head should aim: the last marker, or
// the head itself for a bare train.
func (t *Train) tailPosition(heads map[uint32]TrainAgent) (float64, float64, bool) {
	if len(t.Markers) > 0 {
		last := t.Markers[len(t.Markers)-1]
		return last.X, last.Y, true
	}
	head, ok := heads[t.HeadID]
	if !ok {
		return 0, 0, false
	}
	return head.X, head.Y, true
}

// nearTrail reports whether the point is within snap distance of any
// recorded trail point of the train.
func (t *Train) nearTrail(x, y, snap float64) bool {
	snapSq := snap * snap
	for i := 0; i < t.History.Len(); i++ {
		p := t.History.At(i)
		if distanceSq(p.X, p.Y, x, y) <= snapSq {
			return true
		}
	}
	return false
}

// mergeInto absorbs a lone train into the destination: the absorbed head
// becomes the new tail marker and its position is pushed as an artificial
// oldest trail point so the tail has somewhere to walk from.
func (m *TrainManager) mergeInto(src, dst *Train, heads map[uint32]TrainAgent, host TrainHost) {
	if src.ID == dst.ID {
		return
	}
	if head, ok := heads[src.HeadID]; ok {
		dst.Markers = append(dst.Markers, Marker{X: head.X, Y: head.Y})
		m.ensureHistoryCapacity(dst)
		dst.History.PushOldest(Point{head.X, head.Y})
		host.RemoveAgent(src.HeadID)
		m.MergeLog = append(m.MergeLog, TrainEvent{HeadID: src.HeadID, TrainID: dst.ID, X: head.X, Y: head.Y})
	}
	if len(src.Markers) > 0 {
		dst.Markers = append(dst.Markers, src.Markers...)
		m.ensureHistoryCapacity(dst)
	}
	delete(m.trains, src.ID)
	m.Merges++
}

func (m *TrainManager) promoteOneMarker(t *Train, host TrainHost, nowMS int64) {
	if len(t.Markers) == 0 {
		delete(m.trains, t.ID)
		return
	}
	if host.AtPopulationCap() {
		t.NextDissolveMS = nowMS + m.params.DissolveIntervalMS
		return
	}
	front := t.Markers[0]
	t.Markers = t.Markers[1:]
	if headID, ok := host.SpawnLineHead(front.X, front.Y); ok {
		m.CreateTrain(headID, front.X, front.Y, 0, false, nowMS)
		m.Promotions++
		m.PromoteLog = append(m.PromoteLog, TrainEvent{HeadID: headID, TrainID: t.ID, X: front.X, Y: front.Y})
	}
	t.NextDissolveMS = nowMS + m.params.DissolveIntervalMS
	if len(t.Markers) == 0 {
		delete(m.trains, t.ID)
	}
}

// PreUpdate runs before the per-agent pass: target assignment, lone-train
// merges and dissolve promotion. Heads are living lineformer heads keyed
// by agent ID; targets are living non-lineformer agents.
func (m *TrainManager) PreUpdate(heads map[uint32]TrainAgent, targets []TrainAgent, host TrainHost, nowMS int64) {
	m.MergeLog = m.MergeLog[:0]
	m.PromoteLog = m.PromoteLog[:0]

	targetByID := make(map[uint32]TrainAgent, len(targets))
	for _, tg := range targets {
		targetByID[tg.ID] = tg
	}
	m.rebuildTargetIndex()

	ordered := make([]*Train, 0, len(m.trains))
	for _, t := range m.trains {
		ordered = append(ordered, t)
	}
	// Map order is random; process trains in creation order so runs with
	// the same seed stay identical.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].ID > ordered[j].ID; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}

	for _, t := range ordered {
		if _, alive := m.trains[t.ID]; !alive {
			continue
		}
		head, haveHead := heads[t.HeadID]
		if !haveHead {
			if !t.Dissolving {
				m.startDissolving(t, nowMS)
			}
		} else if !t.Dissolving {
			soleTrain := t.Length() == 1
			var target TrainAgent
			haveTarget := false
			if t.HasTarget {
				target, haveTarget = targetByID[t.TargetID]
			}
			if !haveTarget {
				reserved := make(map[uint32]struct{})
				for targetID, owner := range m.targetToTrain {
					if owner != t.ID {
						reserved[targetID] = struct{}{}
					}
				}
				if soleTrain {
					target, haveTarget = findNearestTarget(head.X, head.Y, targets, m.params.JoinRadius, reserved)
					if !haveTarget {
						// A lone head may lock a reserved target so it can
						// merge when it reaches the owner train's tail.
						target, haveTarget = findNearestTarget(head.X, head.Y, targets, m.params.JoinRadius, nil)
					}
				} else {
					target, haveTarget = findNearestTarget(head.X, head.Y, targets, m.params.JoinRadius, nil)
				}
				t.HasTarget = haveTarget
				if haveTarget {
					t.TargetID = target.ID
				}
			}
			if haveTarget {
				if owner, reserved := m.targetToTrain[target.ID]; reserved && owner != t.ID {
					dst := m.trains[owner]
					if dst != nil && !dst.Dissolving && t.Length() == 1 {
						tx, ty, haveTail := dst.tailPosition(heads)
						if haveTail &&
							distanceSq(tx, ty, head.X, head.Y) <= m.params.MergeApproach*m.params.MergeApproach &&
							dst.nearTrail(head.X, head.Y, m.params.MergeSnap) {
							m.mergeInto(t, dst, heads, host)
							continue
						}
					}
					t.HasTarget = false
					t.HasTargetPos = false
					if len(t.Markers) > 0 {
						m.startDissolving(t, nowMS)
					}
					continue
				}
				t.HasTargetPos = true
				t.TargetPosX = target.X
				t.TargetPosY = target.Y
				t.LastTargetSeenMS = nowMS
			} else {
				t.HasTargetPos = false
				if len(t.Markers) > 0 {
					m.startDissolving(t, nowMS)
				}
			}
		}
		if t.Dissolving && nowMS >= t.NextDissolveMS {
			m.promoteOneMarker(t, host, nowMS)
		}
	}
	m.rebuildTargetIndex()
}

// PostUpdate runs after the per-agent pass: trail recording and marker
// placement by arc length along the head's recorded path.
func (m *TrainManager) PostUpdate(heads map[uint32]TrainAgent) {
	for _, t := range m.trains {
		if t.Dissolving {
			continue
		}
		head, ok := heads[t.HeadID]
		if !ok {
			continue
		}
		if t.History.Len() == 0 {
			t.History.PushNewest(Point{head.X, head.Y})
		} else {
			last := t.History.Newest()
			manhattan := math.Abs(head.X-last.X) + math.Abs(head.Y-last.Y)
			if manhattan > m.params.MinStepDistance {
				t.History.PushNewest(Point{head.X, head.Y})
			}
		}
		m.ensureHistoryCapacity(t)
		if len(t.Markers) == 0 {
			continue
		}
		m.placeMarkers(t, head)
	}
}

// placeMarkers walks the polyline from the head back through the recorded
// trail and drops marker i at arc distance (i+1) * spacing, clamping to
// the oldest point when the trail is too short. Each marker faces its
// lead element.
func (m *TrainManager) placeMarkers(t *Train, head TrainAgent) {
	spacing := m.params.MarkerSpacing

	// Polyline from the head through history, newest first.
	segStartX, segStartY := head.X, head.Y
	histIdx := t.History.Len() - 1
	walked := 0.0

	nextPoint := func() (float64, float64, bool) {
		if histIdx < 0 {
			return 0, 0, false
		}
		p := t.History.At(histIdx)
		histIdx--
		return p.X, p.Y, true
	}

	segEndX, segEndY, haveSeg := nextPoint()
	segLen := 0.0
	if haveSeg {
		segLen = distance(segStartX, segStartY, segEndX, segEndY)
	}

	for i := range t.Markers {
		target := float64(i+1) * spacing
		for haveSeg && walked+segLen < target {
			walked += segLen
			segStartX, segStartY = segEndX, segEndY
			segEndX, segEndY, haveSeg = nextPoint()
			if haveSeg {
				segLen = distance(segStartX, segStartY, segEndX, segEndY)
			}
		}
		var mx, my float64
		if !haveSeg {
			// Trail exhausted: stack on the oldest point.
			mx, my = segStartX, segStartY
		} else {
			frac := 0.0
			if segLen > 0 {
				frac = (target - walked) / segLen
			}
			mx = segStartX + (segEndX-segStartX)*frac
			my = segStartY + (segEndY-segStartY)*frac
		}
		t.Markers[i].X = mx
		t.Markers[i].Y = my

		leadX, leadY := head.X, head.Y
		if i > 0 {
			leadX, leadY = t.Markers[i-1].X, t.Markers[i-1].Y
		}
		dx := leadX - mx
		dy := leadY - my
		if dx == 0 && dy == 0 {
			t.Markers[i].Angle = 0
		} else {
			t.Markers[i].Angle = math.Atan2(dy, dx)
		}
	}
}

// PopMarkersInCircle removes every marker overlapping the circle and
// returns how many were removed. Used when something heavy rolls through
// a convoy.
func (m *TrainManager) PopMarkersInCircle(cx, cy, radius float64) int {
	removed := 0
	radiusSq := radius * radius
	for _, t := range m.trains {
		if len(t.Markers) == 0 {
			continue
		}
		kept := t.Markers[:0]
		for _, mk := range t.Markers {
			if distanceSq(mk.X, mk.Y, cx, cy) <= radiusSq {
				removed++
				continue
			}
			kept = append(kept, mk)
		}
		t.Markers = kept
	}
	return removed
}

// AnyMarkerInCircle reports whether any marker overlaps the circle.
func (m *TrainManager) AnyMarkerInCircle(cx, cy, radius float64) bool {
	radiusSq := radius * radius
	for _, t := range m.trains {
		for _, mk := range t.Markers {
			if distanceSq(mk.X, mk.Y, cx, cy) <= radiusSq {
				return true
			}
		}
	}
	return false
}

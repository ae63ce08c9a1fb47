package systems

import (
	"sort"

	"github.com/pthm-cable/horde/components"
)

// Footprint is a timestamped scent point dropped by the prey.
type Footprint struct {
	X, Y   float64
	TimeMS int64
}

// Trail is the rolling footprint record, ordered oldest to newest.
type Trail struct {
	prints   []Footprint
	lastX    float64
	lastY    float64
	hasLast  bool
	stepDist float64
	maxLen   int
}

// NewTrail creates a trail that records a footprint every stepDist of prey
// travel and keeps at most maxLen prints.
func NewTrail(stepDist float64, maxLen int) *Trail {
	return &Trail{stepDist: stepDist, maxLen: maxLen}
}

// Record drops a footprint when the prey has moved a full step since the
// last one.
func (t *Trail) Record(x, y float64, nowMS int64) {
	if t.hasLast && distanceSq(x, y, t.lastX, t.lastY) < t.stepDist*t.stepDist {
		return
	}
	t.prints = append(t.prints, Footprint{X: x, Y: y, TimeMS: nowMS})
	t.lastX, t.lastY = x, y
	t.hasLast = true
	if len(t.prints) > t.maxLen {
		t.prints = t.prints[len(t.prints)-t.maxLen:]
	}
}

// Prints returns the footprints ordered oldest to newest. The slice is
// shared; callers must not mutate it.
func (t *Trail) Prints() []Footprint { return t.prints }

// StepDistance returns the recording step distance.
func (t *Trail) StepDistance() float64 { return t.stepDist }

// ScentParams holds the tracker tunables.
type ScentParams struct {
	ScanIntervalMS   int64
	LostTimeoutMS    int64
	ScentRadius      float64
	FarScentRadius   float64
	NewerFootprintMS int64
	RelockDelayMS    int64
	TopK             int
	FootprintStep    float64
}

// MarkForceWander drops the current trail for one scan and opens a relock
// window so the tracker does not immediately re-acquire the same prints.
func MarkForceWander(s *components.Scent, nowMS int64, params ScentParams) {
	lastTargetTime := nowMS
	if s.HasTarget {
		lastTargetTime = s.TargetAtMS
	}
	s.HasRelock = true
	s.RelockAtMS = lastTargetTime + params.RelockDelayMS
	s.HasTarget = false
}

// UpdateScentTarget runs one tracker scan over the trail. Footprints are
// ordered oldest to newest. The selection prefers the newest reachable
// print: a far scan when there is no target or a clearly newer print
// exists, a close scan otherwise, falling back to the oldest eligible
// print only when the tracker is already standing on its target.
func UpdateScentTarget(s *components.Scent, originX, originY float64, footprints []Footprint, blocked map[Cell]struct{}, layout *Layout, nowMS int64, params ScentParams) {
	markLost := func(boundary int64) {
		if !s.HasIgnore || boundary > s.IgnoreAtMS {
			s.HasIgnore = true
			s.IgnoreAtMS = boundary
		}
		s.HasTarget = false
		s.HasProgress = false
	}

	eligible := func(t int64) bool {
		if s.HasIgnore && t <= s.IgnoreAtMS {
			return false
		}
		if s.HasRelock && t < s.RelockAtMS {
			return false
		}
		return true
	}

	if nowMS-s.LastScanMS < params.ScanIntervalMS {
		return
	}
	s.LastScanMS = nowMS
	hadTarget := s.HasTarget
	lastTargetTime := s.TargetAtMS
	if hadTarget && !s.HasProgress {
		s.HasProgress = true
		s.ProgressMS = nowMS
	}

	if hadTarget {
		hasNewer := false
		for _, fp := range footprints {
			if fp.TimeMS > lastTargetTime && eligible(fp.TimeMS) {
				hasNewer = true
				break
			}
		}
		if hasNewer {
			s.ProgressMS = nowMS
		} else if s.HasProgress && nowMS-s.ProgressMS >= params.LostTimeoutMS {
			markLost(lastTargetTime)
			return
		}
	}

	if len(footprints) == 0 {
		s.HasTarget = false
		return
	}

	farRadiusSq := params.FarScentRadius * params.FarScentRadius
	type scored struct {
		distSq float64
		fp     Footprint
	}
	var farCandidates []scored
	for _, fp := range footprints {
		if !eligible(fp.TimeMS) {
			continue
		}
		d2 := distanceSq(fp.X, fp.Y, originX, originY)
		if d2 <= farRadiusSq {
			farCandidates = append(farCandidates, scored{d2, fp})
		}
	}
	if len(farCandidates) == 0 {
		return
	}

	latestTime := farCandidates[len(farCandidates)-1].fp.TimeMS
	useFarScan := !hadTarget || latestTime-lastTargetTime >= params.NewerFootprintMS
	scanRadius := params.ScentRadius
	if useFarScan {
		scanRadius = params.FarScentRadius
	}
	scanRadiusSq := scanRadius * scanRadius
	minTargetDistSq := (params.FootprintStep * 0.5) * (params.FootprintStep * 0.5)

	var newer []Footprint
	for _, c := range farCandidates {
		if c.distSq <= minTargetDistSq {
			continue
		}
		if c.distSq <= scanRadiusSq && (!hadTarget || c.fp.TimeMS > lastTargetTime) {
			newer = append(newer, c.fp)
		}
	}
	if len(newer) == 0 {
		return
	}

	sort.SliceStable(newer, func(i, j int) bool { return newer[i].TimeMS < newer[j].TimeMS })

	adopt := func(fp Footprint) {
		wasNewer := !s.HasTarget || fp.TimeMS > s.TargetAtMS
		s.HasTarget = true
		s.TargetX = fp.X
		s.TargetY = fp.Y
		s.TargetAtMS = fp.TimeMS
		if wasNewer {
			s.HasProgress = true
			s.ProgressMS = nowMS
		}
		if s.HasRelock && fp.TimeMS >= s.RelockAtMS {
			s.HasRelock = false
		}
	}

	var candidates []Footprint
	if useFarScan || !hadTarget {
		candidates = newestFirst(newer, params.TopK)
	} else {
		threshold := lastTargetTime + params.NewerFootprintMS
		var veryNew []Footprint
		for _, fp := range newer {
			if fp.TimeMS >= threshold {
				veryNew = append(veryNew, fp)
			}
		}
		if len(veryNew) > 0 {
			candidates = newestFirst(veryNew, params.TopK)
		} else {
			candidates = newer
			if len(candidates) > params.TopK {
				candidates = candidates[:params.TopK]
			}
		}
	}

	for _, fp := range candidates {
		if LineOfSightClearCells(originX, originY, fp.X, fp.Y, blocked, layout.CellSize, layout.Cols, layout.Rows) {
			adopt(fp)
			return
		}
	}

	// None of the picks are reachable. Only fall through to the oldest
	// eligible print when already standing on the current target.
	if s.HasTarget && distanceSq(originX, originY, s.TargetX, s.TargetY) > minTargetDistSq {
		return
	}
	if !hadTarget {
		return
	}
	adopt(newer[0])
}

// newestFirst returns up to k footprints ordered newest to oldest.
func newestFirst(prints []Footprint, k int) []Footprint {
	out := make([]Footprint, 0, min(k, len(prints)))
	for i := len(prints) - 1; i >= 0 && len(out) < k; i-- {
		out = append(out, prints[i])
	}
	return out
}

// BlockedScentCells composes the cells that stop scent line of sight:
// outer boundary, beams and living wall cells.
func BlockedScentCells(layout *Layout, wallCells map[Cell]struct{}) map[Cell]struct{} {
	blocked := make(map[Cell]struct{}, len(layout.Outer)+len(layout.Beams)+len(wallCells))
	for c := range layout.Outer {
		blocked[c] = struct{}{}
	}
	for c := range layout.Beams {
		blocked[c] = struct{}{}
	}
	for c := range wallCells {
		blocked[c] = struct{}{}
	}
	return blocked
}

package systems

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/horde/components"
)

// WallHugParams holds the wall-hug controller tunables.
type WallHugParams struct {
	SensorDistance float64 // probe reach beyond the collision radius
	ProbeAngleDeg  float64
	ProbeStep      float64
	TargetGap      float64
	LostWallMS     int64

	// Stuck detector: a full position window whose max pairwise squared
	// distance is below StuckDistSq means the hugger is grinding in place.
	StuckDistSq float64
}

// wallProbeDistance marches along a ray in fixed steps and returns the
// distance at which the agent's circle would first touch a wall, or
// maxDistance when the ray is clear.
func wallProbeDistance(x, y, radius, angle, maxDistance, step float64, walls []*Wall) float64 {
	dirX := math.Cos(angle)
	dirY := math.Sin(angle)
	maxSearch := maxDistance + 120
	candidates := walls[:0:0]
	for _, w := range walls {
		if math.Abs(w.Rect.CenterX()-x) < maxSearch && math.Abs(w.Rect.CenterY()-y) < maxSearch {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return maxDistance
	}
	for dist := step; dist <= maxDistance; dist += step {
		checkX := x + dirX*dist
		checkY := y + dirY*dist
		for _, w := range candidates {
			if w.CollidesCircle(checkX, checkY, radius) {
				return dist
			}
		}
	}
	return maxDistance
}

// WallHugStep steers the agent along a held wall and returns this tick's
// intended displacement plus whether a hug heading was produced. When no
// wall is held and none is found, ok is false and the caller falls back
// to its default strategy.
func WallHugStep(h *components.WallHug, x, y, speed, radius float64, walls []*Wall, rng *rand.Rand, nowMS int64, params WallHugParams) (dx, dy float64, ok bool) {
	sensorDistance := params.SensorDistance + radius
	probeOffset := params.ProbeAngleDeg * math.Pi / 180

	if h.Side == components.SideNone {
		forward := h.Angle
		leftDist := wallProbeDistance(x, y, radius, forward+probeOffset, sensorDistance, params.ProbeStep, walls)
		rightDist := wallProbeDistance(x, y, radius, forward-probeOffset, sensorDistance, params.ProbeStep, walls)
		forwardDist := wallProbeDistance(x, y, radius, forward, sensorDistance, params.ProbeStep, walls)
		leftWall := leftDist < sensorDistance
		rightWall := rightDist < sensorDistance
		forwardWall := forwardDist < sensorDistance
		if !leftWall && !rightWall && !forwardWall {
			return 0, 0, false
		}
		switch {
		case leftWall && !rightWall:
			h.Side = components.SideLeft
		case rightWall && !leftWall:
			h.Side = components.SideRight
		case leftWall && rightWall:
			if leftDist <= rightDist {
				h.Side = components.SideLeft
			} else {
				h.Side = components.SideRight
			}
		default:
			if rng.Float64() < 0.5 {
				h.Side = components.SideLeft
			} else {
				h.Side = components.SideRight
			}
		}
		h.HasSeenWall = true
		h.LastSeenMS = nowMS
		h.SideHasWall = leftWall || rightWall
	}

	side := float64(h.Side)
	sideDist := wallProbeDistance(x, y, radius, h.Angle+side*probeOffset, sensorDistance, params.ProbeStep, walls)
	forwardDist := wallProbeDistance(x, y, radius, h.Angle, sensorDistance, params.ProbeStep, walls)
	sideHasWall := sideDist < sensorDistance
	forwardHasWall := forwardDist < sensorDistance
	wallRecent := h.HasSeenWall && nowMS-h.LastSeenMS <= params.LostWallMS

	turnStep := 5 * math.Pi / 180
	if sideHasWall || forwardHasWall {
		h.HasSeenWall = true
		h.LastSeenMS = nowMS
	}
	if sideHasWall {
		h.SideHasWall = true
		gapError := params.TargetGap - sideDist
		if math.Abs(gapError) > 0.1 {
			ratio := math.Min(1, math.Abs(gapError)/params.TargetGap)
			turn := turnStep * ratio
			if gapError > 0 {
				h.Angle -= side * turn
			} else {
				h.Angle += side * turn
			}
		}
		if forwardDist < params.TargetGap {
			h.Angle -= side * (turnStep * 1.5)
		}
	} else {
		h.SideHasWall = false
		switch {
		case forwardHasWall:
			h.Angle -= side * turnStep
		case wallRecent:
			h.Angle += side * (turnStep * 0.75)
		default:
			// The wall is gone. Sweep toward where it was, then let go.
			h.Angle += side * (math.Pi / 2)
			h.Side = components.SideNone
		}
	}
	h.Angle = math.Mod(h.Angle+2*math.Pi, 2*math.Pi)

	return math.Cos(h.Angle) * speed, math.Sin(h.Angle) * speed, true
}

// WallHugStuckCheck records the committed position and, when the full
// window has barely moved, flips the hug side and reverses the heading.
// Returns true when the flip fired.
func WallHugStuckCheck(h *components.WallHug, wd *components.Wander, x, y float64, params WallHugParams) bool {
	h.PushTrace(components.Position{X: x, Y: y})
	if h.TraceLen < len(h.Trace) {
		return false
	}
	if h.TraceSpread() >= params.StuckDistSq {
		return false
	}
	h.Side = -h.Side
	h.Angle = math.Mod(h.Angle+math.Pi, 2*math.Pi)
	wd.Angle = h.Angle
	h.ResetTrace()
	return true
}

package systems

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/horde/components"
)

// WanderParams holds the roaming strategy tunables.
type WanderParams struct {
	JitterMS int64 // resample interval jitter, drawn from [-JitterMS, JitterMS]
}

// WanderStep advances the roaming state and returns this tick's intended
// displacement. Agents in the outermost grid ring are steered back toward
// the interior; pitfall cells push the heading away and reverse it when a
// step would land inside one.
func WanderStep(w *components.Wander, x, y, speed, radius float64, walls []*Wall, layout *Layout, rng *rand.Rand, nowMS int64, params WanderParams) (float64, float64) {
	changedAngle := false
	if nowMS > w.NextChangeMS {
		w.Angle = rng.Float64() * 2 * math.Pi
		jitter := rng.Int63n(2*params.JitterMS+1) - params.JitterMS
		interval := w.IntervalMS + jitter
		if interval < 0 {
			interval = 0
		}
		w.NextChangeMS = nowMS + interval
		changedAngle = true
	}

	cellSize := layout.CellSize
	cellX := int(math.Floor(x / float64(cellSize)))
	cellY := int(math.Floor(y / float64(cellSize)))
	atXEdge := cellX == 0 || cellX == layout.Cols-1
	atYEdge := cellY == 0 || cellY == layout.Rows-1

	// Fresh headings pointing out of the field flip inward half the time.
	if changedAngle && (atXEdge || atYEdge) {
		cos := math.Cos(w.Angle)
		sin := math.Sin(w.Angle)
		outward := (cellX == 0 && cos < 0) ||
			(cellX == layout.Cols-1 && cos > 0) ||
			(cellY == 0 && sin < 0) ||
			(cellY == layout.Rows-1 && sin > 0)
		if outward && rng.Float64() < 0.5 {
			w.Angle = math.Mod(w.Angle+math.Pi, 2*math.Pi)
		}
	}

	if atXEdge || atYEdge {
		if len(layout.Outer) > 0 {
			if atXEdge {
				inward := Cell{1, cellY}
				if cellX != 0 {
					inward = Cell{layout.Cols - 2, cellY}
				}
				if _, blocked := layout.Outer[inward]; !blocked {
					tx, ty := layout.CellCenter(inward)
					return moveAtSpeed(x, y, tx, ty, speed)
				}
			}
			if atYEdge {
				inward := Cell{cellX, 1}
				if cellY != 0 {
					inward = Cell{cellX, layout.Rows - 2}
				}
				if _, blocked := layout.Outer[inward]; !blocked {
					tx, ty := layout.CellCenter(inward)
					return moveAtSpeed(x, y, tx, ty, speed)
				}
			}
		} else {
			pathClear := func(nx, ny float64) bool {
				for _, wall := range walls {
					if math.Abs(wall.Rect.CenterX()-nx) >= 120 || math.Abs(wall.Rect.CenterY()-ny) >= 120 {
						continue
					}
					if wall.CollidesCircle(nx, ny, radius) {
						return false
					}
				}
				return true
			}
			if atXEdge {
				inwardDX := speed
				if cellX != 0 {
					inwardDX = -speed
				}
				if pathClear(x+inwardDX, y) {
					return inwardDX, 0
				}
			}
			if atYEdge {
				inwardDY := speed
				if cellY != 0 {
					inwardDY = -speed
				}
				if pathClear(x, y+inwardDY) {
					return 0, inwardDY
				}
			}
		}
	}

	moveX := math.Cos(w.Angle) * speed
	moveY := math.Sin(w.Angle) * speed
	if len(layout.Pitfalls) > 0 {
		avoidX, avoidY := pitfallAvoidance(x, y, speed, layout.Pitfalls, cellSize)
		moveX += avoidX
		moveY += avoidY
		next := layout.CellAt(x+moveX, y+moveY)
		if _, pit := layout.Pitfalls[next]; pit {
			// Reverse once; give up for this tick if still headed into a pit.
			w.Angle = math.Mod(w.Angle+math.Pi, 2*math.Pi)
			moveX = math.Cos(w.Angle) * speed
			moveY = math.Sin(w.Angle) * speed
			avoidX, avoidY = pitfallAvoidance(x, y, speed, layout.Pitfalls, cellSize)
			moveX += avoidX
			moveY += avoidY
			next = layout.CellAt(x+moveX, y+moveY)
			if _, pit := layout.Pitfalls[next]; pit {
				return 0, 0
			}
		}
	}
	return moveX, moveY
}

// moveAtSpeed returns a full-speed displacement toward the target, or zero
// when already on it.
func moveAtSpeed(x, y, tx, ty, speed float64) (float64, float64) {
	dx := tx - x
	dy := ty - y
	d := math.Hypot(dx, dy)
	if d <= 0 {
		return 0, 0
	}
	return dx / d * speed, dy / d * speed
}

package systems

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/horde/components"
)

// SeparationNeighbor is a nearby agent considered for push-apart.
type SeparationNeighbor struct {
	X, Y   float64
	Radius float64
}

// SeparationParams holds the push-apart tunables.
type SeparationParams struct {
	Distance float64
}

// ApplySeparation steers directly away from the closest neighbor crowding
// the agent's next position. Wall-huggers bumping into a neighbor flip
// their held side one time in ten; otherwise their corrected heading is
// clamped to a quarter turn from the intended one so they do not let go
// of the wall.
func ApplySeparation(moveX, moveY, x, y, radius, speed float64, neighbors []SeparationNeighbor, hug *components.WallHug, rng *rand.Rand, params SeparationParams) (float64, float64) {
	origX, origY := moveX, moveY
	nextX := x + moveX
	nextY := y + moveY

	var closest *SeparationNeighbor
	closestDistSq := params.Distance * params.Distance
	for i := range neighbors {
		n := &neighbors[i]
		dx := n.X - nextX
		dy := n.Y - nextY
		if math.Abs(dx) > params.Distance || math.Abs(dy) > params.Distance {
			continue
		}
		distSq := dx*dx + dy*dy
		if distSq < closestDistSq {
			closest = n
			closestDistSq = distSq
		}
	}
	if closest == nil {
		return moveX, moveY
	}

	if hug != nil {
		bumpDist := radius + closest.Radius
		if closestDistSq < bumpDist*bumpDist && rng.Float64() < 0.1 {
			hug.Angle = math.Mod(hug.Angle+math.Pi+2*math.Pi, 2*math.Pi)
			hug.Side = -hug.Side
			return math.Cos(hug.Angle) * speed, math.Sin(hug.Angle) * speed
		}
	}

	awayX := nextX - closest.X
	awayY := nextY - closest.Y
	awayDist := math.Hypot(awayX, awayY)
	if awayDist == 0 {
		angle := rng.Float64() * 2 * math.Pi
		awayX, awayY = math.Cos(angle), math.Sin(angle)
		awayDist = 1
	}

	moveX = awayX / awayDist * speed
	moveY = awayY / awayDist * speed
	if hug != nil && (origX != 0 || origY != 0) {
		origAngle := math.Atan2(origY, origX)
		newAngle := math.Atan2(moveY, moveX)
		diff := normalizeAngle(newAngle - origAngle)
		if math.Abs(diff) > math.Pi/2 {
			newAngle = origAngle + math.Copysign(math.Pi/2, diff)
			moveX = math.Cos(newAngle) * speed
			moveY = math.Sin(newAngle) * speed
		}
	}
	return moveX, moveY
}

package sim

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/horde/config"
	"github.com/pthm-cable/horde/systems"
)

// Prey is the scripted quarry the horde reacts to. It walks between
// random waypoints, leaves footprints and stomps any train marker it
// touches.
type Prey struct {
	X, Y   float64
	Radius float64

	speed    float64
	margin   float64
	holdDist float64

	targetX, targetY float64
	hasTarget        bool
}

// NewPrey creates the prey at the given position.
func NewPrey(x, y float64, cfg *config.Config) *Prey {
	return &Prey{
		X:        x,
		Y:        y,
		Radius:   cfg.Agents.Radius,
		speed:    cfg.Prey.Speed,
		margin:   cfg.Prey.WaypointMargin,
		holdDist: cfg.Prey.WaypointHoldDist,
	}
}

// Step advances the prey one tick. Movement collides with walls but
// deals no damage.
func (p *Prey) Step(walls *systems.WallSet, layout *systems.Layout, rng *rand.Rand) {
	if !p.hasTarget || math.Hypot(p.targetX-p.X, p.targetY-p.Y) <= p.holdDist {
		p.pickWaypoint(layout, rng)
	}

	dx := p.targetX - p.X
	dy := p.targetY - p.Y
	dist := math.Hypot(dx, dy)
	if dist <= 0 {
		return
	}
	step := math.Min(p.speed, dist)
	nextX := p.X + dx/dist*step
	nextY := p.Y + dy/dist*step

	near := walls.NearRadius(p.X, p.Y, p.Radius+p.speed)
	finalX, finalY, _ := systems.ResolveWallCollision(p.X, p.Y, p.Radius, nextX, nextY, near, walls, 0)
	if finalX == p.X && finalY == p.Y {
		// Boxed in; try somewhere else next tick.
		p.hasTarget = false
	}
	p.X = finalX
	p.Y = finalY
}

func (p *Prey) pickWaypoint(layout *systems.Layout, rng *rand.Rand) {
	w := layout.Width()
	h := layout.Height()
	for tries := 0; tries < 20; tries++ {
		x := p.margin + rng.Float64()*(w-2*p.margin)
		y := p.margin + rng.Float64()*(h-2*p.margin)
		c := layout.CellAt(x, y)
		if _, pit := layout.Pitfalls[c]; pit {
			continue
		}
		if _, haz := layout.Hazards[c]; haz {
			continue
		}
		p.targetX = x
		p.targetY = y
		p.hasTarget = true
		return
	}
	p.targetX = w / 2
	p.targetY = h / 2
	p.hasTarget = true
}

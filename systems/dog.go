package systems

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/horde/components"
)

// DogParams holds the dog strategy tunables.
type DogParams struct {
	SightRange       float64
	PackChaseRange   float64
	WanderIntervalMS int64

	WindupFrames    int
	CooldownMS      int64
	ChargeOffset    float64 // radius of the randomized aim point around the prey
	ChargeOvershoot float64 // distance carried past the aim point
	NearRange       float64 // prey inside this band re-heads a fresh wander at it

	FollowSpeedMult float64 // scent-hound footprint-follow speed factor
}

// DogChaseTarget is the nearest same-species pack target, when one exists.
type DogChaseTarget struct {
	X, Y float64
	OK   bool
}

// dogInSight reports whether the prey is within the dog's sight range.
func dogInSight(x, y, preyX, preyY, sightRange float64) bool {
	return distanceSq(x, y, preyX, preyY) <= sightRange*sightRange
}

// pickChargeTarget aims near the prey with a randomized offset, rejecting
// aim points inside blocked cells and aim points so close that the rush
// would look like an ordinary wander step. Falls back to the prey itself.
func pickChargeTarget(preyX, preyY float64, blocked map[Cell]struct{}, layout *Layout, rng *rand.Rand, offset float64) (float64, float64) {
	minDist := offset * 0.25
	for try := 0; try < 6; try++ {
		angle := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * offset
		if dist < minDist {
			continue
		}
		tx := preyX + math.Cos(angle)*dist
		ty := preyY + math.Sin(angle)*dist
		if _, bad := blocked[layout.CellAt(tx, ty)]; bad {
			continue
		}
		return tx, ty
	}
	return preyX, preyY
}

// dogEnterCharge arms a charge: aim point, wind-up frames, no direction
// yet. The direction is locked when the wind-up runs out so the dog
// tracks the prey with its eyes but commits to a straight line.
func dogEnterCharge(d *components.Dog, preyX, preyY float64, blocked map[Cell]struct{}, layout *Layout, rng *rand.Rand, params DogParams) {
	d.Mode = components.DogCharge
	d.WindupLeft = params.WindupFrames
	d.ChargeX, d.ChargeY = pickChargeTarget(preyX, preyY, blocked, layout, rng, params.ChargeOffset)
	d.DirX, d.DirY = 0, 0
	d.RemainingDist = 0
}

// DogAbortCharge drops back to wander and starts the charge cooldown.
// Called on wall hits and when the charge distance runs out.
func DogAbortCharge(d *components.Dog, wd *components.Wander, rng *rand.Rand, nowMS int64, params DogParams) {
	d.Mode = components.DogWander
	d.CooldownUntilMS = nowMS + params.CooldownMS
	wd.Angle = rng.Float64() * 2 * math.Pi
	wd.NextChangeMS = nowMS + params.WanderIntervalMS
}

// DogStep advances the dog state machine one tick and returns the
// intended displacement. The plain variant escalates to a pack chase when
// a same-species target is close; the scent hound never does, and follows
// the footprint trail instead when the prey is out of sight.
func DogStep(d *components.Dog, wd *components.Wander, sc *components.Scent, ag *components.Agent,
	x, y, preyX, preyY float64, chase DogChaseTarget,
	trail []Footprint, blocked map[Cell]struct{}, layout *Layout,
	rng *rand.Rand, nowMS int64, params DogParams, scentParams ScentParams) (float64, float64) {

	inSight := dogInSight(x, y, preyX, preyY, params.SightRange)
	wasWandering := d.Mode == components.DogWander

	if d.Variant == components.DogPlain {
		if chase.OK && d.Mode != components.DogCharge {
			d.Mode = components.DogChase
		} else if !chase.OK && d.Mode == components.DogChase {
			d.Mode = components.DogWander
		}
	}

	if d.Mode == components.DogWander && inSight && nowMS >= d.CooldownUntilMS {
		dogEnterCharge(d, preyX, preyY, blocked, layout, rng, params)
	} else if d.Mode == components.DogCharge && d.WindupLeft > 0 && !inSight {
		// Lost the prey before committing.
		d.Mode = components.DogWander
	}

	switch d.Mode {
	case components.DogCharge:
		if d.WindupLeft > 0 {
			// Hold position and stare the prey down.
			d.WindupLeft--
			ag.Facing = math.Atan2(preyY-y, preyX-x)
			return 0, 0
		}
		if d.DirX == 0 && d.DirY == 0 && d.RemainingDist == 0 {
			dx := d.ChargeX - x
			dy := d.ChargeY - y
			dist := math.Hypot(dx, dy)
			if dist <= 0 {
				DogAbortCharge(d, wd, rng, nowMS, params)
				break
			}
			d.DirX, d.DirY = dx/dist, dy/dist
			d.RemainingDist = dist + params.ChargeOvershoot
		}
		if d.RemainingDist <= 0 {
			DogAbortCharge(d, wd, rng, nowMS, params)
			break
		}
		step := math.Min(d.SpeedAssault, d.RemainingDist)
		d.RemainingDist -= step
		return d.DirX * step, d.DirY * step

	case components.DogChase:
		if chase.OK {
			dx, dy := moveAtSpeed(x, y, chase.X, chase.Y, d.SpeedPatrol)
			if dx != 0 || dy != 0 {
				return dx, dy
			}
		}
		d.Mode = components.DogWander
		wd.Angle = rng.Float64() * 2 * math.Pi
		wd.NextChangeMS = nowMS + params.WanderIntervalMS
	}

	// Dropping into wander with the prey in the near band re-heads at it.
	if !wasWandering && d.Mode == components.DogWander &&
		distanceSq(x, y, preyX, preyY) <= params.NearRange*params.NearRange {
		wd.Angle = math.Atan2(preyY-y, preyX-x)
		wd.NextChangeMS = nowMS + params.WanderIntervalMS
	}

	// Wander, with the scent hound preferring the trail when out of sight.
	if d.Variant == components.DogScentHound && !inSight && sc != nil {
		UpdateScentTarget(sc, x, y, trail, blocked, layout, nowMS, scentParams)
		if sc.HasTarget {
			speed := d.SpeedPatrol * params.FollowSpeedMult
			return moveAtSpeed(x, y, sc.TargetX, sc.TargetY, speed)
		}
	}

	if nowMS > wd.NextChangeMS {
		wd.Angle = rng.Float64() * 2 * math.Pi
		wd.NextChangeMS = nowMS + params.WanderIntervalMS
	}
	return math.Cos(wd.Angle) * d.SpeedPatrol, math.Sin(wd.Angle) * d.SpeedPatrol
}

// DogWanderBounce reverses the wander heading after a wall hit while
// roaming, mirroring how grounded dogs probe around obstacles.
func DogWanderBounce(d *components.Dog, wd *components.Wander, rng *rand.Rand, nowMS int64, params DogParams, hit bool) {
	if !hit {
		return
	}
	if d.Mode == components.DogWander {
		wd.Angle = math.Mod(wd.Angle+math.Pi, 2*math.Pi)
		return
	}
	DogAbortCharge(d, wd, rng, nowMS, params)
}

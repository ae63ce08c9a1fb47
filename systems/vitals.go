package systems

import (
	"math"

	"github.com/pthm-cable/horde/components"
)

// VitalsParams holds decay and status-effect tunables.
type VitalsParams struct {
	DecayDurationFrames  float64
	DecayMinSpeedRatio   float64
	CarbonizeDecayFrames float64

	ParalyzeDurationMS  int64
	ParalyzeDamageEvery int // frames between paralysis damage ticks
	ParalyzeDamage      int
}

// SpeedRatio maps the current health ratio onto the decay speed scale:
// full health moves at 1.0, zero health at the configured minimum.
func SpeedRatio(v *components.Vitals, minRatio float64) float64 {
	if v.Carbonized {
		return 0
	}
	healthRatio := 0.0
	if v.MaxHealth > 0 {
		healthRatio = clampFloat(float64(v.Health)/float64(v.MaxHealth), 0, 1)
	}
	return minRatio + (1.0-minRatio)*healthRatio
}

func setHealth(v *components.Vitals, health int) (killed bool) {
	if health < 0 {
		health = 0
	}
	if health > v.MaxHealth {
		health = v.MaxHealth
	}
	v.Health = health
	return v.Health <= 0
}

// ApplyDecay advances one tick of passive rot. Fractional decay
// accumulates in the carry until it amounts to a whole health point.
// Returns true when decay finished the agent off.
func ApplyDecay(v *components.Vitals, params VitalsParams) (killed bool) {
	if params.DecayDurationFrames <= 0 {
		return false
	}
	v.DecayCarry += float64(v.MaxHealth) / params.DecayDurationFrames
	if v.DecayCarry >= 1.0 {
		amount := int(v.DecayCarry)
		v.DecayCarry -= float64(amount)
		return setHealth(v, v.Health-amount)
	}
	return false
}

// Damage applies a direct hit. Returns true when it killed the agent.
func Damage(v *components.Vitals, amount int) (killed bool) {
	if amount <= 0 {
		return false
	}
	return setHealth(v, v.Health-amount)
}

// Carbonize burns the agent to a crisp: health is capped to what the
// shortened decay window would leave, the decay carry resets, and the
// agent stops moving for good. Returns true on the transition.
func Carbonize(v *components.Vitals, params VitalsParams) bool {
	if v.Carbonized {
		return false
	}
	v.Carbonized = true
	if params.DecayDurationFrames > 0 {
		remainingRatio := math.Min(1.0, params.CarbonizeDecayFrames/params.DecayDurationFrames)
		remaining := int(math.Round(float64(v.MaxHealth) * remainingRatio))
		if remaining < 1 {
			remaining = 1
		}
		if v.Health > remaining {
			v.Health = remaining
		}
		v.DecayCarry = 0
	}
	return true
}

// UpdateHazardParalysis handles contact with an electrified floor cell.
// The hold timestamp only ever extends, and damage lands every
// ParalyzeDamageEvery frames of contact. Returns whether the agent is
// held this tick and whether the contact damage killed it.
func UpdateHazardParalysis(v *components.Vitals, onHazard bool, nowMS int64, params VitalsParams) (paralyzed, killed bool) {
	if onHazard {
		until := nowMS + params.ParalyzeDurationMS
		if until > v.ParalyzedUntilMS {
			v.ParalyzedUntilMS = until
		}
		if params.ParalyzeDamageEvery > 0 && params.ParalyzeDamage > 0 {
			v.ParalyzeTicks = (v.ParalyzeTicks + 1) % params.ParalyzeDamageEvery
			if v.ParalyzeTicks == 0 {
				killed = Damage(v, params.ParalyzeDamage)
			}
		}
	}
	return nowMS < v.ParalyzedUntilMS, killed
}

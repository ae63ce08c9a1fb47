package systems

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/horde/components"
)

func testDogParams() DogParams {
	return DogParams{
		SightRange:       260,
		NearRange:        120,
		PackChaseRange:   140,
		WanderIntervalMS: 1200,
		WindupFrames:     2,
		CooldownMS:       2500,
		ChargeOffset:     48,
		ChargeOvershoot:  60,
		FollowSpeedMult:  1.35,
	}
}

func newTestDog(variant components.DogVariant) *components.Dog {
	return &components.Dog{
		Variant:      variant,
		SpeedPatrol:  1.6,
		SpeedAssault: 4.2,
	}
}

func TestDogStep_ChargeWindsUpBeforeMoving(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layout := NewLayout(30, 22, 40)
	d := newTestDog(components.DogPlain)
	wd := &components.Wander{}
	ag := &components.Agent{}

	// Prey in sight: the dog arms a charge and holds still for the
	// wind-up frames.
	dx, dy := DogStep(d, wd, nil, ag, 100, 100, 200, 100, DogChaseTarget{},
		nil, noBlocked(), layout, rng, 0, testDogParams(), testScentParams())
	if d.Mode != components.DogCharge {
		t.Fatalf("expected charge mode, got %v", d.Mode)
	}
	if dx != 0 || dy != 0 {
		t.Errorf("wind-up tick should not move, got (%f, %f)", dx, dy)
	}
	if d.WindupLeft != 1 {
		t.Errorf("expected 1 wind-up frame left, got %d", d.WindupLeft)
	}
	if ag.Facing != 0 {
		t.Errorf("expected the dog staring at the prey along +x, facing %f", ag.Facing)
	}

	dx, dy = DogStep(d, wd, nil, ag, 100, 100, 200, 100, DogChaseTarget{},
		nil, noBlocked(), layout, rng, 16, testDogParams(), testScentParams())
	if dx != 0 || dy != 0 {
		t.Errorf("second wind-up tick should not move, got (%f, %f)", dx, dy)
	}

	dx, dy = DogStep(d, wd, nil, ag, 100, 100, 200, 100, DogChaseTarget{},
		nil, noBlocked(), layout, rng, 32, testDogParams(), testScentParams())
	step := math.Hypot(dx, dy)
	if step <= 0 || step > d.SpeedAssault+1e-9 {
		t.Errorf("charge step %f, want within assault speed %f", step, d.SpeedAssault)
	}
	if d.DirX == 0 && d.DirY == 0 {
		t.Error("expected a committed charge direction")
	}
}

func TestDogStep_ChargeDistanceRunsOutIntoCooldown(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layout := NewLayout(30, 22, 40)
	d := newTestDog(components.DogPlain)
	d.Mode = components.DogCharge
	d.DirX, d.DirY = 1, 0
	d.RemainingDist = 5
	wd := &components.Wander{}
	ag := &components.Agent{}

	// 4.2 then 0.8 consume the budget; the tick after aborts.
	DogStep(d, wd, nil, ag, 100, 100, 500, 500, DogChaseTarget{},
		nil, noBlocked(), layout, rng, 0, testDogParams(), testScentParams())
	DogStep(d, wd, nil, ag, 104, 100, 500, 500, DogChaseTarget{},
		nil, noBlocked(), layout, rng, 16, testDogParams(), testScentParams())
	if d.RemainingDist > 1e-9 {
		t.Fatalf("expected the budget consumed, got %f", d.RemainingDist)
	}
	DogStep(d, wd, nil, ag, 105, 100, 500, 500, DogChaseTarget{},
		nil, noBlocked(), layout, rng, 32, testDogParams(), testScentParams())
	if d.Mode != components.DogWander {
		t.Errorf("expected wander after the charge spent itself, got %v", d.Mode)
	}
	if d.CooldownUntilMS != 32+testDogParams().CooldownMS {
		t.Errorf("expected the cooldown started, got %d", d.CooldownUntilMS)
	}
}

func TestPickChargeTarget_RejectsPointBlankAim(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	layout := NewLayout(30, 22, 40)
	offset := testDogParams().ChargeOffset

	// Draws shorter than a quarter offset are resampled so a charge never
	// looks like a plain wander step.
	for i := 0; i < 200; i++ {
		tx, ty := pickChargeTarget(600, 440, noBlocked(), layout, rng, offset)
		if tx == 600 && ty == 440 {
			continue
		}
		if d := math.Hypot(tx-600, ty-440); d < offset*0.25 {
			t.Fatalf("aim point %f from the prey on draw %d, want at least %f", d, i, offset*0.25)
		}
	}
}

func TestDogStep_SpentChargeReheadsAtNearbyPrey(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layout := NewLayout(30, 22, 40)
	d := newTestDog(components.DogPlain)
	d.Mode = components.DogCharge
	d.DirX, d.DirY = 1, 0
	d.RemainingDist = 0
	wd := &components.Wander{}
	ag := &components.Agent{}

	// The spent charge drops to wander with the prey 100 units out, inside
	// the near band: the fresh heading points straight at it.
	dx, dy := DogStep(d, wd, nil, ag, 100, 100, 200, 100, DogChaseTarget{},
		nil, noBlocked(), layout, rng, 50, testDogParams(), testScentParams())
	if d.Mode != components.DogWander {
		t.Fatalf("expected wander after the spent charge, got %v", d.Mode)
	}
	if wd.Angle != 0 {
		t.Errorf("expected the heading snapped at the prey along +x, got %f", wd.Angle)
	}
	if math.Abs(dx-d.SpeedPatrol) > 1e-9 || math.Abs(dy) > 1e-9 {
		t.Errorf("expected (%f, 0) toward the prey, got (%f, %f)", d.SpeedPatrol, dx, dy)
	}
	if d.CooldownUntilMS != 50+testDogParams().CooldownMS {
		t.Errorf("expected the cooldown started, got %d", d.CooldownUntilMS)
	}
}

func TestDogStep_SpentChargeKeepsRandomHeadingForFarPrey(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layout := NewLayout(30, 22, 40)
	d := newTestDog(components.DogPlain)
	d.Mode = components.DogCharge
	d.DirX, d.DirY = 1, 0
	d.RemainingDist = 0
	wd := &components.Wander{}
	ag := &components.Agent{}

	// Prey 400 units out, beyond the near band: the post-charge heading
	// stays the rolled one instead of snapping at the prey.
	DogStep(d, wd, nil, ag, 100, 100, 500, 100, DogChaseTarget{},
		nil, noBlocked(), layout, rng, 50, testDogParams(), testScentParams())
	if d.Mode != components.DogWander {
		t.Fatalf("expected wander after the spent charge, got %v", d.Mode)
	}
	if math.Abs(wd.Angle) < 1e-9 {
		t.Error("heading snapped at a prey outside the near band")
	}
}

func TestDogStep_CooldownBlocksRecharge(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layout := NewLayout(30, 22, 40)
	d := newTestDog(components.DogPlain)
	d.CooldownUntilMS = 5000
	wd := &components.Wander{NextChangeMS: 100000}
	ag := &components.Agent{}

	DogStep(d, wd, nil, ag, 100, 100, 200, 100, DogChaseTarget{},
		nil, noBlocked(), layout, rng, 1000, testDogParams(), testScentParams())
	if d.Mode != components.DogWander {
		t.Errorf("expected no charge during the cooldown, got %v", d.Mode)
	}
}

func TestDogStep_PlainPackChaseAtPatrolSpeed(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layout := NewLayout(30, 22, 40)
	d := newTestDog(components.DogPlain)
	wd := &components.Wander{NextChangeMS: 100000}
	ag := &components.Agent{}

	// Prey far out of sight, a packmate close by: the plain dog chases it.
	dx, dy := DogStep(d, wd, nil, ag, 100, 100, 2000, 2000, DogChaseTarget{X: 150, Y: 100, OK: true},
		nil, noBlocked(), layout, rng, 0, testDogParams(), testScentParams())
	if d.Mode != components.DogChase {
		t.Fatalf("expected chase mode, got %v", d.Mode)
	}
	if math.Abs(dx-d.SpeedPatrol) > 1e-9 || math.Abs(dy) > 1e-9 {
		t.Errorf("expected (%f, 0) toward the packmate, got (%f, %f)", d.SpeedPatrol, dx, dy)
	}
}

func TestDogStep_ScentHoundFollowsTrailNotPack(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	layout := NewLayout(30, 22, 40)
	d := newTestDog(components.DogScentHound)
	wd := &components.Wander{NextChangeMS: 100000}
	ag := &components.Agent{}
	var sc components.Scent

	trail := []Footprint{{X: 30, Y: 0, TimeMS: 900}}

	// Prey out of sight; a packmate in range is ignored by the hound,
	// which runs the footprint trail at the boosted patrol speed.
	dx, dy := DogStep(d, wd, &sc, ag, 0, 0, 2000, 2000, DogChaseTarget{X: 50, Y: 0, OK: true},
		trail, noBlocked(), layout, rng, 1000, testDogParams(), testScentParams())
	if d.Mode == components.DogChase {
		t.Fatal("a scent hound never pack-chases")
	}
	if !sc.HasTarget {
		t.Fatal("expected the hound locked on the footprint")
	}
	want := d.SpeedPatrol * testDogParams().FollowSpeedMult
	if math.Abs(dx-want) > 1e-9 || math.Abs(dy) > 1e-9 {
		t.Errorf("expected (%f, 0) along the trail, got (%f, %f)", want, dx, dy)
	}
}

func TestDogWanderBounce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := newTestDog(components.DogPlain)
	wd := &components.Wander{Angle: 0}

	// No hit: nothing changes.
	DogWanderBounce(d, wd, rng, 0, testDogParams(), false)
	if wd.Angle != 0 {
		t.Errorf("expected the heading untouched, got %f", wd.Angle)
	}

	// Hit while wandering reverses the heading.
	DogWanderBounce(d, wd, rng, 0, testDogParams(), true)
	if math.Abs(wd.Angle-math.Pi) > 1e-9 {
		t.Errorf("expected the heading reversed, got %f", wd.Angle)
	}

	// Hit while charging aborts into cooldown.
	d.Mode = components.DogCharge
	DogWanderBounce(d, wd, rng, 100, testDogParams(), true)
	if d.Mode != components.DogWander {
		t.Errorf("expected the charge aborted, got %v", d.Mode)
	}
	if d.CooldownUntilMS != 100+testDogParams().CooldownMS {
		t.Errorf("expected the cooldown set, got %d", d.CooldownUntilMS)
	}
}

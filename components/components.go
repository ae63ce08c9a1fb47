// Package components defines ECS components for the horde simulation.
package components

// Kind enumerates the closed set of agent movement variants.
type Kind uint8

const (
	KindNormal Kind = iota
	KindWallHugger
	KindTracker
	KindLineHead
	KindDog
)

func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindWallHugger:
		return "wallhugger"
	case KindTracker:
		return "tracker"
	case KindLineHead:
		return "line_head"
	case KindDog:
		return "dog"
	}
	return "unknown"
}

// Position represents an entity's world position in field units.
type Position struct {
	X, Y float64
}

// Agent holds identity and per-tick movement state shared by every kind.
type Agent struct {
	ID        uint32
	Kind      Kind
	Radius    float64
	BaseSpeed float64 // speed at full health, units per tick
	Speed     float64 // BaseSpeed scaled by the vitals decay ratio
	Facing    float64 // radians, last committed heading

	Dead bool
}

// Vitals tracks health, decay and status effects.
type Vitals struct {
	Health    int
	MaxHealth int

	// Fractional decay accumulates here until it amounts to a whole
	// health point.
	DecayCarry float64

	Carbonized bool

	// Paralysis holds the agent in place until the timestamp passes.
	// Timestamps only ever extend.
	ParalyzedUntilMS int64
	ParalyzeTicks    int // ticks spent paralyzed, drives periodic damage
}

// Wander is the default roaming state. Every agent carries one; kinds with
// richer strategies fall back to it when their strategy yields nothing.
type Wander struct {
	Angle        float64
	IntervalMS   int64 // base resample interval before jitter
	NextChangeMS int64
}

// WallHugSide labels which flank the hugged wall is on. Zero means no
// wall is currently held.
type WallHugSide int8

const (
	SideNone  WallHugSide = 0
	SideLeft  WallHugSide = 1
	SideRight WallHugSide = -1
)

// stuckWindow is the number of recent positions the wall-hug stuck
// detector keeps.
const stuckWindow = 20

// WallHug is the per-agent state of the wall-hug controller.
type WallHug struct {
	Side        WallHugSide
	Angle       float64 // current hug heading, radians
	SideHasWall bool    // side probe saw the wall last tick
	HasSeenWall bool
	LastSeenMS  int64 // last time any probe had contact

	// Rolling trace of recent positions for the stuck detector.
	Trace    [stuckWindow]Position
	TraceLen int
	traceAt  int
}

// PushTrace records a committed position into the stuck-detector window.
func (w *WallHug) PushTrace(p Position) {
	w.Trace[w.traceAt] = p
	w.traceAt = (w.traceAt + 1) % stuckWindow
	if w.TraceLen < stuckWindow {
		w.TraceLen++
	}
}

// TraceSpread returns the maximum pairwise squared distance between
// positions in the recorded trace. A full window with a small spread
// means the agent is grinding in place.
func (w *WallHug) TraceSpread() float64 {
	var maxSq float64
	for i := 0; i < w.TraceLen; i++ {
		for j := i + 1; j < w.TraceLen; j++ {
			dx := w.Trace[i].X - w.Trace[j].X
			dy := w.Trace[i].Y - w.Trace[j].Y
			if d := dx*dx + dy*dy; d > maxSq {
				maxSq = d
			}
		}
	}
	return maxSq
}

// ResetTrace clears the stuck-detector window.
func (w *WallHug) ResetTrace() {
	w.TraceLen = 0
	w.traceAt = 0
}

// Scent is the per-agent state of the footprint tracker. Optional
// timestamps pair a Has flag with the value.
type Scent struct {
	HasTarget  bool
	TargetX    float64
	TargetY    float64
	TargetAtMS int64 // timestamp of the footprint being tracked

	LastScanMS int64

	// Progress clock: reset whenever a newer eligible footprint shows
	// up; running out marks the trail lost.
	HasProgress bool
	ProgressMS  int64

	// Footprints at or before IgnoreAtMS stay ignored after a lost trail.
	HasIgnore  bool
	IgnoreAtMS int64

	// No footprint older than RelockAtMS is accepted until one at or
	// past it clears the window.
	HasRelock  bool
	RelockAtMS int64

	// Crowd control: set for one tracker per crowded heading bucket,
	// forcing it off the trail for a scan.
	ForceWander bool
}

// Lineformer links a head or marker agent to its train.
type Lineformer struct {
	TrainID uint32

	// Heads only: chase target assigned by the train manager pre-pass.
	HasTarget bool
	TargetID  uint32
	TargetX   float64
	TargetY   float64
}

// DogVariant selects the dog's hunting style.
type DogVariant uint8

const (
	DogPlain DogVariant = iota
	DogScentHound
)

// DogMode is the dog state machine's current mode.
type DogMode uint8

const (
	DogWander DogMode = iota
	DogCharge
	DogChase
)

func (m DogMode) String() string {
	switch m {
	case DogWander:
		return "wander"
	case DogCharge:
		return "charge"
	case DogChase:
		return "chase"
	}
	return "unknown"
}

// Dog is the per-agent state of the dog strategy.
type Dog struct {
	Variant DogVariant
	Mode    DogMode

	// Charge execution: a fixed direction and a pre-allocated distance,
	// consumed after the wind-up frames run out.
	WindupLeft    int
	DirX, DirY    float64
	ChargeX       float64
	ChargeY       float64
	RemainingDist float64

	CooldownUntilMS int64
	SpeedPatrol     float64
	SpeedAssault    float64

	// Bite cadence: rolls over every bite interval while packmates are
	// within reach.
	BiteCounter int
}

// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Agents     AgentsConfig     `yaml:"agents"`
	Decay      DecayConfig      `yaml:"decay"`
	Wander     WanderConfig     `yaml:"wander"`
	WallHug    WallHugConfig    `yaml:"wall_hug"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Dog        DogConfig        `yaml:"dog"`
	Lineformer LineformerConfig `yaml:"lineformer"`
	Separation SeparationConfig `yaml:"separation"`
	Walls      WallsConfig      `yaml:"walls"`
	Hazard     HazardConfig     `yaml:"hazard"`
	Footprints FootprintsConfig `yaml:"footprints"`
	Prey       PreyConfig       `yaml:"prey"`
	Spawn      SpawnConfig      `yaml:"spawn"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds the field grid dimensions and tick rate.
type WorldConfig struct {
	CellSize     int `yaml:"cell_size"`
	GridCols     int `yaml:"grid_cols"`
	GridRows     int `yaml:"grid_rows"`
	FPS          int `yaml:"fps"`
	PitfallCount int `yaml:"pitfall_count"`
	BeamSpacing  int `yaml:"beam_spacing"` // cells between support beams, 0 disables
}

// AgentsConfig holds shared agent parameters.
type AgentsConfig struct {
	Radius     float64 `yaml:"radius"`
	BaseSpeed  float64 `yaml:"base_speed"`
	FastSpeed  float64 `yaml:"fast_speed"` // upper bound for randomized spawns
	MaxHealth  int     `yaml:"max_health"`
	MaxCount   int     `yaml:"max_count"`
	SightRange float64 `yaml:"sight_range"`
}

// DecayConfig holds passive rot parameters.
type DecayConfig struct {
	DurationFrames  float64 `yaml:"duration_frames"`
	MinSpeedRatio   float64 `yaml:"min_speed_ratio"`
	CarbonizeFrames float64 `yaml:"carbonize_frames"`
}

// WanderConfig holds roaming parameters.
type WanderConfig struct {
	IntervalMS int64 `yaml:"interval_ms"`
	JitterMS   int64 `yaml:"jitter_ms"`
}

// WallHugConfig holds the wall-hug controller parameters.
type WallHugConfig struct {
	SensorDistance float64 `yaml:"sensor_distance"`
	ProbeAngleDeg  float64 `yaml:"probe_angle_deg"`
	ProbeStep      float64 `yaml:"probe_step"`
	TargetGap      float64 `yaml:"target_gap"`
	LostWallMS     int64   `yaml:"lost_wall_ms"`
	StuckDistSq    float64 `yaml:"stuck_dist_sq"`
}

// TrackerConfig holds scent tracking parameters.
type TrackerConfig struct {
	SightRange       float64 `yaml:"sight_range"`
	ScanIntervalMS   int64   `yaml:"scan_interval_ms"`
	LostTimeoutMS    int64   `yaml:"lost_timeout_ms"`
	ScentRadius      float64 `yaml:"scent_radius"`
	FarScentRadius   float64 `yaml:"far_scent_radius"`
	NewerFootprintMS int64   `yaml:"newer_footprint_ms"`
	RelockDelayMS    int64   `yaml:"relock_delay_ms"`
	TopK             int     `yaml:"top_k"`
	CrowdBandWidth   float64 `yaml:"crowd_band_width"`
	CrowdCount       int     `yaml:"crowd_count"`
}

// DogConfig holds the dog strategy parameters.
type DogConfig struct {
	SightRange         float64 `yaml:"sight_range"`
	NearRange          float64 `yaml:"near_range"`
	PackChaseRange     float64 `yaml:"pack_chase_range"`
	WanderIntervalMS   int64   `yaml:"wander_interval_ms"`
	WindupFrames       int     `yaml:"windup_frames"`
	CooldownMS         int64   `yaml:"cooldown_ms"`
	ChargeOffset       float64 `yaml:"charge_offset"`
	ChargeOvershoot    float64 `yaml:"charge_overshoot"`
	PatrolSpeed        float64 `yaml:"patrol_speed"`
	AssaultSpeed       float64 `yaml:"assault_speed"`
	FollowSpeedMult    float64 `yaml:"follow_speed_multiplier"`
	BiteIntervalFrames int     `yaml:"bite_interval_frames"`
	BiteDamage         int     `yaml:"bite_damage"`
	DecayFrames        float64 `yaml:"decay_frames"`
	DecayMinSpeedRatio float64 `yaml:"decay_min_speed_ratio"`
}

// LineformerConfig holds convoy parameters.
type LineformerConfig struct {
	JoinRadius         float64 `yaml:"join_radius"`
	MergeSnap          float64 `yaml:"merge_snap"`
	MarkerSpacing      float64 `yaml:"marker_spacing"`
	MinStepDistance    float64 `yaml:"min_step_distance"`
	DissolveIntervalMS int64   `yaml:"dissolve_interval_ms"`
	SpeedMultiplier    float64 `yaml:"speed_multiplier"`
}

// SeparationConfig holds push-apart parameters.
type SeparationConfig struct {
	Distance float64 `yaml:"distance"`
}

// WallsConfig holds destructible wall parameters.
type WallsConfig struct {
	Health      int     `yaml:"health"`
	AgentDamage int     `yaml:"agent_damage"`
	FillRatio   float64 `yaml:"fill_ratio"` // share of interior cells seeded with walls
	BevelRatio  float64 `yaml:"bevel_ratio"`
}

// HazardConfig holds electrified floor parameters.
type HazardConfig struct {
	CellCount         int   `yaml:"cell_count"`
	ParalyzeMS        int64 `yaml:"paralyze_ms"`
	DamageEveryFrames int   `yaml:"damage_every_frames"`
	Damage            int   `yaml:"damage"`
}

// FootprintsConfig holds prey scent trail parameters.
type FootprintsConfig struct {
	StepDistance float64 `yaml:"step_distance"`
	MaxCount     int     `yaml:"max_count"`
}

// PreyConfig holds the scripted prey parameters.
type PreyConfig struct {
	Speed            float64 `yaml:"speed"`
	WaypointMargin   float64 `yaml:"waypoint_margin"`
	WaypointHoldDist float64 `yaml:"waypoint_hold_dist"`
}

// SpawnConfig holds population seeding parameters.
type SpawnConfig struct {
	DelayMS int64 `yaml:"delay_ms"`
	Initial int   `yaml:"initial"`

	// Kind weights for randomized spawning.
	WeightNormal     float64 `yaml:"weight_normal"`
	WeightWallHugger float64 `yaml:"weight_wallhugger"`
	WeightTracker    float64 `yaml:"weight_tracker"`
	WeightLineformer float64 `yaml:"weight_lineformer"`
	WeightDog        float64 `yaml:"weight_dog"`
	TrackerDogRatio  float64 `yaml:"tracker_dog_ratio"` // share of dogs spawned as scent hounds
}

// TelemetryConfig holds stats output parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // seconds per stats window
}

// DerivedConfig holds values computed from the loaded config.
type DerivedConfig struct {
	TickMS      int64   // simulated milliseconds per tick
	FieldWidth  float64 // grid width in field units
	FieldHeight float64
	WindowTicks int // ticks per telemetry stats window
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	fps := c.World.FPS
	if fps <= 0 {
		fps = 60
	}
	c.Derived.TickMS = int64(1000 / fps)
	c.Derived.FieldWidth = float64(c.World.GridCols * c.World.CellSize)
	c.Derived.FieldHeight = float64(c.World.GridRows * c.World.CellSize)
	c.Derived.WindowTicks = int(c.Telemetry.StatsWindow * float64(fps))
	if c.Derived.WindowTicks < 1 {
		c.Derived.WindowTicks = 1
	}
}

// WriteYAML writes the current configuration to a YAML file.
// Used to snapshot the effective config alongside experiment output.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

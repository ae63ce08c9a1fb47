// Package sim wires the ECS world, the field layout and the per-kind
// movement systems into a fixed-step simulation.
package sim

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/horde/components"
	"github.com/pthm-cable/horde/config"
	"github.com/pthm-cable/horde/systems"
	"github.com/pthm-cable/horde/telemetry"
)

// Options configures a simulation run.
type Options struct {
	Seed           int64
	LogStats       bool
	OutputDir      string
	Headless       bool
	StepsPerUpdate int
}

// agentEntry tracks a live agent outside the ECS for id lookups and
// ordered iteration.
type agentEntry struct {
	entity ecs.Entity
	kind   components.Kind
}

// Simulation owns the world state and advances it one fixed tick at a
// time.
type Simulation struct {
	cfg  *config.Config
	opts Options
	rng  *rand.Rand

	world *ecs.World

	normalMapper  *ecs.Map4[components.Position, components.Agent, components.Vitals, components.Wander]
	hugMapper     *ecs.Map5[components.Position, components.Agent, components.Vitals, components.Wander, components.WallHug]
	trackerMapper *ecs.Map5[components.Position, components.Agent, components.Vitals, components.Wander, components.Scent]
	lineMapper    *ecs.Map5[components.Position, components.Agent, components.Vitals, components.Wander, components.Lineformer]
	dogMapper     *ecs.Map6[components.Position, components.Agent, components.Vitals, components.Wander, components.Scent, components.Dog]

	agentFilter *ecs.Filter4[components.Position, components.Agent, components.Vitals, components.Wander]

	posMap    *ecs.Map1[components.Position]
	agentMap  *ecs.Map1[components.Agent]
	vitalsMap *ecs.Map1[components.Vitals]
	wanderMap *ecs.Map1[components.Wander]
	hugMap    *ecs.Map1[components.WallHug]
	scentMap  *ecs.Map1[components.Scent]
	lineMap   *ecs.Map1[components.Lineformer]
	dogMap    *ecs.Map1[components.Dog]

	layout *systems.Layout
	walls  *systems.WallSet
	grid   *systems.SpatialGrid
	trains *systems.TrainManager
	trail  *systems.Trail
	prey   *Prey

	// Scent LOS cells, refreshed whenever the wall index rebuilds.
	blockedScent map[systems.Cell]struct{}

	byID        map[uint32]agentEntry
	nextAgentID uint32
	aliveCount  int

	tick  int
	nowMS int64

	nextSpawnMS int64
	nextWallID  uint32

	collector *telemetry.Collector
	output    *telemetry.OutputManager
	events    []telemetry.Event
	logger    *slog.Logger

	wanderParams systems.WanderParams
	hugParams    systems.WallHugParams
	scentParams  systems.ScentParams
	dogParams    systems.DogParams
	sepParams    systems.SeparationParams
	vitalsParams systems.VitalsParams
	dogVitals    systems.VitalsParams
}

// New creates a simulation from the global config and the given options.
func New(opts Options) (*Simulation, error) {
	cfg := config.Cfg()

	if opts.StepsPerUpdate < 1 {
		opts.StepsPerUpdate = 1
	}

	world := ecs.NewWorld()

	s := &Simulation{
		cfg:  cfg,
		opts: opts,
		rng:  rand.New(rand.NewSource(opts.Seed)),

		world: world,

		normalMapper: ecs.NewMap4[
			components.Position,
			components.Agent,
			components.Vitals,
			components.Wander,
		](world),
		hugMapper: ecs.NewMap5[
			components.Position,
			components.Agent,
			components.Vitals,
			components.Wander,
			components.WallHug,
		](world),
		trackerMapper: ecs.NewMap5[
			components.Position,
			components.Agent,
			components.Vitals,
			components.Wander,
			components.Scent,
		](world),
		lineMapper: ecs.NewMap5[
			components.Position,
			components.Agent,
			components.Vitals,
			components.Wander,
			components.Lineformer,
		](world),
		dogMapper: ecs.NewMap6[
			components.Position,
			components.Agent,
			components.Vitals,
			components.Wander,
			components.Scent,
			components.Dog,
		](world),
		agentFilter: ecs.NewFilter4[
			components.Position,
			components.Agent,
			components.Vitals,
			components.Wander,
		](world),

		posMap:    ecs.NewMap1[components.Position](world),
		agentMap:  ecs.NewMap1[components.Agent](world),
		vitalsMap: ecs.NewMap1[components.Vitals](world),
		wanderMap: ecs.NewMap1[components.Wander](world),
		hugMap:    ecs.NewMap1[components.WallHug](world),
		scentMap:  ecs.NewMap1[components.Scent](world),
		lineMap:   ecs.NewMap1[components.Lineformer](world),
		dogMap:    ecs.NewMap1[components.Dog](world),

		byID:        make(map[uint32]agentEntry),
		nextAgentID: 1,
		nextWallID:  1,
		logger:      slog.Default(),
	}

	s.wanderParams = systems.WanderParams{JitterMS: cfg.Wander.JitterMS}
	s.hugParams = systems.WallHugParams{
		SensorDistance: cfg.WallHug.SensorDistance,
		ProbeAngleDeg:  cfg.WallHug.ProbeAngleDeg,
		ProbeStep:      cfg.WallHug.ProbeStep,
		TargetGap:      cfg.WallHug.TargetGap,
		LostWallMS:     cfg.WallHug.LostWallMS,
		StuckDistSq:    cfg.WallHug.StuckDistSq,
	}
	s.scentParams = systems.ScentParams{
		ScanIntervalMS:   cfg.Tracker.ScanIntervalMS,
		LostTimeoutMS:    cfg.Tracker.LostTimeoutMS,
		ScentRadius:      cfg.Tracker.ScentRadius,
		FarScentRadius:   cfg.Tracker.FarScentRadius,
		NewerFootprintMS: cfg.Tracker.NewerFootprintMS,
		RelockDelayMS:    cfg.Tracker.RelockDelayMS,
		TopK:             cfg.Tracker.TopK,
		FootprintStep:    cfg.Footprints.StepDistance,
	}
	s.dogParams = systems.DogParams{
		SightRange:       cfg.Dog.SightRange,
		NearRange:        cfg.Dog.NearRange,
		PackChaseRange:   cfg.Dog.PackChaseRange,
		WanderIntervalMS: cfg.Dog.WanderIntervalMS,
		WindupFrames:     cfg.Dog.WindupFrames,
		CooldownMS:       cfg.Dog.CooldownMS,
		ChargeOffset:     cfg.Dog.ChargeOffset,
		ChargeOvershoot:  cfg.Dog.ChargeOvershoot,
		FollowSpeedMult:  cfg.Dog.FollowSpeedMult,
	}
	s.sepParams = systems.SeparationParams{Distance: cfg.Separation.Distance}
	s.vitalsParams = systems.VitalsParams{
		DecayDurationFrames:  cfg.Decay.DurationFrames,
		DecayMinSpeedRatio:   cfg.Decay.MinSpeedRatio,
		CarbonizeDecayFrames: cfg.Decay.CarbonizeFrames,
		ParalyzeDurationMS:   cfg.Hazard.ParalyzeMS,
		ParalyzeDamageEvery:  cfg.Hazard.DamageEveryFrames,
		ParalyzeDamage:       cfg.Hazard.Damage,
	}
	s.dogVitals = s.vitalsParams
	s.dogVitals.DecayDurationFrames = cfg.Dog.DecayFrames
	s.dogVitals.DecayMinSpeedRatio = cfg.Dog.DecayMinSpeedRatio

	s.trains = systems.NewTrainManager(systems.TrainParams{
		JoinRadius:         cfg.Lineformer.JoinRadius,
		MergeApproach:      cfg.Lineformer.JoinRadius,
		MergeSnap:          cfg.Lineformer.MergeSnap,
		MarkerSpacing:      cfg.Lineformer.MarkerSpacing,
		MinStepDistance:    cfg.Lineformer.MinStepDistance,
		DissolveIntervalMS: cfg.Lineformer.DissolveIntervalMS,
	})
	s.trail = systems.NewTrail(cfg.Footprints.StepDistance, cfg.Footprints.MaxCount)

	s.buildField()
	s.grid = systems.NewSpatialGrid(cfg.Derived.FieldWidth, cfg.Derived.FieldHeight, float64(cfg.World.CellSize))
	s.prey = NewPrey(cfg.Derived.FieldWidth/2, cfg.Derived.FieldHeight/2, cfg)

	s.collector = telemetry.NewCollector(cfg.Derived.WindowTicks, cfg.Derived.TickMS)

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("initializing output: %w", err)
	}
	s.output = om
	if err := s.output.WriteConfig(cfg); err != nil {
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	s.nextSpawnMS = cfg.Spawn.DelayMS
	s.spawnInitialPopulation()

	return s, nil
}

// buildField lays out the grid: the outer ring, support beams, interior
// walls with random bevels, pitfalls and hazard cells.
func (s *Simulation) buildField() {
	cfg := s.cfg
	s.layout = systems.NewLayout(cfg.World.GridCols, cfg.World.GridRows, cfg.World.CellSize)
	s.layout.AddOuterRing()
	s.walls = systems.NewWallSet(s.layout)

	for c := range s.layout.Outer {
		s.addWall(c, [4]bool{}, cfg.Walls.Health)
	}

	// Support beams carry far more health than regular walls so the ring
	// of the field keeps its shape long after the horde starts chewing.
	if cfg.World.BeamSpacing > 0 {
		for col := cfg.World.BeamSpacing; col < cfg.World.GridCols-1; col += cfg.World.BeamSpacing {
			for row := cfg.World.BeamSpacing; row < cfg.World.GridRows-1; row += cfg.World.BeamSpacing {
				c := systems.Cell{Col: col, Row: row}
				if s.cellNearCenter(c, 2) {
					continue
				}
				s.layout.Beams[c] = struct{}{}
				s.addWall(c, [4]bool{}, cfg.Walls.Health*20)
			}
		}
	}

	for col := 1; col < cfg.World.GridCols-1; col++ {
		for row := 1; row < cfg.World.GridRows-1; row++ {
			c := systems.Cell{Col: col, Row: row}
			if _, beam := s.layout.Beams[c]; beam {
				continue
			}
			if s.cellNearCenter(c, 2) {
				continue
			}
			if s.rng.Float64() >= cfg.Walls.FillRatio {
				continue
			}
			var bevel [4]bool
			for i := range bevel {
				bevel[i] = s.rng.Float64() < cfg.Walls.BevelRatio
			}
			s.addWall(c, bevel, cfg.Walls.Health)
		}
	}

	s.placeFloorCells(s.layout.Pitfalls, cfg.World.PitfallCount)
	s.placeFloorCells(s.layout.Hazards, cfg.Hazard.CellCount)

	s.walls.RebuildIfDirty()
	s.blockedScent = systems.BlockedScentCells(s.layout, s.walls.Cells())
}

func (s *Simulation) cellNearCenter(c systems.Cell, span int) bool {
	midCol := s.cfg.World.GridCols / 2
	midRow := s.cfg.World.GridRows / 2
	dc := c.Col - midCol
	dr := c.Row - midRow
	if dc < 0 {
		dc = -dc
	}
	if dr < 0 {
		dr = -dr
	}
	return dc <= span && dr <= span
}

func (s *Simulation) addWall(c systems.Cell, bevel [4]bool, health int) {
	cell := float64(s.cfg.World.CellSize)
	w := systems.NewWall(s.nextWallID, systems.Rect{
		X: float64(c.Col) * cell,
		Y: float64(c.Row) * cell,
		W: cell,
		H: cell,
	}, bevel, health)
	s.nextWallID++
	s.walls.Add(w)
}

// placeFloorCells scatters count special floor cells over empty interior
// cells.
func (s *Simulation) placeFloorCells(dst map[systems.Cell]struct{}, count int) {
	cfg := s.cfg
	for placed, tries := 0, 0; placed < count && tries < count*40; tries++ {
		c := systems.Cell{
			Col: 1 + s.rng.Intn(cfg.World.GridCols-2),
			Row: 1 + s.rng.Intn(cfg.World.GridRows-2),
		}
		if s.cellNearCenter(c, 2) {
			continue
		}
		if _, taken := s.layout.Beams[c]; taken {
			continue
		}
		if _, taken := s.layout.Pitfalls[c]; taken {
			continue
		}
		if _, taken := s.layout.Hazards[c]; taken {
			continue
		}
		dst[c] = struct{}{}
		placed++
	}
}

func (s *Simulation) spawnInitialPopulation() {
	for i := 0; i < s.cfg.Spawn.Initial; i++ {
		x, y, ok := s.randomSpawnPoint()
		if !ok {
			break
		}
		s.spawnWeighted(x, y)
	}
}

// randomSpawnPoint picks the center of a random interior cell free of
// walls and special floors.
func (s *Simulation) randomSpawnPoint() (float64, float64, bool) {
	cfg := s.cfg
	wallCells := s.walls.Cells()
	for tries := 0; tries < 80; tries++ {
		c := systems.Cell{
			Col: 1 + s.rng.Intn(cfg.World.GridCols-2),
			Row: 1 + s.rng.Intn(cfg.World.GridRows-2),
		}
		if _, taken := wallCells[c]; taken {
			continue
		}
		if _, taken := s.layout.Pitfalls[c]; taken {
			continue
		}
		if _, taken := s.layout.Hazards[c]; taken {
			continue
		}
		x, y := s.layout.CellCenter(c)
		return x, y, true
	}
	return 0, 0, false
}

func (s *Simulation) spawnWeighted(x, y float64) {
	cfg := s.cfg
	weights := []float64{
		cfg.Spawn.WeightNormal,
		cfg.Spawn.WeightWallHugger,
		cfg.Spawn.WeightTracker,
		cfg.Spawn.WeightLineformer,
		cfg.Spawn.WeightDog,
	}
	switch weightedIndex(s.rng, weights) {
	case 0:
		s.spawnNormal(x, y)
	case 1:
		s.spawnWallHugger(x, y)
	case 2:
		s.spawnTracker(x, y)
	case 3:
		s.spawnLineformer(x, y)
	case 4:
		s.spawnDog(x, y)
	}
}

func weightedIndex(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return 0
	}
	roll := rng.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		roll -= w
		if roll < 0 {
			return i
		}
	}
	return len(weights) - 1
}

func (s *Simulation) baseComponents(x, y, speed float64, kind components.Kind) (components.Position, components.Agent, components.Vitals, components.Wander) {
	cfg := s.cfg
	id := s.nextAgentID
	s.nextAgentID++
	pos := components.Position{X: x, Y: y}
	ag := components.Agent{
		ID:        id,
		Kind:      kind,
		Radius:    cfg.Agents.Radius,
		BaseSpeed: speed,
		Speed:     speed,
		Facing:    s.rng.Float64() * 2 * math.Pi,
	}
	vit := components.Vitals{Health: cfg.Agents.MaxHealth, MaxHealth: cfg.Agents.MaxHealth}
	wd := components.Wander{
		Angle:        s.rng.Float64() * 2 * math.Pi,
		IntervalMS:   cfg.Wander.IntervalMS,
		NextChangeMS: s.nowMS,
	}
	return pos, ag, vit, wd
}

func (s *Simulation) rollSpeed() float64 {
	cfg := s.cfg
	return cfg.Agents.BaseSpeed + s.rng.Float64()*(cfg.Agents.FastSpeed-cfg.Agents.BaseSpeed)
}

func (s *Simulation) registerSpawn(id uint32, entity ecs.Entity, kind components.Kind, x, y float64) {
	s.byID[id] = agentEntry{entity: entity, kind: kind}
	s.aliveCount++
	s.collector.RecordSpawn()
	s.events = append(s.events, telemetry.NewSpawnEvent(s.tick, id, kind, x, y))
}

func (s *Simulation) spawnNormal(x, y float64) uint32 {
	pos, ag, vit, wd := s.baseComponents(x, y, s.rollSpeed(), components.KindNormal)
	entity := s.normalMapper.NewEntity(&pos, &ag, &vit, &wd)
	s.registerSpawn(ag.ID, entity, ag.Kind, x, y)
	return ag.ID
}

func (s *Simulation) spawnWallHugger(x, y float64) uint32 {
	pos, ag, vit, wd := s.baseComponents(x, y, s.rollSpeed(), components.KindWallHugger)
	hug := components.WallHug{Angle: wd.Angle}
	entity := s.hugMapper.NewEntity(&pos, &ag, &vit, &wd, &hug)
	s.registerSpawn(ag.ID, entity, ag.Kind, x, y)
	return ag.ID
}

func (s *Simulation) spawnTracker(x, y float64) uint32 {
	pos, ag, vit, wd := s.baseComponents(x, y, s.rollSpeed(), components.KindTracker)
	sc := components.Scent{}
	entity := s.trackerMapper.NewEntity(&pos, &ag, &vit, &wd, &sc)
	s.registerSpawn(ag.ID, entity, ag.Kind, x, y)
	return ag.ID
}

// spawnLineformer either joins an existing train as a tail marker or
// creates a new head. Joining consumes the spawn without creating an
// agent.
func (s *Simulation) spawnLineformer(x, y float64) {
	trainID, hasTrain, targetID, hasTarget := s.trains.ResolveSpawnTarget(s.trainTargets(), x, y)
	if hasTrain {
		s.trains.AppendMarker(trainID, x, y)
		return
	}
	id, ok := s.SpawnLineHead(x, y)
	if !ok {
		return
	}
	entry := s.byID[id]
	line := s.lineMap.Get(entry.entity)
	line.TrainID = s.trains.CreateTrain(id, x, y, targetID, hasTarget, s.nowMS)
}

// SpawnLineHead creates a bare lineformer head agent. Part of the train
// manager's host interface.
func (s *Simulation) SpawnLineHead(x, y float64) (uint32, bool) {
	if s.AtPopulationCap() {
		return 0, false
	}
	cfg := s.cfg
	speed := s.rollSpeed() * cfg.Lineformer.SpeedMultiplier
	if limit := cfg.Prey.Speed - 0.05; speed > limit {
		speed = limit
	}
	pos, ag, vit, wd := s.baseComponents(x, y, speed, components.KindLineHead)
	line := components.Lineformer{}
	entity := s.lineMapper.NewEntity(&pos, &ag, &vit, &wd, &line)
	s.registerSpawn(ag.ID, entity, ag.Kind, x, y)
	return ag.ID, true
}

func (s *Simulation) spawnDog(x, y float64) uint32 {
	cfg := s.cfg
	pos, ag, vit, wd := s.baseComponents(x, y, cfg.Dog.PatrolSpeed, components.KindDog)
	wd.IntervalMS = cfg.Dog.WanderIntervalMS
	variant := components.DogPlain
	if s.rng.Float64() < cfg.Spawn.TrackerDogRatio {
		variant = components.DogScentHound
	}
	sc := components.Scent{}
	dog := components.Dog{
		Variant:      variant,
		Mode:         components.DogWander,
		SpeedPatrol:  cfg.Dog.PatrolSpeed,
		SpeedAssault: cfg.Dog.AssaultSpeed,
	}
	entity := s.dogMapper.NewEntity(&pos, &ag, &vit, &wd, &sc, &dog)
	s.registerSpawn(ag.ID, entity, ag.Kind, x, y)
	return ag.ID
}

// AtPopulationCap reports whether the field holds its maximum population.
// Part of the train manager's host interface.
func (s *Simulation) AtPopulationCap() bool {
	return s.aliveCount >= s.cfg.Agents.MaxCount
}

// RemoveAgent deletes an agent from the world. Part of the train
// manager's host interface.
func (s *Simulation) RemoveAgent(id uint32) {
	entry, ok := s.byID[id]
	if !ok {
		return
	}
	switch entry.kind {
	case components.KindWallHugger:
		s.hugMapper.Remove(entry.entity)
	case components.KindTracker:
		s.trackerMapper.Remove(entry.entity)
	case components.KindLineHead:
		s.lineMapper.Remove(entry.entity)
	case components.KindDog:
		s.dogMapper.Remove(entry.entity)
	default:
		s.normalMapper.Remove(entry.entity)
	}
	delete(s.byID, id)
	s.aliveCount--
}

// trainTargets collects living non-lineformer agents as join candidates.
func (s *Simulation) trainTargets() []systems.TrainAgent {
	targets := make([]systems.TrainAgent, 0, s.aliveCount)
	query := s.agentFilter.Query()
	for query.Next() {
		pos, ag, _, _ := query.Get()
		if ag.Dead || ag.Kind == components.KindLineHead || ag.Kind == components.KindDog {
			continue
		}
		targets = append(targets, systems.TrainAgent{ID: ag.ID, X: pos.X, Y: pos.Y})
	}
	return targets
}

// trainHeads collects living lineformer heads keyed by agent id.
func (s *Simulation) trainHeads() map[uint32]systems.TrainAgent {
	heads := make(map[uint32]systems.TrainAgent)
	query := s.agentFilter.Query()
	for query.Next() {
		pos, ag, _, _ := query.Get()
		if ag.Dead || ag.Kind != components.KindLineHead {
			continue
		}
		heads[ag.ID] = systems.TrainAgent{ID: ag.ID, X: pos.X, Y: pos.Y}
	}
	return heads
}

// Tick returns the current tick count.
func (s *Simulation) Tick() int { return s.tick }

// NowMS returns the simulated clock in milliseconds.
func (s *Simulation) NowMS() int64 { return s.nowMS }

// Population returns the live agent count.
func (s *Simulation) Population() int { return s.aliveCount }

// Trains exposes the train manager for rendering.
func (s *Simulation) Trains() *systems.TrainManager { return s.trains }

// Walls exposes the wall set for rendering.
func (s *Simulation) Walls() *systems.WallSet { return s.walls }

// Layout exposes the field layout for rendering.
func (s *Simulation) Layout() *systems.Layout { return s.layout }

// PreyPosition returns the prey's current position.
func (s *Simulation) PreyPosition() (float64, float64) { return s.prey.X, s.prey.Y }

// Footprints returns the prey's scent trail, oldest first.
func (s *Simulation) Footprints() []systems.Footprint { return s.trail.Prints() }

// Close flushes telemetry output.
func (s *Simulation) Close() error {
	if err := s.flushEvents(); err != nil {
		return err
	}
	return s.output.Close()
}

func (s *Simulation) flushEvents() error {
	if len(s.events) == 0 {
		return nil
	}
	err := s.output.WriteEvents(s.events)
	s.events = s.events[:0]
	return err
}

// populationSnapshot counts live agents per kind.
func (s *Simulation) populationSnapshot() telemetry.PopulationSnapshot {
	var snap telemetry.PopulationSnapshot
	query := s.agentFilter.Query()
	for query.Next() {
		_, ag, _, _ := query.Get()
		if ag.Dead {
			continue
		}
		switch ag.Kind {
		case components.KindNormal:
			snap.Normal++
		case components.KindWallHugger:
			snap.WallHuggers++
		case components.KindTracker:
			snap.Trackers++
		case components.KindLineHead:
			snap.LineHeads++
		case components.KindDog:
			snap.Dogs++
		}
	}
	return snap
}

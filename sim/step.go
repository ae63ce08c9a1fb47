package sim

import (
	"math"
	"sort"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/horde/components"
	"github.com/pthm-cable/horde/systems"
	"github.com/pthm-cable/horde/telemetry"
)

// stepRef is one agent scheduled for the ordered per-tick pass.
type stepRef struct {
	entity ecs.Entity
	id     uint32
	x      float64
}

// Update advances the configured number of ticks per frame.
func (s *Simulation) Update() {
	for i := 0; i < s.opts.StepsPerUpdate; i++ {
		s.Step()
	}
}

// Step advances the simulation by exactly one tick.
func (s *Simulation) Step() {
	s.tick++
	s.nowMS += s.cfg.Derived.TickMS

	s.prey.Step(s.walls, s.layout, s.rng)
	s.trail.Record(s.prey.X, s.prey.Y, s.nowMS)
	s.trains.PopMarkersInCircle(s.prey.X, s.prey.Y, s.prey.Radius+s.cfg.Agents.Radius)

	if s.walls.RebuildIfDirty() {
		s.blockedScent = systems.BlockedScentCells(s.layout, s.walls.Cells())
	}

	s.trains.PreUpdate(s.trainHeads(), s.trainTargets(), s, s.nowMS)
	s.collector.RecordMerges(len(s.trains.MergeLog))
	s.collector.RecordPromotions(len(s.trains.PromoteLog))
	for _, ev := range s.trains.MergeLog {
		s.events = append(s.events, telemetry.NewTrainMergeEvent(s.tick, ev.HeadID, ev.TrainID))
	}
	for _, ev := range s.trains.PromoteLog {
		s.events = append(s.events, telemetry.NewTrainPromoteEvent(s.tick, ev.HeadID, ev.TrainID, ev.X, ev.Y))
	}

	if s.nowMS >= s.nextSpawnMS {
		s.nextSpawnMS = s.nowMS + s.cfg.Spawn.DelayMS
		if !s.AtPopulationCap() {
			if x, y, ok := s.randomSpawnPoint(); ok {
				s.spawnWeighted(x, y)
			}
		}
	}

	s.rebuildAgentGrid()
	s.applyTrackerCrowdControl()

	for _, ref := range s.orderedAgents() {
		s.stepAgent(ref.entity)
	}

	s.reapDead()
	s.trains.PostUpdate(s.trainHeads())

	s.collector.SampleTick(s.aliveCount)
	if s.collector.WindowReady(s.tick) {
		ws := s.collector.FlushWindow(s.tick, s.populationSnapshot(), s.trains.TotalMarkerCount(), s.walls.Count())
		if s.opts.LogStats {
			ws.Log(s.logger)
		}
		if err := s.output.WriteStats(ws); err != nil {
			s.logger.Error("stats output failed", "error", err)
		}
		if err := s.flushEvents(); err != nil {
			s.logger.Error("event output failed", "error", err)
		}
	}
}

func (s *Simulation) rebuildAgentGrid() {
	s.grid.Clear()
	query := s.agentFilter.Query()
	for query.Next() {
		pos, ag, _, _ := query.Get()
		if ag.Dead {
			continue
		}
		s.grid.Insert(systems.AgentRef{ID: ag.ID, Kind: ag.Kind, X: pos.X, Y: pos.Y, Radius: ag.Radius})
	}
}

// orderedAgents collects the live agents sorted by x position, with the
// agent id breaking ties, so runs with the same seed stay identical.
func (s *Simulation) orderedAgents() []stepRef {
	refs := make([]stepRef, 0, s.aliveCount)
	query := s.agentFilter.Query()
	for query.Next() {
		pos, ag, _, _ := query.Get()
		if ag.Dead {
			continue
		}
		refs = append(refs, stepRef{entity: query.Entity(), id: ag.ID, x: pos.X})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].x != refs[j].x {
			return refs[i].x < refs[j].x
		}
		return refs[i].id < refs[j].id
	})
	return refs
}

// stepAgent runs the full per-agent pipeline: strategy dispatch,
// separation, edge nudge, wall collision, status effects and decay.
func (s *Simulation) stepAgent(entity ecs.Entity) {
	pos := s.posMap.Get(entity)
	ag := s.agentMap.Get(entity)
	vit := s.vitalsMap.Get(entity)
	wd := s.wanderMap.Get(entity)
	if ag.Dead {
		return
	}

	vp := s.vitalsParams
	if ag.Kind == components.KindDog {
		vp = s.dogVitals
	}

	ratio := systems.SpeedRatio(vit, vp.DecayMinSpeedRatio)
	ag.Speed = ag.BaseSpeed * ratio
	dog := s.dogMap.Get(entity)
	if dog != nil {
		dog.SpeedPatrol = s.cfg.Dog.PatrolSpeed * ratio
		dog.SpeedAssault = s.cfg.Dog.AssaultSpeed * ratio
	}

	paralyzed := s.nowMS < vit.ParalyzedUntilMS

	var mx, my float64
	if !paralyzed && ag.Speed > 0 {
		mx, my = s.dispatch(entity, pos, ag, wd)

		neighbors := s.separationNeighbors(ag, pos)
		hug := s.hugMap.Get(entity)
		mx, my = systems.ApplySeparation(mx, my, pos.X, pos.Y, ag.Radius, ag.Speed, neighbors, hug, s.rng, s.sepParams)

		mx, my = systems.ApplyTileEdgeNudge(pos.X, pos.Y, mx, my,
			s.cfg.World.CellSize, s.walls.Cells(), s.walls.BevelCorners(),
			s.cfg.World.GridCols, s.cfg.World.GridRows)
	}

	near := s.walls.NearRadius(pos.X, pos.Y, ag.Radius+math.Abs(mx)+math.Abs(my))
	destroyedBefore := s.walls.Destroyed
	finalX, finalY, hits := systems.ResolveWallCollision(
		pos.X, pos.Y, ag.Radius, pos.X+mx, pos.Y+my, near, s.walls, s.cfg.Walls.AgentDamage)
	if hits > 0 {
		s.collector.RecordWallHits(hits)
	}
	if destroyed := s.walls.Destroyed - destroyedBefore; destroyed > 0 {
		s.collector.RecordWallDeaths(destroyed)
		s.events = append(s.events, telemetry.NewWallDestroyedEvent(s.tick, ag.ID, ag.Kind, pos.X, pos.Y))
	}

	blockedX := mx != 0 && finalX == pos.X
	blockedY := my != 0 && finalY == pos.Y
	if dog != nil {
		systems.DogWanderBounce(dog, wd, s.rng, s.nowMS, s.dogParams, blockedX || blockedY)
	} else if blockedX && blockedY && s.hugMap.Get(entity) == nil {
		// Fully blocked roamers pick a fresh heading instead of grinding
		// into the same face next tick.
		wd.Angle = s.rng.Float64() * 2 * math.Pi
	}

	moved := finalX != pos.X || finalY != pos.Y
	if moved {
		ag.Facing = math.Atan2(finalY-pos.Y, finalX-pos.X)
	}
	pos.X = finalX
	pos.Y = finalY

	if hug := s.hugMap.Get(entity); hug != nil {
		systems.WallHugStuckCheck(hug, wd, pos.X, pos.Y, s.hugParams)
	}

	if dog != nil && !paralyzed {
		s.applyDogBite(dog, ag, pos)
	}

	onHazard := s.layout.IsHazard(pos.X, pos.Y)
	held, killed := systems.UpdateHazardParalysis(vit, onHazard, s.nowMS, vp)
	if held {
		s.collector.RecordParalyzed()
	}
	if killed {
		ag.Dead = true
		return
	}

	cell := s.layout.CellAt(pos.X, pos.Y)
	if !s.layout.InGrid(cell) {
		ag.Dead = true
		return
	}
	if _, outside := s.layout.Outer[cell]; outside {
		if systems.Carbonize(vit, vp) {
			s.collector.RecordCarbonized()
			s.events = append(s.events, telemetry.NewCarbonizeEvent(s.tick, ag.ID, ag.Kind))
		}
	}

	if systems.ApplyDecay(vit, vp) {
		ag.Dead = true
	}
}

// dispatch runs the movement strategy for the agent's kind and returns
// the intended displacement.
func (s *Simulation) dispatch(entity ecs.Entity, pos *components.Position, ag *components.Agent, wd *components.Wander) (float64, float64) {
	switch ag.Kind {
	case components.KindNormal:
		if s.preyVisible(pos.X, pos.Y, s.cfg.Agents.SightRange) {
			return stepToward(pos.X, pos.Y, s.prey.X, s.prey.Y, ag.Speed)
		}

	case components.KindWallHugger:
		hug := s.hugMap.Get(entity)
		near := s.walls.NearRadius(pos.X, pos.Y, s.hugParams.SensorDistance+ag.Radius+120)
		dx, dy, ok := systems.WallHugStep(hug, pos.X, pos.Y, ag.Speed, ag.Radius, near, s.rng, s.nowMS, s.hugParams)
		if ok {
			return dx, dy
		}

	case components.KindTracker:
		sc := s.scentMap.Get(entity)
		if s.preyVisible(pos.X, pos.Y, s.cfg.Tracker.SightRange) {
			return stepToward(pos.X, pos.Y, s.prey.X, s.prey.Y, ag.Speed)
		}
		if sc.ForceWander {
			sc.ForceWander = false
			break
		}
		systems.UpdateScentTarget(sc, pos.X, pos.Y, s.trail.Prints(), s.blockedScent, s.layout, s.nowMS, s.scentParams)
		if sc.HasTarget {
			return stepToward(pos.X, pos.Y, sc.TargetX, sc.TargetY, ag.Speed)
		}

	case components.KindLineHead:
		if t := s.trains.TrainByHead(ag.ID); t != nil && t.HasTargetPos {
			return stepToward(pos.X, pos.Y, t.TargetPosX, t.TargetPosY, ag.Speed)
		}

	case components.KindDog:
		dog := s.dogMap.Get(entity)
		sc := s.scentMap.Get(entity)
		chase := s.dogChaseTarget(ag.ID, pos.X, pos.Y)
		return systems.DogStep(dog, wd, sc, ag, pos.X, pos.Y, s.prey.X, s.prey.Y,
			chase, s.trail.Prints(), s.blockedScent, s.layout, s.rng, s.nowMS, s.dogParams, s.scentParams)
	}

	near := s.walls.NearRadius(pos.X, pos.Y, 80)
	return systems.WanderStep(wd, pos.X, pos.Y, ag.Speed, ag.Radius, near, s.layout, s.rng, s.nowMS, s.wanderParams)
}

// preyVisible reports whether the prey is in range with a clear line of
// sight.
func (s *Simulation) preyVisible(x, y, sightRange float64) bool {
	dx := s.prey.X - x
	dy := s.prey.Y - y
	if dx*dx+dy*dy > sightRange*sightRange {
		return false
	}
	return systems.LineOfSightClearCells(x, y, s.prey.X, s.prey.Y, s.blockedScent,
		s.cfg.World.CellSize, s.cfg.World.GridCols, s.cfg.World.GridRows)
}

// separationNeighbors gathers nearby agents for the push-apart pass.
// Dogs only yield to other dogs.
func (s *Simulation) separationNeighbors(ag *components.Agent, pos *components.Position) []systems.SeparationNeighbor {
	reach := s.sepParams.Distance + ag.Speed + ag.Radius
	refs := s.grid.QueryRadiusInto(nil, pos.X, pos.Y, reach, ag.ID)
	neighbors := make([]systems.SeparationNeighbor, 0, len(refs))
	for _, ref := range refs {
		if ag.Kind == components.KindDog && ref.Kind != components.KindDog {
			continue
		}
		neighbors = append(neighbors, systems.SeparationNeighbor{X: ref.X, Y: ref.Y, Radius: ref.Radius})
	}
	return neighbors
}

// dogChaseTarget finds the nearest live, uncarbonized agent inside the
// pack chase range.
func (s *Simulation) dogChaseTarget(selfID uint32, x, y float64) systems.DogChaseTarget {
	refs := s.grid.QueryRadiusInto(nil, x, y, s.dogParams.PackChaseRange, selfID)
	best := systems.DogChaseTarget{}
	bestDistSq := s.dogParams.PackChaseRange * s.dogParams.PackChaseRange
	for _, ref := range refs {
		entry, ok := s.byID[ref.ID]
		if !ok {
			continue
		}
		vit := s.vitalsMap.Get(entry.entity)
		agc := s.agentMap.Get(entry.entity)
		if vit == nil || agc == nil || agc.Dead || vit.Carbonized {
			continue
		}
		distSq := (ref.X-x)*(ref.X-x) + (ref.Y-y)*(ref.Y-y)
		if distSq <= bestDistSq {
			best = systems.DogChaseTarget{X: ref.X, Y: ref.Y, OK: true}
			bestDistSq = distSq
		}
	}
	return best
}

// applyDogBite damages packmates in biting reach on the bite cadence.
// Agents bitten down to their last second of decay are finished off.
func (s *Simulation) applyDogBite(dog *components.Dog, ag *components.Agent, pos *components.Position) {
	refs := s.grid.QueryRadiusInto(nil, pos.X, pos.Y, s.dogParams.PackChaseRange, ag.ID)
	if len(refs) == 0 {
		return
	}
	dog.BiteCounter = (dog.BiteCounter + 1) % s.cfg.Dog.BiteIntervalFrames
	if dog.BiteCounter != 0 {
		return
	}
	fps := float64(s.cfg.World.FPS)
	for _, ref := range refs {
		entry, ok := s.byID[ref.ID]
		if !ok {
			continue
		}
		agc := s.agentMap.Get(entry.entity)
		vit := s.vitalsMap.Get(entry.entity)
		if agc == nil || vit == nil || agc.Dead {
			continue
		}
		combined := ag.Radius + ref.Radius
		dx := ref.X - pos.X
		dy := ref.Y - pos.Y
		if dx*dx+dy*dy > combined*combined {
			continue
		}
		if systems.Damage(vit, s.cfg.Dog.BiteDamage) {
			agc.Dead = true
			continue
		}
		vp := s.vitalsParams
		if agc.Kind == components.KindDog {
			vp = s.dogVitals
		}
		if vit.MaxHealth > 0 && vp.DecayDurationFrames > 0 {
			framesToZero := float64(vit.Health) * vp.DecayDurationFrames / float64(vit.MaxHealth)
			if framesToZero <= fps {
				if systems.Damage(vit, vit.Health) {
					agc.Dead = true
				}
			}
		}
	}
}

// applyTrackerCrowdControl buckets trail-locked trackers by coarse cell
// and heading and forces one tracker per crowded bucket off the trail.
func (s *Simulation) applyTrackerCrowdControl() {
	band := s.cfg.Tracker.CrowdBandWidth
	if band <= 0 || s.cfg.Tracker.CrowdCount <= 0 {
		return
	}

	type bucketKey struct {
		col, row int
		heading  int
	}
	buckets := make(map[bucketKey][]ecs.Entity)

	query := s.agentFilter.Query()
	for query.Next() {
		pos, ag, _, _ := query.Get()
		if ag.Dead || ag.Kind != components.KindTracker {
			continue
		}
		sc := s.scentMap.Get(query.Entity())
		if sc == nil || !sc.HasTarget {
			continue
		}
		heading := headingBin(sc.TargetX-pos.X, sc.TargetY-pos.Y)
		key := bucketKey{
			col:     int(math.Floor(pos.X / band)),
			row:     int(math.Floor(pos.Y / band)),
			heading: heading,
		}
		buckets[key] = append(buckets[key], query.Entity())
	}

	for _, members := range buckets {
		if len(members) < s.cfg.Tracker.CrowdCount {
			continue
		}
		pick := members[s.rng.Intn(len(members))]
		sc := s.scentMap.Get(pick)
		systems.MarkForceWander(sc, s.nowMS, s.scentParams)
		sc.ForceWander = true
	}
}

// headingBin maps a direction onto one of eight compass bins.
func headingBin(dx, dy float64) int {
	if dx == 0 && dy == 0 {
		return 0
	}
	angle := math.Atan2(dy, dx)
	bin := int(math.Round(angle/(math.Pi/4))) % 8
	if bin < 0 {
		bin += 8
	}
	return bin
}

// reapDead collects agents flagged dead during the pass and removes them
// from the world after iteration finishes.
func (s *Simulation) reapDead() {
	type deadInfo struct {
		id   uint32
		kind components.Kind
		x, y float64
	}
	var toRemove []deadInfo

	query := s.agentFilter.Query()
	for query.Next() {
		pos, ag, _, _ := query.Get()
		if ag.Dead {
			toRemove = append(toRemove, deadInfo{id: ag.ID, kind: ag.Kind, x: pos.X, y: pos.Y})
		}
	}

	for _, dead := range toRemove {
		s.collector.RecordDeath()
		s.events = append(s.events, telemetry.NewDeathEvent(s.tick, dead.id, dead.kind, dead.x, dead.y))
		s.RemoveAgent(dead.id)
	}
}

// stepToward returns a displacement toward the target capped at speed.
func stepToward(x, y, tx, ty, speed float64) (float64, float64) {
	dx := tx - x
	dy := ty - y
	dist := math.Hypot(dx, dy)
	if dist <= 0 {
		return 0, 0
	}
	if dist <= speed {
		return dx, dy
	}
	return dx / dist * speed, dy / dist * speed
}

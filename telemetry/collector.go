// Package telemetry provides windowed stats collection and CSV output for
// simulation runs.
package telemetry

// Collector accumulates events within fixed tick windows and produces
// WindowStats.
type Collector struct {
	windowTicks int
	tickMS      int64

	windowStartTick int

	// Event counters for the current window
	spawns     int
	deaths     int
	wallHits   int
	wallDeaths int
	merges     int
	promotions int
	carbonized int
	paralyzed  int

	// Per-tick samples for the current window
	popSamples []float64
}

// NewCollector creates a stats collector. windowTicks is the window length
// in ticks, tickMS the simulated milliseconds per tick.
func NewCollector(windowTicks int, tickMS int64) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks: windowTicks,
		tickMS:      tickMS,
		popSamples:  make([]float64, 0, windowTicks),
	}
}

// RecordSpawn records an agent spawn.
func (c *Collector) RecordSpawn() { c.spawns++ }

// RecordDeath records an agent death.
func (c *Collector) RecordDeath() { c.deaths++ }

// RecordWallHits records damage hits landed on walls this tick.
func (c *Collector) RecordWallHits(n int) { c.wallHits += n }

// RecordWallDeaths records walls destroyed this tick.
func (c *Collector) RecordWallDeaths(n int) { c.wallDeaths += n }

// RecordMerges records train merges this tick.
func (c *Collector) RecordMerges(n int) { c.merges += n }

// RecordPromotions records markers promoted to heads this tick.
func (c *Collector) RecordPromotions(n int) { c.promotions += n }

// RecordCarbonized records an agent burning to a crisp.
func (c *Collector) RecordCarbonized() { c.carbonized++ }

// RecordParalyzed records an agent held by a hazard cell this tick.
func (c *Collector) RecordParalyzed() { c.paralyzed++ }

// SampleTick feeds the per-tick population sample.
func (c *Collector) SampleTick(population int) {
	c.popSamples = append(c.popSamples, float64(population))
}

// WindowReady reports whether the current window is complete at the tick.
func (c *Collector) WindowReady(tick int) bool {
	return tick-c.windowStartTick >= c.windowTicks
}

// FlushWindow closes the current window and returns its stats. Counters
// reset for the next window.
func (c *Collector) FlushWindow(tick int, pop PopulationSnapshot, markers, walls int) WindowStats {
	ws := WindowStats{
		WindowEndTick: tick,
		SimTimeSec:    float64(tick) * float64(c.tickMS) / 1000.0,

		Normal:      pop.Normal,
		WallHuggers: pop.WallHuggers,
		Trackers:    pop.Trackers,
		LineHeads:   pop.LineHeads,
		Dogs:        pop.Dogs,
		Markers:     markers,
		Walls:       walls,

		Spawns:     c.spawns,
		Deaths:     c.deaths,
		WallHits:   c.wallHits,
		WallDeaths: c.wallDeaths,
		Merges:     c.merges,
		Promotions: c.promotions,
		Carbonized: c.carbonized,
		Paralyzed:  c.paralyzed,
	}
	ws.PopMean, ws.PopStd = meanStd(c.popSamples)

	c.windowStartTick = tick
	c.spawns = 0
	c.deaths = 0
	c.wallHits = 0
	c.wallDeaths = 0
	c.merges = 0
	c.promotions = 0
	c.carbonized = 0
	c.paralyzed = 0
	c.popSamples = c.popSamples[:0]

	return ws
}

// PopulationSnapshot is the per-kind population at a window boundary.
type PopulationSnapshot struct {
	Normal      int
	WallHuggers int
	Trackers    int
	LineHeads   int
	Dogs        int
}

// Total sums the snapshot.
func (p PopulationSnapshot) Total() int {
	return p.Normal + p.WallHuggers + p.Trackers + p.LineHeads + p.Dogs
}

package telemetry

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"
)

// WindowStats is one row of windowed simulation statistics.
type WindowStats struct {
	WindowEndTick int     `csv:"window_end"`
	SimTimeSec    float64 `csv:"sim_time"`

	Normal      int `csv:"normal"`
	WallHuggers int `csv:"wall_huggers"`
	Trackers    int `csv:"trackers"`
	LineHeads   int `csv:"line_heads"`
	Dogs        int `csv:"dogs"`
	Markers     int `csv:"markers"`
	Walls       int `csv:"walls"`

	PopMean float64 `csv:"pop_mean"`
	PopStd  float64 `csv:"pop_std"`

	Spawns     int `csv:"spawns"`
	Deaths     int `csv:"deaths"`
	WallHits   int `csv:"wall_hits"`
	WallDeaths int `csv:"wall_deaths"`
	Merges     int `csv:"merges"`
	Promotions int `csv:"promotions"`
	Carbonized int `csv:"carbonized"`
	Paralyzed  int `csv:"paralyzed"`
}

// Population sums the per-kind counts.
func (w WindowStats) Population() int {
	return w.Normal + w.WallHuggers + w.Trackers + w.LineHeads + w.Dogs
}

// Log emits the window summary as a structured log record.
func (w WindowStats) Log(logger *slog.Logger) {
	logger.Info("window",
		"tick", w.WindowEndTick,
		"sim_time", w.SimTimeSec,
		"pop", w.Population(),
		"pop_mean", w.PopMean,
		"markers", w.Markers,
		"walls", w.Walls,
		"spawns", w.Spawns,
		"deaths", w.Deaths,
		"wall_deaths", w.WallDeaths,
		"merges", w.Merges,
		"promotions", w.Promotions,
	)
}

func meanStd(samples []float64) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	mean := stat.Mean(samples, nil)
	if len(samples) < 2 {
		return mean, 0
	}
	sd := stat.StdDev(samples, nil)
	if math.IsNaN(sd) {
		sd = 0
	}
	return mean, sd
}

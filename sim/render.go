package sim

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/horde/components"
)

// Viewer state for the interactive window.
type Viewer struct {
	paused bool
	steps  float32
}

// NewViewer creates the viewer with the configured ticks-per-frame.
func NewViewer(stepsPerUpdate int) *Viewer {
	return &Viewer{steps: float32(stepsPerUpdate)}
}

// StepsPerUpdate returns the slider-controlled ticks per frame.
func (v *Viewer) StepsPerUpdate() int {
	if v.paused {
		return 0
	}
	return int(v.steps)
}

var kindColors = map[components.Kind]rl.Color{
	components.KindNormal:     rl.Green,
	components.KindWallHugger: rl.SkyBlue,
	components.KindTracker:    rl.Orange,
	components.KindLineHead:   rl.Purple,
	components.KindDog:        rl.Red,
}

// Draw renders the field, walls, agents, trains and prey, plus the
// control panel.
func (s *Simulation) Draw(v *Viewer) {
	rl.BeginDrawing()
	rl.ClearBackground(rl.Color{R: 24, G: 26, B: 30, A: 255})

	cell := s.layout.CellSize

	for c := range s.layout.Pitfalls {
		rl.DrawRectangle(int32(c.Col*cell), int32(c.Row*cell), int32(cell), int32(cell), rl.Color{R: 10, G: 10, B: 14, A: 255})
	}
	for c := range s.layout.Hazards {
		rl.DrawRectangle(int32(c.Col*cell), int32(c.Row*cell), int32(cell), int32(cell), rl.Color{R: 70, G: 60, B: 10, A: 255})
	}

	for _, w := range s.walls.Living() {
		shade := uint8(90 + 120*w.Health/w.MaxHealth)
		col := rl.Color{R: shade, G: shade, B: shade, A: 255}
		if w.Polygon != nil {
			for i := 0; i < len(w.Polygon); i++ {
				a := w.Polygon[i]
				b := w.Polygon[(i+1)%len(w.Polygon)]
				rl.DrawLineV(rl.Vector2{X: float32(a.X), Y: float32(a.Y)}, rl.Vector2{X: float32(b.X), Y: float32(b.Y)}, col)
			}
		} else {
			rl.DrawRectangle(int32(w.Rect.X), int32(w.Rect.Y), int32(w.Rect.W), int32(w.Rect.H), col)
		}
	}

	for _, fp := range s.trail.Prints() {
		rl.DrawCircleV(rl.Vector2{X: float32(fp.X), Y: float32(fp.Y)}, 2, rl.Color{R: 120, G: 100, B: 60, A: 180})
	}

	for _, t := range s.trains.Trains() {
		for _, m := range t.Markers {
			rl.DrawCircleV(rl.Vector2{X: float32(m.X), Y: float32(m.Y)}, float32(s.cfg.Agents.Radius*0.8), rl.Color{R: 140, G: 80, B: 200, A: 200})
		}
	}

	query := s.agentFilter.Query()
	for query.Next() {
		pos, ag, vit, _ := query.Get()
		if ag.Dead {
			continue
		}
		col, ok := kindColors[ag.Kind]
		if !ok {
			col = rl.White
		}
		if vit.Carbonized {
			col = rl.DarkGray
		} else if s.nowMS < vit.ParalyzedUntilMS {
			col = rl.Yellow
		}
		rl.DrawCircleV(rl.Vector2{X: float32(pos.X), Y: float32(pos.Y)}, float32(ag.Radius), col)
	}

	rl.DrawCircleV(rl.Vector2{X: float32(s.prey.X), Y: float32(s.prey.Y)}, float32(s.prey.Radius), rl.White)

	rl.DrawText(fmt.Sprintf("Tick: %d  Pop: %d  Walls: %d  Markers: %d",
		s.tick, s.aliveCount, s.walls.Count(), s.trains.TotalMarkerCount()), 10, 10, 20, rl.White)

	label := "Pause"
	if v.paused {
		label = "Resume"
	}
	if gui.Button(rl.Rectangle{X: 10, Y: 40, Width: 90, Height: 24}, label) {
		v.paused = !v.paused
	}
	v.steps = gui.SliderBar(
		rl.Rectangle{X: 120, Y: 40, Width: 140, Height: 24},
		"", fmt.Sprintf("x%d", int(v.steps)),
		v.steps, 1, 16,
	)

	rl.EndDrawing()
}

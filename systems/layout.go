package systems

import "math"

// Cell is a grid coordinate (column, row).
type Cell struct {
	Col, Row int
}

// Layout describes the playing field: a uniform cell grid with sets of
// special cells. Wall cells are tracked separately by the WallIndex; the
// sets here never change during a run.
type Layout struct {
	CellSize int
	Cols     int
	Rows     int

	Outer    map[Cell]struct{} // indestructible boundary cells
	Beams    map[Cell]struct{} // support beams, block movement and scent
	Pitfalls map[Cell]struct{} // open pits agents steer around
	Hazards  map[Cell]struct{} // electrified floor cells
}

// NewLayout creates an empty layout of the given grid dimensions.
func NewLayout(cols, rows, cellSize int) *Layout {
	return &Layout{
		CellSize: cellSize,
		Cols:     cols,
		Rows:     rows,
		Outer:    make(map[Cell]struct{}),
		Beams:    make(map[Cell]struct{}),
		Pitfalls: make(map[Cell]struct{}),
		Hazards:  make(map[Cell]struct{}),
	}
}

// AddOuterRing marks the outermost grid ring as indestructible boundary.
func (l *Layout) AddOuterRing() {
	for c := 0; c < l.Cols; c++ {
		l.Outer[Cell{c, 0}] = struct{}{}
		l.Outer[Cell{c, l.Rows - 1}] = struct{}{}
	}
	for r := 0; r < l.Rows; r++ {
		l.Outer[Cell{0, r}] = struct{}{}
		l.Outer[Cell{l.Cols - 1, r}] = struct{}{}
	}
}

func (l *Layout) Width() float64  { return float64(l.Cols * l.CellSize) }
func (l *Layout) Height() float64 { return float64(l.Rows * l.CellSize) }

// CellAt returns the grid cell containing the point.
func (l *Layout) CellAt(x, y float64) Cell {
	return Cell{
		Col: int(math.Floor(x / float64(l.CellSize))),
		Row: int(math.Floor(y / float64(l.CellSize))),
	}
}

// CellCenter returns the center of a cell in field units.
func (l *Layout) CellCenter(c Cell) (float64, float64) {
	return (float64(c.Col) + 0.5) * float64(l.CellSize), (float64(c.Row) + 0.5) * float64(l.CellSize)
}

// InGrid reports whether the cell lies within the grid.
func (l *Layout) InGrid(c Cell) bool {
	return c.Col >= 0 && c.Row >= 0 && c.Col < l.Cols && c.Row < l.Rows
}

// IsHazard reports whether the point stands on an electrified floor cell.
func (l *Layout) IsHazard(x, y float64) bool {
	_, ok := l.Hazards[l.CellAt(x, y)]
	return ok
}

// pitfallAvoidance returns a push away from pitfall cells in the 3x3 cell
// neighborhood, scaled up to half the agent's speed at zero distance.
func pitfallAvoidance(x, y, speed float64, pitfalls map[Cell]struct{}, cellSize int) (float64, float64) {
	if cellSize <= 0 || len(pitfalls) == 0 {
		return 0, 0
	}
	cell := Cell{int(math.Floor(x / float64(cellSize))), int(math.Floor(y / float64(cellSize)))}
	avoidRadius := float64(cellSize) * 1.25
	maxStrength := speed * 0.5
	var pushX, pushY float64
	for cy := cell.Row - 1; cy <= cell.Row+1; cy++ {
		for cx := cell.Col - 1; cx <= cell.Col+1; cx++ {
			if _, ok := pitfalls[Cell{cx, cy}]; !ok {
				continue
			}
			pitX := (float64(cx) + 0.5) * float64(cellSize)
			pitY := (float64(cy) + 0.5) * float64(cellSize)
			dx := x - pitX
			dy := y - pitY
			distSq := dx*dx + dy*dy
			if distSq <= 0 {
				continue
			}
			d := math.Sqrt(distSq)
			if d >= avoidRadius {
				continue
			}
			strength := (1.0 - d/avoidRadius) * maxStrength
			pushX += (dx / d) * strength
			pushY += (dy / d) * strength
		}
	}
	return pushX, pushY
}

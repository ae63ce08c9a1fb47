package systems

import "math"

// Wall is a destructible obstacle occupying one grid cell. Beveled
// variants carry a collision polygon; plain walls collide as rectangles.
type Wall struct {
	ID        uint32
	Rect      Rect
	Polygon   []Point
	Bevel     [4]bool // corner bevels, clockwise from top-left
	Health    int
	MaxHealth int
	Alive     bool
}

// bevelCutRatio is the fraction of the shorter wall side cut off a
// beveled corner.
const bevelCutRatio = 0.3

// NewWall creates a wall over the given rectangle. Beveled corners get a
// collision polygon with the corners cut at 45 degrees.
func NewWall(id uint32, r Rect, bevel [4]bool, health int) *Wall {
	w := &Wall{
		ID:        id,
		Rect:      r,
		Bevel:     bevel,
		Health:    health,
		MaxHealth: health,
	}
	if bevel[0] || bevel[1] || bevel[2] || bevel[3] {
		cut := math.Min(r.W, r.H) * bevelCutRatio
		var poly []Point
		// Corners clockwise from top-left.
		if bevel[0] {
			poly = append(poly, Point{r.X, r.Y + cut}, Point{r.X + cut, r.Y})
		} else {
			poly = append(poly, Point{r.X, r.Y})
		}
		if bevel[1] {
			poly = append(poly, Point{r.Right() - cut, r.Y}, Point{r.Right(), r.Y + cut})
		} else {
			poly = append(poly, Point{r.Right(), r.Y})
		}
		if bevel[2] {
			poly = append(poly, Point{r.Right(), r.Bottom() - cut}, Point{r.Right() - cut, r.Bottom()})
		} else {
			poly = append(poly, Point{r.Right(), r.Bottom()})
		}
		if bevel[3] {
			poly = append(poly, Point{r.X + cut, r.Bottom()}, Point{r.X, r.Bottom() - cut})
		} else {
			poly = append(poly, Point{r.X, r.Bottom()})
		}
		w.Polygon = poly
	}
	return w
}

// CollidesCircle reports whether a circle overlaps the wall.
func (w *Wall) CollidesCircle(cx, cy, radius float64) bool {
	if w.Polygon != nil {
		return circlePolygonCollision(cx, cy, radius, w.Polygon)
	}
	return circleRectCollision(cx, cy, radius, w.Rect)
}

// CollidesRect reports whether a rectangle overlaps the wall.
func (w *Wall) CollidesRect(r Rect) bool {
	if w.Polygon != nil {
		return rectPolygonCollision(r, w.Polygon)
	}
	return w.Rect.Overlaps(r)
}

// WallSet owns every wall plus a grid-bucketed lookup index. The index is
// bucketed by wall center cell and rebuilt lazily after a wall dies.
type WallSet struct {
	cellSize int
	gridCols int
	gridRows int

	walls  []*Wall
	index  map[Cell][]*Wall
	cells  map[Cell]struct{}
	bevels map[Cell][4]bool
	dirty  bool

	Destroyed int // walls destroyed this run
}

// NewWallSet creates an empty wall set over the layout's grid.
func NewWallSet(layout *Layout) *WallSet {
	return &WallSet{
		cellSize: layout.CellSize,
		gridCols: layout.Cols,
		gridRows: layout.Rows,
		index:    make(map[Cell][]*Wall),
		cells:    make(map[Cell]struct{}),
		bevels:   make(map[Cell][4]bool),
	}
}

// Add registers a wall and flags the index for rebuild.
func (s *WallSet) Add(w *Wall) {
	w.Alive = true
	s.walls = append(s.walls, w)
	s.dirty = true
}

// Damage applies damage to a wall. Returns true when the hit destroyed it;
// a destroyed wall flags the index dirty.
func (s *WallSet) Damage(w *Wall, amount int) bool {
	if !w.Alive || w.Health <= 0 {
		return false
	}
	w.Health -= amount
	if w.Health > 0 {
		return false
	}
	w.Alive = false
	s.dirty = true
	s.Destroyed++
	return true
}

// RebuildIfDirty rebuilds the bucket index when flagged. Returns true when
// a rebuild happened.
func (s *WallSet) RebuildIfDirty() bool {
	if !s.dirty {
		return false
	}
	s.rebuild()
	return true
}

func (s *WallSet) rebuild() {
	clear(s.index)
	clear(s.cells)
	clear(s.bevels)
	living := s.walls[:0]
	for _, w := range s.walls {
		if !w.Alive {
			continue
		}
		living = append(living, w)
		cell := Cell{
			Col: int(math.Floor(w.Rect.CenterX() / float64(s.cellSize))),
			Row: int(math.Floor(w.Rect.CenterY() / float64(s.cellSize))),
		}
		s.index[cell] = append(s.index[cell], w)
		s.cells[cell] = struct{}{}
		if w.Bevel != ([4]bool{}) {
			s.bevels[cell] = w.Bevel
		}
	}
	s.walls = living
	s.dirty = false
}

// NearRadius returns candidate walls whose bucket cell lies within the
// query radius padded by one cell, clipped to the grid.
func (s *WallSet) NearRadius(x, y, radius float64) []*Wall {
	if s.dirty {
		s.rebuild()
	}
	search := radius + float64(s.cellSize)
	minX := max(0, int(math.Floor((x-search)/float64(s.cellSize))))
	maxX := min(s.gridCols-1, int(math.Floor((x+search)/float64(s.cellSize))))
	minY := max(0, int(math.Floor((y-search)/float64(s.cellSize))))
	maxY := min(s.gridRows-1, int(math.Floor((y+search)/float64(s.cellSize))))

	var out []*Wall
	for cy := minY; cy <= maxY; cy++ {
		for cx := minX; cx <= maxX; cx++ {
			out = append(out, s.index[Cell{cx, cy}]...)
		}
	}
	return out
}

// Cells returns the set of cells holding a living wall. The map is shared;
// callers must not mutate it.
func (s *WallSet) Cells() map[Cell]struct{} {
	if s.dirty {
		s.rebuild()
	}
	return s.cells
}

// BevelCorners returns the per-cell corner bevels of living beveled walls.
// The map is shared; callers must not mutate it.
func (s *WallSet) BevelCorners() map[Cell][4]bool {
	if s.dirty {
		s.rebuild()
	}
	return s.bevels
}

// Living returns all living walls.
func (s *WallSet) Living() []*Wall {
	if s.dirty {
		s.rebuild()
	}
	return s.walls
}

// Count returns the number of living walls.
func (s *WallSet) Count() int {
	if s.dirty {
		s.rebuild()
	}
	return len(s.walls)
}

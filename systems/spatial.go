package systems

import "github.com/pthm-cable/horde/components"

// AgentRef is a grid entry: enough of an agent's state to answer
// neighbor queries without touching the ECS.
type AgentRef struct {
	ID     uint32
	Kind   components.Kind
	X, Y   float64
	Radius float64
}

// SpatialGrid provides O(1) neighbor lookups using a cell-based grid.
// Rebuilt once per tick before the agent pass.
type SpatialGrid struct {
	cellSize float64
	cols     int
	rows     int
	cells    [][]AgentRef
}

// NewSpatialGrid creates a spatial grid covering the given field size.
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1

	cells := make([][]AgentRef, cols*rows)
	for i := range cells {
		cells[i] = make([]AgentRef, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    cells,
	}
}

// Clear removes all agents from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an agent to the grid at its position.
func (g *SpatialGrid) Insert(ref AgentRef) {
	col := int(ref.X / g.cellSize)
	row := int(ref.Y / g.cellSize)
	if col < 0 || col >= g.cols || row < 0 || row >= g.rows {
		return
	}
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], ref)
}

// QueryRadiusInto finds agents within radius of (x, y), excluding the
// given id, and appends them to dst. Reuse dst across calls to avoid
// allocations.
func (g *SpatialGrid) QueryRadiusInto(dst []AgentRef, x, y, radius float64, exclude uint32) []AgentRef {
	cellRadius := int(radius/g.cellSize) + 1

	centerCol := int(x / g.cellSize)
	centerRow := int(y / g.cellSize)

	radiusSq := radius * radius

	for dr := -cellRadius; dr <= cellRadius; dr++ {
		row := centerRow + dr
		if row < 0 || row >= g.rows {
			continue
		}
		for dc := -cellRadius; dc <= cellRadius; dc++ {
			col := centerCol + dc
			if col < 0 || col >= g.cols {
				continue
			}
			for _, ref := range g.cells[row*g.cols+col] {
				if ref.ID == exclude {
					continue
				}
				dx := ref.X - x
				dy := ref.Y - y
				if dx*dx+dy*dy <= radiusSq {
					dst = append(dst, ref)
				}
			}
		}
	}

	return dst
}

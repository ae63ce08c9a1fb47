package systems

import "math"

// Rect is an axis-aligned rectangle in field units.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) Left() float64    { return r.X }
func (r Rect) Right() float64   { return r.X + r.W }
func (r Rect) Top() float64     { return r.Y }
func (r Rect) Bottom() float64  { return r.Y + r.H }
func (r Rect) CenterX() float64 { return r.X + r.W/2 }
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }

// Overlaps reports whether two rectangles intersect.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.Right() && r.Right() > o.X && r.Y < o.Bottom() && r.Bottom() > o.Y
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Point is a 2D point, used for polygon outlines.
type Point struct {
	X, Y float64
}

// circleRectCollision reports whether a circle overlaps the rectangle.
func circleRectCollision(cx, cy, radius float64, r Rect) bool {
	closestX := math.Max(r.Left(), math.Min(cx, r.Right()))
	closestY := math.Max(r.Top(), math.Min(cy, r.Bottom()))
	dx := cx - closestX
	dy := cy - closestY
	return dx*dx+dy*dy <= radius*radius
}

// pointInPolygon uses the even-odd rule over the polygon outline.
func pointInPolygon(x, y float64, polygon []Point) bool {
	inside := false
	j := len(polygon) - 1
	for i, p := range polygon {
		q := polygon[j]
		if (p.Y > y) != (q.Y > y) && x < (q.X-p.X)*(y-p.Y)/(q.Y-p.Y)+p.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

func orient(p, q, r Point) float64 {
	return (q.Y-p.Y)*(r.X-q.X) - (q.X-p.X)*(r.Y-q.Y)
}

func onSegment(p, q, r Point) bool {
	return math.Min(p.X, r.X) <= q.X && q.X <= math.Max(p.X, r.X) &&
		math.Min(p.Y, r.Y) <= q.Y && q.Y <= math.Max(p.Y, r.Y)
}

// segmentsIntersect reports whether segments a1-a2 and b1-b2 cross,
// including collinear touching.
func segmentsIntersect(a1, a2, b1, b2 Point) bool {
	o1 := orient(a1, a2, b1)
	o2 := orient(a1, a2, b2)
	o3 := orient(b1, b2, a1)
	o4 := orient(b1, b2, a2)

	if (o1 > 0) != (o2 > 0) && (o3 > 0) != (o4 > 0) {
		return true
	}
	if o1 == 0 && onSegment(a1, b1, a2) {
		return true
	}
	if o2 == 0 && onSegment(a1, b2, a2) {
		return true
	}
	if o3 == 0 && onSegment(b1, a1, b2) {
		return true
	}
	if o4 == 0 && onSegment(b1, a2, b2) {
		return true
	}
	return false
}

// pointSegmentDistanceSq returns the squared distance from a point to the
// segment a-b.
func pointSegmentDistanceSq(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx == 0 && dy == 0 {
		return distanceSq(p.X, p.Y, a.X, a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = clampFloat(t, 0, 1)
	return distanceSq(p.X, p.Y, a.X+t*dx, a.Y+t*dy)
}

// circlePolygonCollision reports whether a circle overlaps the polygon,
// either by containing its center or grazing an edge.
func circlePolygonCollision(cx, cy, radius float64, polygon []Point) bool {
	if pointInPolygon(cx, cy, polygon) {
		return true
	}
	radiusSq := radius * radius
	c := Point{cx, cy}
	for i := range polygon {
		a := polygon[i]
		b := polygon[(i+1)%len(polygon)]
		if pointSegmentDistanceSq(c, a, b) <= radiusSq {
			return true
		}
	}
	return false
}

// rectPolygonCollision reports whether a rectangle overlaps the polygon.
func rectPolygonCollision(r Rect, polygon []Point) bool {
	minX, maxX := polygon[0].X, polygon[0].X
	minY, maxY := polygon[0].Y, polygon[0].Y
	for _, p := range polygon[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	if !r.Overlaps(Rect{minX, minY, maxX - minX, maxY - minY}) {
		return false
	}

	corners := [4]Point{
		{r.Left(), r.Top()},
		{r.Right(), r.Top()},
		{r.Right(), r.Bottom()},
		{r.Left(), r.Bottom()},
	}
	for _, c := range corners {
		if pointInPolygon(c.X, c.Y, polygon) {
			return true
		}
	}
	for _, p := range polygon {
		if r.Contains(p.X, p.Y) {
			return true
		}
	}

	for i := 0; i < 4; i++ {
		ea, eb := corners[i], corners[(i+1)%4]
		for j := range polygon {
			pa := polygon[j]
			pb := polygon[(j+1)%len(polygon)]
			if segmentsIntersect(ea, eb, pa, pb) {
				return true
			}
		}
	}
	return false
}

// LineOfSightClearCells samples the segment at half-cell steps and reports
// whether every sampled cell is free of blocked cells. Out-of-grid samples
// are skipped.
func LineOfSightClearCells(x1, y1, x2, y2 float64, blocked map[Cell]struct{}, cellSize, gridCols, gridRows int) bool {
	if cellSize <= 0 || len(blocked) == 0 {
		return true
	}
	dx := x2 - x1
	dy := y2 - y1
	dist := math.Hypot(dx, dy)
	if dist <= 1e-6 {
		return true
	}
	step := math.Max(1.0, math.Min(float64(cellSize)*0.5, dist))
	samples := int(math.Ceil(dist / step))
	if samples < 1 {
		samples = 1
	}
	for i := 0; i <= samples; i++ {
		t := float64(i) / float64(samples)
		x := x1 + dx*t
		y := y1 + dy*t
		cx := int(math.Floor(x / float64(cellSize)))
		cy := int(math.Floor(y / float64(cellSize)))
		if cx < 0 || cy < 0 || cx >= gridCols || cy >= gridRows {
			continue
		}
		if _, ok := blocked[Cell{cx, cy}]; ok {
			return false
		}
	}
	return true
}

package systems

import "math"

// wallCheckHalfSpan bounds the candidate prefilter box around the mover.
const wallCheckHalfSpan = 100.0

// ResolveWallCollision moves a circle from (x, y) toward (nextX, nextY)
// one axis at a time. A wall blocking a sub-axis takes damage for that
// sub-axis; the axis is cancelled only while the wall survives the hit, so
// the killing blow lets the move pass through. Returns the final position
// and the number of damage hits landed.
func ResolveWallCollision(x, y, radius, nextX, nextY float64, walls []*Wall, set *WallSet, damage int) (float64, float64, int) {
	finalX, finalY := nextX, nextY
	hits := 0

	candidates := walls[:0:0]
	for _, w := range walls {
		if !w.Alive {
			continue
		}
		if math.Abs(w.Rect.CenterX()-x) < wallCheckHalfSpan && math.Abs(w.Rect.CenterY()-y) < wallCheckHalfSpan {
			candidates = append(candidates, w)
		}
	}

	for _, w := range candidates {
		if !w.CollidesCircle(nextX, y, radius) {
			continue
		}
		if w.Alive {
			set.Damage(w, damage)
			hits++
		}
		if w.Alive {
			finalX = x
			break
		}
	}

	for _, w := range candidates {
		if !w.CollidesCircle(finalX, nextY, radius) {
			continue
		}
		if w.Alive {
			set.Damage(w, damage)
			hits++
		}
		if w.Alive {
			finalY = y
			break
		}
	}

	return finalX, finalY, hits
}

// ApplyTileEdgeNudge biases a displacement away from the rims of adjacent
// wall cells so agents sliding along a wall face drift off its edge
// instead of grinding against it. Beveled corners of diagonal neighbors
// push slightly harder.
func ApplyTileEdgeNudge(x, y, dx, dy float64, cellSize int, wallCells map[Cell]struct{}, bevelCorners map[Cell][4]bool, gridCols, gridRows int) (float64, float64) {
	const (
		strength        = 0.03
		edgeMarginRatio = 0.15
		minMargin       = 2.0
	)
	if dx == 0 && dy == 0 {
		return dx, dy
	}
	if cellSize <= 0 || len(wallCells) == 0 {
		return dx, dy
	}
	cellX := int(math.Floor(x / float64(cellSize)))
	cellY := int(math.Floor(y / float64(cellSize)))
	if cellX < 0 || cellY < 0 || cellX >= gridCols || cellY >= gridRows {
		return dx, dy
	}
	speed := math.Hypot(dx, dy)
	if speed <= 0 {
		return dx, dy
	}

	edgeMargin := math.Max(minMargin, float64(cellSize)*edgeMarginRatio)
	leftDist := x - float64(cellX*cellSize)
	rightDist := float64((cellX+1)*cellSize) - x
	topDist := y - float64(cellY*cellSize)
	bottomDist := float64((cellY+1)*cellSize) - y

	push := func(dist, direction float64) float64 {
		if dist >= edgeMargin {
			return 0
		}
		ratio := (edgeMargin - dist) / edgeMargin
		return ratio * speed * strength * direction
	}

	if _, ok := wallCells[Cell{cellX - 1, cellY}]; ok {
		dx += push(leftDist, 1)
	}
	if _, ok := wallCells[Cell{cellX + 1, cellY}]; ok {
		dx += push(rightDist, -1)
	}
	if _, ok := wallCells[Cell{cellX, cellY - 1}]; ok {
		dy += push(topDist, 1)
	}
	if _, ok := wallCells[Cell{cellX, cellY + 1}]; ok {
		dy += push(bottomDist, -1)
	}

	if len(bevelCorners) > 0 {
		const boosted = 1.25
		cornerPush := func(distA, distB float64) float64 {
			if distA >= edgeMargin || distB >= edgeMargin {
				return 0
			}
			ratio := (edgeMargin - math.Min(distA, distB)) / edgeMargin
			return ratio * speed * strength * boosted
		}

		// Bevel indices run clockwise from top-left; a diagonal neighbor
		// only pushes when the corner facing us is beveled.
		if b, ok := bevelCorners[Cell{cellX - 1, cellY - 1}]; ok && b[2] {
			p := cornerPush(leftDist, topDist)
			dx += p
			dy += p
		}
		if b, ok := bevelCorners[Cell{cellX + 1, cellY - 1}]; ok && b[3] {
			p := cornerPush(rightDist, topDist)
			dx -= p
			dy += p
		}
		if b, ok := bevelCorners[Cell{cellX + 1, cellY + 1}]; ok && b[0] {
			p := cornerPush(rightDist, bottomDist)
			dx -= p
			dy -= p
		}
		if b, ok := bevelCorners[Cell{cellX - 1, cellY + 1}]; ok && b[1] {
			p := cornerPush(leftDist, bottomDist)
			dx += p
			dy -= p
		}
	}

	return dx, dy
}

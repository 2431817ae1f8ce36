package geometry

import "math"

// DistanceToSegment returns the shortest distance from p to the segment a-b.
func DistanceToSegment(p, a, b Point2D) float64 {
	lenSq := distSq(a, b)
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)) / lenSq
	t = math.Max(0, math.Min(1, t))
	proj := Point2D{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
	return p.Distance(proj)
}

// OnRing reports whether p lies within tol of any edge of the ring. The ring
// may or may not repeat its first vertex at the end.
func OnRing(p Point2D, ring []Point2D, tol float64) bool {
	n := len(ring)
	if n == 0 {
		return false
	}
	if n == 1 {
		return p.Distance(ring[0]) <= tol
	}
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[(i+1)%n]
		if DistanceToSegment(p, a, b) <= tol {
			return true
		}
	}
	return false
}

// distSq computes the squared distance between two points.
func distSq(a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}

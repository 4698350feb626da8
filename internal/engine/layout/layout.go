// Package layout computes initial canvas positions for new child nodes.
// Children fan out around their parent inside an angular range derived
// from the parent's own spawn direction, using a recursive-quartering
// sequence so siblings stay maximally spread before all of them exist.
package layout

import (
	"math"

	"treeline/internal/engine/graph"
)

const (
	// FullCircle is the candidate range for root-level nodes.
	FullCircle = 2 * math.Pi
	// ChildCone is the 90-degree range centered on the parent's spawn angle.
	ChildCone = math.Pi / 2
)

// Fraction returns the position of the nth slot in the quartering
// sequence: 0, 1/4, 1/2, 3/4, then the midpoints of each adjacent pair
// (1/8, 3/8, 5/8, 7/8), then their midpoints, and so on.
func Fraction(n int) float64 {
	if n < 0 {
		n = 0
	}
	if n < 4 {
		return float64(n) / 4
	}
	m := n - 4
	size := 4
	for m >= size {
		m -= size
		size *= 2
	}
	return float64(2*m+1) / float64(size*2)
}

// ChildAngle returns the absolute angle for the nth child. A root-level
// node sweeps the full circle; a child is confined to a cone centered on
// the parent's spawn angle.
func ChildAngle(spawnAngle float64, constrained bool, n int) float64 {
	f := Fraction(n)
	if !constrained {
		return f * FullCircle
	}
	return spawnAngle - ChildCone/2 + f*ChildCone
}

// SpawnAngle derives the angle at which child was spawned relative to its
// parent, from their current positions.
func SpawnAngle(parent, child graph.Position) float64 {
	return math.Atan2(child.Y-parent.Y, child.X-parent.X)
}

// Offset converts an angle and radius to a Cartesian offset.
func Offset(angle, radius float64) (dx, dy float64) {
	return radius * math.Cos(angle), radius * math.Sin(angle)
}

// ChildPosition places the nth child of a parent. When grandparent is nil
// the parent is treated as a root and the child may spawn in any
// direction; otherwise the child is confined to the parent's spawn cone.
func ChildPosition(parent graph.Position, grandparent *graph.Position, n int, radius float64) graph.Position {
	constrained := grandparent != nil
	spawn := 0.0
	if constrained {
		spawn = SpawnAngle(*grandparent, parent)
	}
	angle := ChildAngle(spawn, constrained, n)
	dx, dy := Offset(angle, radius)
	return graph.Position{X: parent.X + dx, Y: parent.Y + dy}
}

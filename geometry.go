// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"honnef.co/go/curve"

	"github.com/TheNeeloy/diffraster/dmath"
)

const epsilon = 1e-12

// pixelCenter maps pixel index ix on an axis with n pixels to NDC, placing
// centers at (2*ix+1)/n - 1. Index 0 is the left/top edge; NDC v grows
// downward.
func pixelCenter(ix, n int) float64 {
	return (2*float64(ix)+1)/float64(n) - 1
}

func pixelCenterPt(x, y, width, height int) curve.Point {
	return curve.Point{X: pixelCenter(x, width), Y: pixelCenter(y, height)}
}

func vdot(a, b curve.Vec2) float64 { return a.X*b.X + a.Y*b.Y }

func vcross(a, b curve.Vec2) float64 { return a.X*b.Y - a.Y*b.X }

// triArea2 returns twice the signed area of the screen-space triangle
// (a, b, c). With v growing downward, counterclockwise image-space winding
// yields a positive value; triangles with |area| below epsilon are treated
// as degenerate and never cover.
func triArea2(a, b, c curve.Point) float64 {
	return vcross(b.Sub(a), c.Sub(a))
}

// barycentric returns the area-ratio coordinates of p with respect to
// (a, b, c), given the triangle's doubled signed area e. The three weights
// sum to 1 for any p; all are non-negative exactly when p is inside.
func barycentric(p, a, b, c curve.Point, e float64) [3]float64 {
	return [3]float64{
		vcross(c.Sub(b), p.Sub(b)) / e,
		vcross(a.Sub(c), p.Sub(c)) / e,
		vcross(b.Sub(a), p.Sub(a)) / e,
	}
}

// baryGrads returns the partial derivatives of each barycentric coordinate
// with respect to each vertex: grads[i][j] is d b_i / d v_j, where v_0 = a,
// v_1 = b, v_2 = c. bary must be the coordinates of the same p, e the same
// doubled area.
func baryGrads(p, a, b, c curve.Point, bary [3]float64, e float64) [3][3]curve.Vec2 {
	// d cross(u, w)/du = (w.Y, -w.X), d cross(u, w)/dw = (-u.Y, u.X).
	// b_i = A_i/e, so d b_i/d v = (d A_i/d v - b_i * d e/d v) / e.
	ie := 1 / e

	de := [3]curve.Vec2{}
	{
		u := b.Sub(a)
		w := c.Sub(a)
		de[1] = curve.Vec(w.Y, -w.X)
		de[2] = curve.Vec(-u.Y, u.X)
		de[0] = curve.Vec(-de[1].X-de[2].X, -de[1].Y-de[2].Y)
	}

	var dA [3][3]curve.Vec2
	{
		// A_0 = cross(c-b, p-b)
		u := c.Sub(b)
		w := p.Sub(b)
		dA[0][1] = curve.Vec(u.Y-w.Y, w.X-u.X)
		dA[0][2] = curve.Vec(w.Y, -w.X)
	}
	{
		// A_1 = cross(a-c, p-c)
		u := a.Sub(c)
		w := p.Sub(c)
		dA[1][2] = curve.Vec(u.Y-w.Y, w.X-u.X)
		dA[1][0] = curve.Vec(w.Y, -w.X)
	}
	{
		// A_2 = cross(b-a, p-a)
		u := b.Sub(a)
		w := p.Sub(a)
		dA[2][0] = curve.Vec(u.Y-w.Y, w.X-u.X)
		dA[2][1] = curve.Vec(w.Y, -w.X)
	}

	var grads [3][3]curve.Vec2
	for i := range 3 {
		for j := range 3 {
			grads[i][j] = curve.Vec(
				(dA[i][j].X-bary[i]*de[j].X)*ie,
				(dA[i][j].Y-bary[i]*de[j].Y)*ie,
			)
		}
	}
	return grads
}

// segDistance returns the distance from p to segment [a, b] and the
// parameter of the closest point, clamped to the segment.
func segDistance(p, a, b curve.Point) (dist, t float64) {
	d := b.Sub(a)
	len2 := vdot(d, d)
	if len2 < epsilon {
		return p.Sub(a).Hypot(), 0
	}
	t = dmath.Clamp(vdot(p.Sub(a), d)/len2, 0, 1)
	q := a.Lerp(b, t)
	return p.Sub(q).Hypot(), t
}

// segDistanceGrads returns the partial derivatives of segDistance's dist
// with respect to the endpoints, holding the clamped t fixed (exact away
// from the clamp transitions, one-sided at them). Zero when p coincides
// with the closest point.
func segDistanceGrads(p, a, b curve.Point, dist, t float64) (da, db curve.Vec2) {
	if dist < epsilon {
		return curve.Vec2{}, curve.Vec2{}
	}
	q := a.Lerp(b, t)
	n := p.Sub(q)
	inv := 1 / dist
	// d dist/d q = -n/dist, q = (1-t)a + t*b
	da = curve.Vec(-(1-t)*n.X*inv, -(1-t)*n.Y*inv)
	db = curve.Vec(-t*n.X*inv, -t*n.Y*inv)
	return da, db
}

// edgeDistance returns the unsigned distance from p to the triangle
// boundary, the index of the nearest edge (0: a-b, 1: b-c, 2: c-a), and the
// closest-point parameter along that edge.
func edgeDistance(p, a, b, c curve.Point) (dist float64, edge int, t float64) {
	dist, t = segDistance(p, a, b)
	edge = 0
	if d1, t1 := segDistance(p, b, c); d1 < dist {
		dist, edge, t = d1, 1, t1
	}
	if d2, t2 := segDistance(p, c, a); d2 < dist {
		dist, edge, t = d2, 2, t2
	}
	return dist, edge, t
}

// edgeVerts maps an edge index to its endpoint vertex indices.
func edgeVerts(edge int) (int, int) {
	switch edge {
	case 0:
		return 0, 1
	case 1:
		return 1, 2
	default:
		return 2, 0
	}
}

// perspectiveCorrect converts screen-space barycentrics to world-space
// barycentrics given the vertices' canonical depths. Depths are positive
// past the near clip, so the denominator only vanishes for degenerate
// weights.
func perspectiveCorrect(bary [3]float64, z [3]float64) [3]float64 {
	t0 := bary[0] / z[0]
	t1 := bary[1] / z[1]
	t2 := bary[2] / z[2]
	s := t0 + t1 + t2
	if s == 0 {
		return bary
	}
	is := 1 / s
	return [3]float64{t0 * is, t1 * is, t2 * is}
}

// interpDepth interpolates vertex depths with the given weights.
func interpDepth(bary [3]float64, z [3]float64) float64 {
	return bary[0]*z[0] + bary[1]*z[1] + bary[2]*z[2]
}

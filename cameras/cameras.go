// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package cameras

import (
	"honnef.co/go/curve"

	"github.com/TheNeeloy/diffraster/dmath"
)

// A Camera maps world-space points to normalized screen coordinates and
// raw view-space depth. Screen coordinates follow the NDC convention of the
// rasterizer: u grows rightward, v grows downward, and the image spans
// [-1, 1] on both axes. Depth is reported in the camera's native sign; the
// rasterizer canonicalizes it according to its depth convention setting.
//
// Jacobian returns the partial derivatives of (u, v, depth) with respect to
// the world position, as a row-major matrix with rows (u, v, depth) and
// columns (x, y, z). It must stay consistent with Project for gradient
// correctness.
type Camera interface {
	Project(p dmath.Vec3) (curve.Point, float64)
	Jacobian(p dmath.Vec3) dmath.Mat3
}

// Orthographic projects along the view z axis without foreshortening:
//
//	u = FocalX*x' + CenterX, v = FocalY*y' + CenterY, depth = z'
//
// where (x', y', z') = R*p + T.
type Orthographic struct {
	FocalX, FocalY   float64
	CenterX, CenterY float64
	R                dmath.Mat3
	T                dmath.Vec3
}

// NewOrthographic returns an identity orthographic camera: unit focal
// lengths, no offset, world space equal to view space.
func NewOrthographic() *Orthographic {
	return &Orthographic{FocalX: 1, FocalY: 1, R: dmath.Identity}
}

func (c *Orthographic) Project(p dmath.Vec3) (curve.Point, float64) {
	w := c.R.MulVec(p).Add(c.T)
	return curve.Point{X: c.FocalX*w.X + c.CenterX, Y: c.FocalY*w.Y + c.CenterY}, w.Z
}

func (c *Orthographic) Jacobian(dmath.Vec3) dmath.Mat3 {
	r0 := c.R.Row(0).Mul(c.FocalX)
	r1 := c.R.Row(1).Mul(c.FocalY)
	r2 := c.R.Row(2)
	return dmath.Mat3{
		r0.X, r0.Y, r0.Z,
		r1.X, r1.Y, r1.Z,
		r2.X, r2.Y, r2.Z,
	}
}

// Perspective projects through a pinhole at the view-space origin, looking
// down +z:
//
//	u = FocalX*x'/z' + CenterX, v = FocalY*y'/z' + CenterY, depth = z'
//
// where (x', y', z') = R*p + T. Focal lengths are in NDC units per world
// unit. Points at z' = 0 project to infinities; the rasterizer's near clip
// discards them before they reach any coverage test.
type Perspective struct {
	FocalX, FocalY   float64
	CenterX, CenterY float64
	R                dmath.Mat3
	T                dmath.Vec3
}

// NewPerspective returns a pinhole camera with the given focal lengths and
// an identity world-to-view transform.
func NewPerspective(fx, fy float64) *Perspective {
	return &Perspective{FocalX: fx, FocalY: fy, R: dmath.Identity}
}

func (c *Perspective) Project(p dmath.Vec3) (curve.Point, float64) {
	w := c.R.MulVec(p).Add(c.T)
	return curve.Point{X: c.FocalX*w.X/w.Z + c.CenterX, Y: c.FocalY*w.Y/w.Z + c.CenterY}, w.Z
}

func (c *Perspective) Jacobian(p dmath.Vec3) dmath.Mat3 {
	w := c.R.MulVec(p).Add(c.T)
	r0, r1, r2 := c.R.Row(0), c.R.Row(1), c.R.Row(2)
	iz := 1 / w.Z
	// d(fx*x'/z')/dp = fx/z' * dx'/dp - fx*x'/z'^2 * dz'/dp
	ju := r0.Mul(c.FocalX * iz).Sub(r2.Mul(c.FocalX * w.X * iz * iz))
	jv := r1.Mul(c.FocalY * iz).Sub(r2.Mul(c.FocalY * w.Y * iz * iz))
	return dmath.Mat3{
		ju.X, ju.Y, ju.Z,
		jv.X, jv.Y, jv.Z,
		r2.X, r2.Y, r2.Z,
	}
}

// LookAt builds a world-to-view rigid transform for a camera at eye gazing
// toward at. View z grows along the gaze direction, so the result pairs
// with the forward depth convention. World up maps to growing v, which is
// downward on the image; use a negative FocalY for up-is-up images.
func LookAt(eye, at, up dmath.Vec3) (dmath.Mat3, dmath.Vec3) {
	zv := at.Sub(eye).Normalize()
	xv := up.Cross(zv).Normalize()
	yv := zv.Cross(xv)
	r := dmath.Mat3{
		xv.X, xv.Y, xv.Z,
		yv.X, yv.Y, yv.Z,
		zv.X, zv.Y, zv.Z,
	}
	t := r.MulVec(eye).Mul(-1)
	return r, t
}

// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"math"

	"honnef.co/go/curve"

	"github.com/TheNeeloy/diffraster/cameras"
	"github.com/TheNeeloy/diffraster/dmath"
	"github.com/TheNeeloy/diffraster/mem"
	"github.com/TheNeeloy/diffraster/scene"
)

// meshProjection holds the projector outputs for one call, in the same
// batch-flat layout as the input meshes. Vertices of invalid faces still
// get projected; validity is a per-face property.
type meshProjection struct {
	screen []curve.Point // batch*maxVerts
	depth  []float64     // batch*maxVerts, canonical
	jac    []dmath.Mat3  // batch*maxVerts, nil unless gradients are on
	valid  []bool        // batch*maxFaces
	area2  []float64     // batch*maxFaces, screen-space doubled signed area
	bbox   []curve.Rect  // batch*maxFaces, dilated by the blur radius
}

// allocSlice picks between the arena (per-call scratch) and the heap
// (state retained for Backward, which must survive the arena's reset on
// the next forward call).
func allocSlice[S ~[]E, E any](a *mem.Arena, heap bool, n int) S {
	if heap {
		return make(S, n)
	}
	return mem.NewSlice[S](a, n, n)
}

func projectMeshes(fc *frameConfig, cams []cameras.Camera, m *scene.Meshes, a *mem.Arena) (*meshProjection, error) {
	b := m.Batch()
	nv := b * m.MaxVerts()
	nf := b * m.MaxFaces()
	// Backward only needs the per-vertex state; per-face scratch always
	// lives on the arena.
	p := &meshProjection{
		screen: allocSlice[[]curve.Point](a, fc.gradients, nv),
		depth:  allocSlice[[]float64](a, fc.gradients, nv),
		valid:  allocSlice[[]bool](a, false, nf),
		area2:  allocSlice[[]float64](a, false, nf),
		bbox:   allocSlice[[]curve.Rect](a, false, nf),
	}
	if fc.gradients {
		p.jac = make([]dmath.Mat3, nv)
	}
	err := parallelFor(fc.workers, b, func(s int) error {
		p.projectScene(fc, sceneCamera(cams, s), m, s)
		return nil
	})
	return p, err
}

func (p *meshProjection) projectScene(fc *frameConfig, cam cameras.Camera, m *scene.Meshes, s int) {
	vbase := s * m.MaxVerts()
	for i := 0; i < m.VertCount(s); i++ {
		world := m.Vert(s, i)
		pt, d := cam.Project(world)
		p.screen[vbase+i] = pt
		p.depth[vbase+i] = fc.depthSign * d
		if p.jac != nil {
			p.jac[vbase+i] = canonicalJacobian(cam.Jacobian(world), fc.depthSign)
		}
	}

	fbase := s * m.MaxFaces()
	for i := 0; i < m.FaceCount(s); i++ {
		f := m.Face(s, i)
		v0 := p.screen[vbase+int(f[0])]
		v1 := p.screen[vbase+int(f[1])]
		v2 := p.screen[vbase+int(f[2])]
		area := triArea2(v0, v1, v2)
		p.area2[fbase+i] = area

		ok := p.depth[vbase+int(f[0])] > fc.near &&
			p.depth[vbase+int(f[1])] > fc.near &&
			p.depth[vbase+int(f[2])] > fc.near &&
			ptFinite(v0) && ptFinite(v1) && ptFinite(v2)
		if fc.cull && area <= 0 {
			ok = false
		}
		p.valid[fbase+i] = ok
		if ok {
			p.bbox[fbase+i] = triBBox(v0, v1, v2, fc.blur)
		}
	}
}

// pointProjection is the projector output for point clouds. A point is
// valid when it is past the near clip, projects to finite coordinates, and
// has a positive radius; zero and negative radii never cover.
type pointProjection struct {
	screen []curve.Point
	depth  []float64
	jac    []dmath.Mat3
	valid  []bool
	bbox   []curve.Rect
}

func projectPoints(fc *frameConfig, cams []cameras.Camera, pc *scene.PointClouds, a *mem.Arena) (*pointProjection, error) {
	n := pc.Batch() * pc.MaxPoints()
	p := &pointProjection{
		screen: allocSlice[[]curve.Point](a, fc.gradients, n),
		depth:  allocSlice[[]float64](a, fc.gradients, n),
		valid:  allocSlice[[]bool](a, false, n),
		bbox:   allocSlice[[]curve.Rect](a, false, n),
	}
	if fc.gradients {
		p.jac = make([]dmath.Mat3, n)
	}
	err := parallelFor(fc.workers, pc.Batch(), func(s int) error {
		cam := sceneCamera(cams, s)
		base := s * pc.MaxPoints()
		for i := 0; i < pc.Count(s); i++ {
			world := pc.Point(s, i)
			pt, d := cam.Project(world)
			depth := fc.depthSign * d
			r := pc.Radius(s, i)
			p.screen[base+i] = pt
			p.depth[base+i] = depth
			if p.jac != nil {
				p.jac[base+i] = canonicalJacobian(cam.Jacobian(world), fc.depthSign)
			}
			ok := depth > fc.near && ptFinite(pt) && r > 0 && !math.IsInf(r, 0)
			p.valid[base+i] = ok
			if ok {
				reach := r + fc.blur
				p.bbox[base+i] = curve.Rect{
					X0: pt.X - reach,
					Y0: pt.Y - reach,
					X1: pt.X + reach,
					Y1: pt.Y + reach,
				}
			}
		}
		return nil
	})
	return p, err
}

// sceneCamera resolves the per-scene camera; a single camera is shared by
// the whole batch.
func sceneCamera(cams []cameras.Camera, s int) cameras.Camera {
	if len(cams) == 1 {
		return cams[0]
	}
	return cams[s]
}

// canonicalJacobian flips the depth row so the Jacobian matches canonical
// depth.
func canonicalJacobian(j dmath.Mat3, depthSign float64) dmath.Mat3 {
	if depthSign < 0 {
		j[6], j[7], j[8] = -j[6], -j[7], -j[8]
	}
	return j
}

func ptFinite(p curve.Point) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

func triBBox(a, b, c curve.Point, blur float64) curve.Rect {
	return curve.Rect{
		X0: min(a.X, b.X, c.X) - blur,
		Y0: min(a.Y, b.Y, c.Y) - blur,
		X1: max(a.X, b.X, c.X) + blur,
		Y1: max(a.Y, b.Y, c.Y) + blur,
	}
}

// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"fmt"
	"math"
	"time"

	"honnef.co/go/curve"

	"github.com/TheNeeloy/diffraster/dmath"
	"github.com/TheNeeloy/diffraster/grad"
	"github.com/TheNeeloy/diffraster/scene"
)

// meshTape retains the projected state Backward needs to redistribute
// fragment gradients onto mesh vertices. It is recorded only when
// Settings.Gradients is set and holds heap memory independent of the
// Rasterizer's scratch arena.
type meshTape struct {
	fc     frameConfig
	meshes *scene.Meshes
	screen []curve.Point
	depth  []float64
	jac    []dmath.Mat3
}

type pointTape struct {
	fc     frameConfig
	clouds *scene.PointClouds
	screen []curve.Point
	depth  []float64
	jac    []dmath.Mat3
}

// MeshGradOutput carries the loss gradients flowing into each fragment
// channel of a MeshFragments. A nil slice means zero gradient for that
// channel; non-nil slices must match the forward output lengths.
type MeshGradOutput struct {
	Bary   []float64 // batch*H*W*K*3
	Depths []float64 // batch*H*W*K
	Dists  []float64 // batch*H*W*K
}

// MeshGrads holds the accumulated loss gradients with respect to the input
// vertex positions, indexed like the padded vertex array of the input batch.
type MeshGrads struct {
	Batch    int
	MaxVerts int
	Verts    []dmath.Vec3
}

// Vert returns the gradient for vertex i of the given scene.
func (g *MeshGrads) Vert(scene, i int) dmath.Vec3 {
	return g.Verts[scene*g.MaxVerts+i]
}

// Backward redistributes fragment gradients onto the vertices that produced
// them, summing over all contributing fragments. It consumes the recorded
// gradient state: a second call, or a call on fragments rasterized without
// Settings.Gradients, fails with ErrGradientsUnavailable.
func (f *MeshFragments) Backward(g MeshGradOutput) (*MeshGrads, error) {
	t := f.tape
	if t == nil {
		return nil, ErrGradientsUnavailable
	}
	n := f.Batch * f.Height * f.Width * f.K
	if g.Bary != nil && len(g.Bary) != n*3 {
		return nil, gradShapeError("bary", len(g.Bary), n*3)
	}
	if g.Depths != nil && len(g.Depths) != n {
		return nil, gradShapeError("depth", len(g.Depths), n)
	}
	if g.Dists != nil && len(g.Dists) != n {
		return nil, gradShapeError("dist", len(g.Dists), n)
	}

	start := time.Now()
	m := t.meshes
	acc := grad.NewVec3Sum(m.Batch() * m.MaxVerts())
	err := parallelFor(t.fc.workers, f.Batch*f.Height, func(item int) error {
		s, y := item/f.Height, item%f.Height
		backwardMeshRow(t, f, &g, acc, s, y)
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.tape = nil
	f.Diag.BackwardTime = time.Since(start)
	Logger().Debug("accumulated mesh gradients",
		"scenes", m.Batch(),
		"backward", f.Diag.BackwardTime)
	return &MeshGrads{
		Batch:    m.Batch(),
		MaxVerts: m.MaxVerts(),
		Verts:    acc.Values(),
	}, nil
}

func backwardMeshRow(t *meshTape, f *MeshFragments, g *MeshGradOutput, acc *grad.Vec3Sum, s, y int) {
	m := t.meshes
	vbase := s * m.MaxVerts()
	for x := range f.Width {
		px := pixelCenterPt(x, y, f.Width, f.Height)
		for k := range f.K {
			idx := f.Index(s, y, x, k)
			id := f.IDs[idx]
			if id < 0 {
				continue
			}
			var gb [3]float64
			if g.Bary != nil {
				gb = [3]float64{g.Bary[idx*3], g.Bary[idx*3+1], g.Bary[idx*3+2]}
			}
			var gz, gd float64
			if g.Depths != nil {
				gz = g.Depths[idx]
			}
			if g.Dists != nil {
				gd = g.Dists[idx]
			}
			if gb == ([3]float64{}) && gz == 0 && gd == 0 {
				continue
			}

			face := m.Face(s, int(id))
			a := t.screen[vbase+int(face[0])]
			b := t.screen[vbase+int(face[1])]
			c := t.screen[vbase+int(face[2])]
			z := [3]float64{
				t.depth[vbase+int(face[0])],
				t.depth[vbase+int(face[1])],
				t.depth[vbase+int(face[2])],
			}
			e := triArea2(a, b, c)
			if math.Abs(e) < epsilon {
				continue
			}
			bary := barycentric(px, a, b, c, e)

			gbRaw, gzOut := backwardDepthChain(t.fc.perspective, bary, z, gb, gz)

			var guv [3]curve.Vec2
			bg := baryGrads(px, a, b, c, bary, e)
			for i := range 3 {
				if gbRaw[i] == 0 {
					continue
				}
				for j := range 3 {
					guv[j].X += gbRaw[i] * bg[i][j].X
					guv[j].Y += gbRaw[i] * bg[i][j].Y
				}
			}

			if gd != 0 {
				dist, edge, et := edgeDistance(px, a, b, c)
				sign := 1.0
				if bary[0] >= 0 && bary[1] >= 0 && bary[2] >= 0 {
					sign = -1
				}
				verts := [3]curve.Point{a, b, c}
				i0, i1 := edgeVerts(edge)
				da, db := segDistanceGrads(px, verts[i0], verts[i1], dist, et)
				guv[i0].X += gd * sign * da.X
				guv[i0].Y += gd * sign * da.Y
				guv[i1].X += gd * sign * db.X
				guv[i1].Y += gd * sign * db.Y
			}

			for j := range 3 {
				if guv[j] == (curve.Vec2{}) && gzOut[j] == 0 {
					continue
				}
				jt := t.jac[vbase+int(face[j])].Transpose()
				gw := jt.MulVec(dmath.Vec3{X: guv[j].X, Y: guv[j].Y, Z: gzOut[j]})
				acc.Add(m.VertIndex(s, int(face[j])), gw)
			}
		}
	}
}

// backwardDepthChain pulls the gradients on the output weights and the
// interpolated depth back onto the raw screen barycentrics and the vertex
// depths. In perspective-correct mode the weights themselves depend on the
// depths, so both paths flow through the normalization.
func backwardDepthChain(perspective bool, bary, z [3]float64, gb [3]float64, gz float64) (gbRaw, gzOut [3]float64) {
	if !perspective {
		for i := range 3 {
			gbRaw[i] = gb[i] + gz*z[i]
			gzOut[i] = gz * bary[i]
		}
		return gbRaw, gzOut
	}
	t := [3]float64{bary[0] / z[0], bary[1] / z[1], bary[2] / z[2]}
	s := t[0] + t[1] + t[2]
	if s == 0 {
		// The forward pass fell back to the uncorrected weights.
		for i := range 3 {
			gbRaw[i] = gb[i] + gz*z[i]
			gzOut[i] = gz * bary[i]
		}
		return gbRaw, gzOut
	}
	is2 := 1 / (s * s)
	var gbo, gbt [3]float64
	for i := range 3 {
		gbo[i] = gb[i] + gz*z[i]
	}
	for j := range 3 {
		for i := range 3 {
			m := -t[i] * is2
			if i == j {
				m += 1 / s
			}
			gbt[j] += gbo[i] * m
		}
	}
	for j := range 3 {
		gbRaw[j] = gbt[j] / z[j]
		gzOut[j] = gz*(t[j]/s) - gbt[j]*bary[j]/(z[j]*z[j])
	}
	return gbRaw, gzOut
}

// PointGradOutput carries the loss gradients flowing into each fragment
// channel of a PointFragments. A nil slice means zero gradient for that
// channel.
type PointGradOutput struct {
	Weights []float64 // batch*H*W*K
	Depths  []float64 // batch*H*W*K
	Dists2  []float64 // batch*H*W*K
}

// PointGrads holds the accumulated loss gradients with respect to the input
// point centers and radii, indexed like the padded point array of the input
// batch.
type PointGrads struct {
	Batch     int
	MaxPoints int
	Points    []dmath.Vec3
	Radii     []float64
}

// Point returns the center gradient for point i of the given scene.
func (g *PointGrads) Point(scene, i int) dmath.Vec3 {
	return g.Points[scene*g.MaxPoints+i]
}

// Radius returns the radius gradient for point i of the given scene.
func (g *PointGrads) Radius(scene, i int) float64 {
	return g.Radii[scene*g.MaxPoints+i]
}

// Backward redistributes fragment gradients onto the points that produced
// them. It consumes the recorded gradient state, like MeshFragments.Backward.
func (f *PointFragments) Backward(g PointGradOutput) (*PointGrads, error) {
	t := f.tape
	if t == nil {
		return nil, ErrGradientsUnavailable
	}
	n := f.Batch * f.Height * f.Width * f.K
	if g.Weights != nil && len(g.Weights) != n {
		return nil, gradShapeError("weight", len(g.Weights), n)
	}
	if g.Depths != nil && len(g.Depths) != n {
		return nil, gradShapeError("depth", len(g.Depths), n)
	}
	if g.Dists2 != nil && len(g.Dists2) != n {
		return nil, gradShapeError("dist2", len(g.Dists2), n)
	}

	start := time.Now()
	pc := t.clouds
	centers := grad.NewVec3Sum(pc.Batch() * pc.MaxPoints())
	radii := grad.NewFloatSum(pc.Batch() * pc.MaxPoints())
	err := parallelFor(t.fc.workers, f.Batch*f.Height, func(item int) error {
		s, y := item/f.Height, item%f.Height
		backwardPointRow(t, f, &g, centers, radii, s, y)
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.tape = nil
	f.Diag.BackwardTime = time.Since(start)
	Logger().Debug("accumulated point gradients",
		"scenes", pc.Batch(),
		"backward", f.Diag.BackwardTime)
	return &PointGrads{
		Batch:     pc.Batch(),
		MaxPoints: pc.MaxPoints(),
		Points:    centers.Values(),
		Radii:     radii.Values(),
	}, nil
}

func backwardPointRow(t *pointTape, f *PointFragments, g *PointGradOutput, centers *grad.Vec3Sum, radii *grad.FloatSum, s, y int) {
	pc := t.clouds
	pbase := s * pc.MaxPoints()
	for x := range f.Width {
		px := pixelCenterPt(x, y, f.Width, f.Height)
		for k := range f.K {
			idx := f.Index(s, y, x, k)
			id := f.IDs[idx]
			if id < 0 {
				continue
			}
			var gw, gz, gd2 float64
			if g.Weights != nil {
				gw = g.Weights[idx]
			}
			if g.Depths != nil {
				gz = g.Depths[idx]
			}
			if g.Dists2 != nil {
				gd2 = g.Dists2[idx]
			}
			if gw == 0 && gz == 0 && gd2 == 0 {
				continue
			}

			pi := pbase + int(id)
			d := px.Sub(t.screen[pi])
			d2 := d.X*d.X + d.Y*d.Y
			r := pc.Radii()[pi]

			// weight = 1 - d2/r^2 and dist2 = d2, with d = pixel - center.
			gTotal := gd2 - gw/(r*r)
			gcu := -2 * d.X * gTotal
			gcv := -2 * d.Y * gTotal
			if gcu != 0 || gcv != 0 || gz != 0 {
				jt := t.jac[pi].Transpose()
				gc := jt.MulVec(dmath.Vec3{X: gcu, Y: gcv, Z: gz})
				centers.Add(pc.PointIndex(s, int(id)), gc)
			}
			if gw != 0 {
				radii.Add(pc.PointIndex(s, int(id)), gw*2*d2/(r*r*r))
			}
		}
	}
}

func gradShapeError(channel string, got, want int) error {
	return &scene.ShapeError{
		Scene:  -1,
		Reason: fmt.Sprintf("%s gradient length %d, want %d", channel, got, want),
	}
}

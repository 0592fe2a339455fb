// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"math"

	"github.com/TheNeeloy/diffraster/scene"
)

// meshFrag is one slot of the per-pixel nearest-K buffer during fine
// rasterization of meshes.
type meshFrag struct {
	id    int32
	depth float64
	bary  [3]float64
	dist  float64
}

// rasterizeMeshTiles resolves per-pixel coverage for every tile, in parallel
// over (scene, tile). Each work item owns a disjoint pixel block of the
// output, so the fragment buffers are written without synchronization.
func rasterizeMeshTiles(fc *frameConfig, p *meshProjection, m *scene.Meshes, bins *coarseBins, out *MeshFragments) error {
	tiles := fc.grid.count()
	return parallelFor(fc.workers, m.Batch()*tiles, func(item int) error {
		s, t := item/tiles, item%tiles
		cand := bins.tile(s, t, tiles)
		if len(cand) == 0 {
			return nil
		}
		tx, ty := t%fc.grid.wide, t/fc.grid.wide
		x0, y0, x1, y1 := fc.grid.pixelBounds(tx, ty, fc.width, fc.height)
		shadeMeshTile(fc, p, m, s, cand, x0, y0, x1, y1, out)
		return nil
	})
}

func shadeMeshTile(fc *frameConfig, p *meshProjection, m *scene.Meshes, s int, cand []int32, x0, y0, x1, y1 int, out *MeshFragments) {
	slots := make([]meshFrag, 0, fc.k)
	vbase := s * m.MaxVerts()
	fbase := s * m.MaxFaces()
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			slots = slots[:0]
			px := pixelCenterPt(x, y, fc.width, fc.height)
			for _, id := range cand {
				fi := fbase + int(id)
				e := p.area2[fi]
				if math.Abs(e) < epsilon {
					continue
				}
				face := m.Face(s, int(id))
				a := p.screen[vbase+int(face[0])]
				b := p.screen[vbase+int(face[1])]
				c := p.screen[vbase+int(face[2])]

				bary := barycentric(px, a, b, c, e)
				inside := bary[0] >= 0 && bary[1] >= 0 && bary[2] >= 0
				dist, _, _ := edgeDistance(px, a, b, c)
				if inside {
					dist = -dist
				} else if dist > fc.blur {
					continue
				}

				z := [3]float64{
					p.depth[vbase+int(face[0])],
					p.depth[vbase+int(face[1])],
					p.depth[vbase+int(face[2])],
				}
				w := bary
				if fc.perspective {
					w = perspectiveCorrect(bary, z)
				}
				zf := interpDepth(w, z)
				// Blur-band pixels extrapolate outside the triangle, which
				// can push depth behind the camera or to a non-finite value.
				if !(zf > fc.near) {
					continue
				}

				slots = insertMeshFrag(slots, fc.k, meshFrag{
					id:    id,
					depth: zf,
					bary:  w,
					dist:  dist,
				})
			}
			writeMeshFrags(out, s, y, x, slots)
		}
	}
}

// insertMeshFrag inserts f into the depth-sorted slot buffer, evicting the
// farthest slot once k are held. Depth ties keep the incumbent, so earlier
// (lower) ids win.
func insertMeshFrag(slots []meshFrag, k int, f meshFrag) []meshFrag {
	n := len(slots)
	if n == k {
		if !(f.depth < slots[n-1].depth) {
			return slots
		}
		n--
	}
	pos := n
	for pos > 0 && slots[pos-1].depth > f.depth {
		pos--
	}
	slots = slots[:n+1]
	copy(slots[pos+1:], slots[pos:n])
	slots[pos] = f
	return slots
}

func writeMeshFrags(out *MeshFragments, s, y, x int, slots []meshFrag) {
	base := out.Index(s, y, x, 0)
	for i, f := range slots {
		out.IDs[base+i] = f.id
		out.Depths[base+i] = f.depth
		out.Dists[base+i] = f.dist
		bb := (base + i) * 3
		out.Bary[bb] = f.bary[0]
		out.Bary[bb+1] = f.bary[1]
		out.Bary[bb+2] = f.bary[2]
	}
}

// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"github.com/TheNeeloy/diffraster/scene"
)

// pointFrag is one slot of the per-pixel nearest-K buffer during fine
// rasterization of point clouds.
type pointFrag struct {
	id     int32
	depth  float64
	weight float64
	dist2  float64
}

func rasterizePointTiles(fc *frameConfig, p *pointProjection, pc *scene.PointClouds, bins *coarseBins, out *PointFragments) error {
	tiles := fc.grid.count()
	return parallelFor(fc.workers, pc.Batch()*tiles, func(item int) error {
		s, t := item/tiles, item%tiles
		cand := bins.tile(s, t, tiles)
		if len(cand) == 0 {
			return nil
		}
		tx, ty := t%fc.grid.wide, t/fc.grid.wide
		x0, y0, x1, y1 := fc.grid.pixelBounds(tx, ty, fc.width, fc.height)
		shadePointTile(fc, p, pc, s, cand, x0, y0, x1, y1, out)
		return nil
	})
}

func shadePointTile(fc *frameConfig, p *pointProjection, pc *scene.PointClouds, s int, cand []int32, x0, y0, x1, y1 int, out *PointFragments) {
	slots := make([]pointFrag, 0, fc.k)
	pbase := s * pc.MaxPoints()
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			slots = slots[:0]
			px := pixelCenterPt(x, y, fc.width, fc.height)
			for _, id := range cand {
				pi := pbase + int(id)
				d := px.Sub(p.screen[pi])
				d2 := d.X*d.X + d.Y*d.Y
				r := pc.Radii()[pi]
				reach := r + fc.blur
				if d2 > reach*reach {
					continue
				}
				slots = insertPointFrag(slots, fc.k, pointFrag{
					id:     id,
					depth:  p.depth[pi],
					weight: 1 - d2/(r*r),
					dist2:  d2,
				})
			}
			writePointFrags(out, s, y, x, slots)
		}
	}
}

func insertPointFrag(slots []pointFrag, k int, f pointFrag) []pointFrag {
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

func writePointFrags(out *PointFragments, s, y, x int, slots []pointFrag) {
	base := out.Index(s, y, x, 0)
	for i, f := range slots {
		out.IDs[base+i] = f.id
		out.Depths[base+i] = f.depth
		out.Weights[base+i] = f.weight
		out.Dists2[base+i] = f.dist2
	}
}

// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"math"
	"sync/atomic"

	"honnef.co/go/curve"

	"github.com/TheNeeloy/diffraster/dmath"
	"github.com/TheNeeloy/diffraster/mem"
)

// binHeader addresses one tile's slice of the shared candidate buffer.
type binHeader struct {
	count  int32
	offset int32
}

// coarseBins is the coarse stage's output: per (scene, tile) candidate id
// lists in ascending primitive order, packed into one shared buffer.
type coarseBins struct {
	headers []binHeader // batch * tiles
	data    []int32     // sum of all counts

	dropped   atomic.Int64
	overflown atomic.Int64
}

func (cb *coarseBins) tile(scene, tileIdx, tiles int) []int32 {
	h := cb.headers[scene*tiles+tileIdx]
	return cb.data[h.offset : h.offset+h.count]
}

// binCandidates partitions the image into tiles and computes, per tile, the
// primitives whose dilated bounding box overlaps the tile's pixel area.
// Primitives come from the batch-flat arrays produced by the projector;
// count gives the number of valid slots per scene.
//
// The stage runs in two parallel passes over (scene, tile row): a counting
// pass and a fill pass, separated by a sequential prefix sum that carves the
// shared buffer. A tile row is owned by one worker per pass, so candidate
// lists come out in ascending primitive order deterministically, and caps
// keep the lowest indices.
func binCandidates(fc *frameConfig, batch, maxPrims int, count func(scene int) int, valid []bool, bbox []curve.Rect, a *mem.Arena) (*coarseBins, error) {
	tiles := fc.grid.count()
	cb := &coarseBins{
		headers: mem.NewSlice[[]binHeader](a, batch*tiles, batch*tiles),
	}

	// Counting pass.
	type overflow struct {
		scene, tx, ty, count int
	}
	rows := batch * fc.grid.tall
	var failures []*overflow
	if fc.overflow == OverflowFail {
		failures = make([]*overflow, rows)
	}
	countRow := func(row int) error {
		s, ty := row/fc.grid.tall, row%fc.grid.tall
		hdr := cb.headers[s*tiles+ty*fc.grid.wide : s*tiles+(ty+1)*fc.grid.wide]
		pbase := s * maxPrims
		n := count(s)
		for id := 0; id < n; id++ {
			if !valid[pbase+id] {
				continue
			}
			tx0, tx1, ok := tileSpan(fc, bbox[pbase+id], ty)
			if !ok {
				continue
			}
			for tx := tx0; tx <= tx1; tx++ {
				hdr[tx].count++
			}
		}
		var droppedRow, overflownRow int64
		for tx := range hdr {
			if int(hdr[tx].count) <= fc.maxPerTile {
				continue
			}
			switch fc.overflow {
			case OverflowFail:
				o := &overflow{scene: s, tx: tx, ty: ty, count: int(hdr[tx].count)}
				if f := failures[row]; f == nil || o.tx < f.tx {
					failures[row] = o
				}
			case OverflowDrop:
				droppedRow += int64(hdr[tx].count) - int64(fc.maxPerTile)
				overflownRow++
				hdr[tx].count = int32(fc.maxPerTile)
			}
		}
		if droppedRow > 0 {
			cb.dropped.Add(droppedRow)
			cb.overflown.Add(overflownRow)
		}
		return nil
	}
	if err := parallelFor(fc.workers, rows, countRow); err != nil {
		return nil, err
	}
	if fc.overflow == OverflowFail {
		// Pick the first overflowing tile in (scene, ty, tx) order so the
		// reported error does not depend on scheduling.
		for _, f := range failures {
			if f != nil {
				return nil, &OverflowError{
					Scene: f.scene,
					TileX: f.tx,
					TileY: f.ty,
					Count: f.count,
					Cap:   fc.maxPerTile,
				}
			}
		}
	}

	// Prefix sum carves the shared buffer.
	var total int32
	for i := range cb.headers {
		cb.headers[i].offset = total
		total += cb.headers[i].count
	}
	cb.data = mem.NewSlice[[]int32](a, int(total), int(total))

	// Fill pass; cursors restart at zero and stop at the (possibly capped)
	// count.
	fillRow := func(row int) error {
		s, ty := row/fc.grid.tall, row%fc.grid.tall
		hdr := cb.headers[s*tiles+ty*fc.grid.wide : s*tiles+(ty+1)*fc.grid.wide]
		cursors := make([]int32, len(hdr))
		pbase := s * maxPrims
		n := count(s)
		for id := 0; id < n; id++ {
			if !valid[pbase+id] {
				continue
			}
			tx0, tx1, ok := tileSpan(fc, bbox[pbase+id], ty)
			if !ok {
				continue
			}
			for tx := tx0; tx <= tx1; tx++ {
				if cursors[tx] == hdr[tx].count {
					continue
				}
				cb.data[hdr[tx].offset+cursors[tx]] = int32(id)
				cursors[tx]++
			}
		}
		return nil
	}
	if err := parallelFor(fc.workers, rows, fillRow); err != nil {
		return nil, err
	}
	return cb, nil
}

// tileSpan returns the inclusive range of tile columns in row ty whose
// pixel-area rectangle overlaps box. The range comes from pixel-space
// bounds widened by one tile and then narrowed with the exact predicate,
// so float rounding at tile edges cannot lose an overlap.
func tileSpan(fc *frameConfig, box curve.Rect, ty int) (int, int, bool) {
	// Row check first.
	rowRect := fc.grid.ndcRect(0, ty, fc.width, fc.height)
	if !(box.Y0 <= rowRect.Y1 && box.Y1 >= rowRect.Y0) {
		return 0, 0, false
	}
	if math.IsNaN(box.X0) || math.IsNaN(box.X1) {
		return 0, 0, false
	}

	px0 := dmath.Clamp((box.X0+1)/2*float64(fc.width), 0, float64(fc.width-1))
	px1 := dmath.Clamp((box.X1+1)/2*float64(fc.width), 0, float64(fc.width-1))
	tx0 := max(int(px0)/fc.grid.size-1, 0)
	tx1 := min(int(px1)/fc.grid.size+1, fc.grid.wide-1)

	for tx0 <= tx1 {
		r := fc.grid.ndcRect(tx0, ty, fc.width, fc.height)
		if box.X0 <= r.X1 && box.X1 >= r.X0 {
			break
		}
		tx0++
	}
	for tx1 >= tx0 {
		r := fc.grid.ndcRect(tx1, ty, fc.width, fc.height)
		if box.X0 <= r.X1 && box.X1 >= r.X0 {
			break
		}
		tx1--
	}
	if tx0 > tx1 {
		return 0, 0, false
	}
	return tx0, tx1, true
}

// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"runtime"

	"golang.org/x/exp/constraints"
	"honnef.co/go/curve"
)

// frameConfig is the eagerly derived per-call configuration: validated
// settings with all automatic values resolved against the frame's scene.
type frameConfig struct {
	width, height int
	k             int
	grid          tileGrid
	maxPerTile    int
	blur          float64
	near          float64
	// depthSign converts a camera's raw depth to canonical depth, which
	// grows away from the camera.
	depthSign   float64
	workers     int
	perspective bool
	cull        bool
	gradients   bool
	overflow    OverflowPolicy
}

func newFrameConfig(s *Settings, maxPrims int) frameConfig {
	tileSize := s.TileSize
	if tileSize == 0 {
		tileSize = autoTileSize(s.ImageWidth, s.ImageHeight)
	}
	maxPerTile := s.MaxPerTile
	if maxPerTile == 0 {
		maxPerTile = max(256, maxPrims/5)
	}
	maxPerTile = min(maxPerTile, maxPrims)
	near := s.NearClip
	if near == 0 {
		near = defaultNearClip
	}
	workers := s.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depthSign := 1.0
	if s.Depth == ZBackward {
		depthSign = -1
	}
	return frameConfig{
		width:  s.ImageWidth,
		height: s.ImageHeight,
		k:      s.FragmentsPerPixel,
		grid: tileGrid{
			size: tileSize,
			wide: ceilDiv(s.ImageWidth, tileSize),
			tall: ceilDiv(s.ImageHeight, tileSize),
		},
		maxPerTile:  maxPerTile,
		blur:        s.BlurRadius,
		near:        near,
		depthSign:   depthSign,
		workers:     workers,
		perspective: s.PerspectiveCorrect,
		cull:        s.CullBackfaces,
		gradients:   s.Gradients,
		overflow:    s.Overflow,
	}
}

// autoTileSize follows a power-of-two ladder so small frames get fine
// tiles and large frames keep the grid small.
func autoTileSize(w, h int) int {
	switch m := max(w, h); {
	case m <= 64:
		return 8
	case m <= 256:
		return 16
	case m <= 1024:
		return 32
	default:
		return 64
	}
}

// tileGrid addresses the coarse stage's tiles. Tiles on the right and
// bottom edges may be cut short by the image bounds.
type tileGrid struct {
	size       int
	wide, tall int
}

func (g tileGrid) count() int { return g.wide * g.tall }

func (g tileGrid) index(tx, ty int) int { return ty*g.wide + tx }

// pixelBounds returns the half-open pixel range [x0,x1)x[y0,y1) covered by
// tile (tx, ty).
func (g tileGrid) pixelBounds(tx, ty, width, height int) (x0, y0, x1, y1 int) {
	x0 = tx * g.size
	y0 = ty * g.size
	x1 = min(x0+g.size, width)
	y1 = min(y0+g.size, height)
	return
}

// ndcRect returns the NDC-space extent of a tile's pixel area. Candidate
// bounding boxes are tested against this rectangle; pixel centers always
// lie strictly inside their pixel's area, so the overlap test cannot miss
// a covering primitive.
func (g tileGrid) ndcRect(tx, ty, width, height int) curve.Rect {
	x0, y0, x1, y1 := g.pixelBounds(tx, ty, width, height)
	return curve.Rect{
		X0: 2*float64(x0)/float64(width) - 1,
		Y0: 2*float64(y0)/float64(height) - 1,
		X1: 2*float64(x1)/float64(width) - 1,
		Y1: 2*float64(y1)/float64(height) - 1,
	}
}

func ceilDiv[T constraints.Integer](x, y T) T {
	return (x + y - 1) / y
}

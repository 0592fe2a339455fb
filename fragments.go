// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"time"

	"honnef.co/go/safeish"
)

// NoHit is the sentinel primitive id for empty fragment slots. Slots with
// NoHit carry zeroes in every other channel.
const NoHit int32 = -1

// Diagnostics reports per-call pipeline statistics. Counts are totals over
// the whole batch.
type Diagnostics struct {
	// Candidates is the number of (tile, primitive) pairs the coarse stage
	// accepted.
	Candidates int64
	// DroppedCandidates counts pairs discarded by OverflowDrop.
	DroppedCandidates int64
	// OverflowedTiles counts tiles that hit MaxPerTile under OverflowDrop.
	OverflowedTiles int64

	ProjectTime  time.Duration
	CoarseTime   time.Duration
	FineTime     time.Duration
	BackwardTime time.Duration
}

// MeshFragments is the forward output of RasterizeMeshes. All arrays are
// dense row-major [batch, height, width, K] (Bary adds a trailing axis of
// 3). Fragment slots within a pixel are sorted by increasing depth; unused
// slots hold NoHit.
type MeshFragments struct {
	Batch  int
	Height int
	Width  int
	K      int

	// IDs holds per-scene face indices, or NoHit.
	IDs []int32
	// Bary holds interpolation weights per fragment; the triple sums to 1
	// for every hit.
	Bary []float64
	// Depths holds canonical depth, increasing away from the camera.
	Depths []float64
	// Dists holds the signed screen-space distance from the pixel center to
	// the face boundary: negative inside, positive outside.
	Dists []float64

	Diag Diagnostics

	tape *meshTape
}

func newMeshFragments(b, h, w, k int) *MeshFragments {
	n := b * h * w * k
	f := &MeshFragments{
		Batch:  b,
		Height: h,
		Width:  w,
		K:      k,
		IDs:    make([]int32, n),
		Bary:   make([]float64, n*3),
		Depths: make([]float64, n),
		Dists:  make([]float64, n),
	}
	for i := range f.IDs {
		f.IDs[i] = NoHit
	}
	return f
}

// Index returns the flat slot index of (scene, y, x, k).
func (f *MeshFragments) Index(scene, y, x, k int) int {
	return ((scene*f.Height+y)*f.Width+x)*f.K + k
}

// Dims returns (batch, height, width, K).
func (f *MeshFragments) Dims() (int, int, int, int) {
	return f.Batch, f.Height, f.Width, f.K
}

func (f *MeshFragments) ID(scene, y, x, k int) int32 {
	return f.IDs[f.Index(scene, y, x, k)]
}

func (f *MeshFragments) Depth(scene, y, x, k int) float64 {
	return f.Depths[f.Index(scene, y, x, k)]
}

func (f *MeshFragments) Dist(scene, y, x, k int) float64 {
	return f.Dists[f.Index(scene, y, x, k)]
}

func (f *MeshFragments) BaryAt(scene, y, x, k int) [3]float64 {
	i := f.Index(scene, y, x, k) * 3
	return [3]float64{f.Bary[i], f.Bary[i+1], f.Bary[i+2]}
}

// RawIDs returns the id array as bytes, without copying. Useful for handing
// the output to tensor libraries or writing it to disk.
func (f *MeshFragments) RawIDs() []byte { return safeish.SliceCast[[]byte](f.IDs) }

// RawBary returns the weight array as bytes, without copying.
func (f *MeshFragments) RawBary() []byte { return safeish.SliceCast[[]byte](f.Bary) }

// RawDepths returns the depth array as bytes, without copying.
func (f *MeshFragments) RawDepths() []byte { return safeish.SliceCast[[]byte](f.Depths) }

// RawDists returns the signed-distance array as bytes, without copying.
func (f *MeshFragments) RawDists() []byte { return safeish.SliceCast[[]byte](f.Dists) }

// PointFragments is the forward output of RasterizePoints, laid out like
// MeshFragments. Points carry two per-fragment channels: a normalized
// falloff weight and the squared screen-space distance to the center.
type PointFragments struct {
	Batch  int
	Height int
	Width  int
	K      int

	// IDs holds per-scene point indices, or NoHit.
	IDs []int32
	// Weights holds 1 - (d/r)^2 per fragment: 1 at the center, 0 at the
	// exact radius, negative within the blur band outside it.
	Weights []float64
	// Depths holds canonical depth.
	Depths []float64
	// Dists2 holds the squared screen-space distance from the pixel center
	// to the point center.
	Dists2 []float64

	Diag Diagnostics

	tape *pointTape
}

func newPointFragments(b, h, w, k int) *PointFragments {
	n := b * h * w * k
	f := &PointFragments{
		Batch:   b,
		Height:  h,
		Width:   w,
		K:       k,
		IDs:     make([]int32, n),
		Weights: make([]float64, n),
		Depths:  make([]float64, n),
		Dists2:  make([]float64, n),
	}
	for i := range f.IDs {
		f.IDs[i] = NoHit
	}
	return f
}

func (f *PointFragments) Index(scene, y, x, k int) int {
	return ((scene*f.Height+y)*f.Width+x)*f.K + k
}

// Dims returns (batch, height, width, K).
func (f *PointFragments) Dims() (int, int, int, int) {
	return f.Batch, f.Height, f.Width, f.K
}

func (f *PointFragments) ID(scene, y, x, k int) int32 {
	return f.IDs[f.Index(scene, y, x, k)]
}

func (f *PointFragments) Depth(scene, y, x, k int) float64 {
	return f.Depths[f.Index(scene, y, x, k)]
}

func (f *PointFragments) Weight(scene, y, x, k int) float64 {
	return f.Weights[f.Index(scene, y, x, k)]
}

func (f *PointFragments) Dist2(scene, y, x, k int) float64 {
	return f.Dists2[f.Index(scene, y, x, k)]
}

// RawIDs returns the id array as bytes, without copying.
func (f *PointFragments) RawIDs() []byte { return safeish.SliceCast[[]byte](f.IDs) }

// RawWeights returns the weight array as bytes, without copying.
func (f *PointFragments) RawWeights() []byte { return safeish.SliceCast[[]byte](f.Weights) }

// RawDepths returns the depth array as bytes, without copying.
func (f *PointFragments) RawDepths() []byte { return safeish.SliceCast[[]byte](f.Depths) }

// RawDists2 returns the squared-distance array as bytes, without copying.
func (f *PointFragments) RawDists2() []byte { return safeish.SliceCast[[]byte](f.Dists2) }

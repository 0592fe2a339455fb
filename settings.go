// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"fmt"
	"math"
)

// OverflowPolicy selects what happens when a tile's candidate list exceeds
// MaxPerTile.
type OverflowPolicy int

const (
	// OverflowDrop deterministically keeps the candidates with the lowest
	// primitive indices and drops the rest. Lossy; drops are counted in
	// Diagnostics.
	OverflowDrop OverflowPolicy = iota
	// OverflowFail aborts the call with an OverflowError.
	OverflowFail
)

// DepthConvention declares the sign of the depth a camera reports for
// points in front of it. The pipeline canonicalizes depth so that it always
// increases away from the camera; near clipping, fragment ordering, and the
// Depths output all use canonical depth.
type DepthConvention int

const (
	// ZForward: cameras report positive depth in front (view z grows away
	// from the camera).
	ZForward DepthConvention = iota
	// ZBackward: cameras report negative depth in front (OpenGL-style view
	// space). Canonical depth is the negated report.
	ZBackward
)

// Settings configures a Rasterizer. The zero value is not valid; start from
// DefaultSettings.
type Settings struct {
	ImageHeight int
	ImageWidth  int

	// FragmentsPerPixel is K, the number of nearest fragments retained per
	// pixel.
	FragmentsPerPixel int

	// BlurRadius extends coverage beyond exact primitive boundaries by a
	// screen-space (NDC) distance, for soft blending. 0 means hard
	// rasterization.
	BlurRadius float64

	// TileSize is the tile edge length in pixels for the coarse stage.
	// 0 picks a size based on the image dimensions.
	TileSize int

	// MaxPerTile caps a tile's candidate list. 0 picks a cap based on the
	// scene's primitive count.
	MaxPerTile int

	// PerspectiveCorrect interpolates barycentrics and depth in world space
	// rather than screen space.
	PerspectiveCorrect bool

	// CullBackfaces discards triangles whose screen-space winding is
	// negative before the coverage test.
	CullBackfaces bool

	// NearClip is the minimum canonical depth. Primitives with any vertex
	// at or nearer than this are invalid for the view and contribute no
	// fragments. 0 means the default of 0.01.
	NearClip float64

	Depth    DepthConvention
	Overflow OverflowPolicy

	// Workers bounds the number of goroutines used per stage. 0 means
	// GOMAXPROCS.
	Workers int

	// Gradients records the state Backward needs. Without it, forward
	// outputs are identical but Backward returns ErrGradientsUnavailable.
	Gradients bool
}

const defaultNearClip = 1e-2

// DefaultSettings returns hard rasterization of a 256x256 image with one
// fragment per pixel and automatic tiling.
func DefaultSettings() Settings {
	return Settings{
		ImageHeight:       256,
		ImageWidth:        256,
		FragmentsPerPixel: 1,
		NearClip:          defaultNearClip,
	}
}

func (s *Settings) validate() error {
	if s.ImageHeight <= 0 {
		return &ConfigError{Field: "ImageHeight", Reason: fmt.Sprintf("must be positive, got %d", s.ImageHeight)}
	}
	if s.ImageWidth <= 0 {
		return &ConfigError{Field: "ImageWidth", Reason: fmt.Sprintf("must be positive, got %d", s.ImageWidth)}
	}
	if s.FragmentsPerPixel <= 0 {
		return &ConfigError{Field: "FragmentsPerPixel", Reason: fmt.Sprintf("must be positive, got %d", s.FragmentsPerPixel)}
	}
	if s.BlurRadius < 0 || math.IsNaN(s.BlurRadius) || math.IsInf(s.BlurRadius, 0) {
		return &ConfigError{Field: "BlurRadius", Reason: fmt.Sprintf("must be finite and non-negative, got %g", s.BlurRadius)}
	}
	if s.TileSize < 0 {
		return &ConfigError{Field: "TileSize", Reason: fmt.Sprintf("must be non-negative, got %d", s.TileSize)}
	}
	if s.MaxPerTile < 0 {
		return &ConfigError{Field: "MaxPerTile", Reason: fmt.Sprintf("must be non-negative, got %d", s.MaxPerTile)}
	}
	if s.NearClip < 0 || math.IsNaN(s.NearClip) || math.IsInf(s.NearClip, 0) {
		return &ConfigError{Field: "NearClip", Reason: fmt.Sprintf("must be finite and non-negative, got %g", s.NearClip)}
	}
	if s.Depth != ZForward && s.Depth != ZBackward {
		return &ConfigError{Field: "Depth", Reason: fmt.Sprintf("unknown convention %d", s.Depth)}
	}
	if s.Overflow != OverflowDrop && s.Overflow != OverflowFail {
		return &ConfigError{Field: "Overflow", Reason: fmt.Sprintf("unknown policy %d", s.Overflow)}
	}
	if s.Workers < 0 {
		return &ConfigError{Field: "Workers", Reason: fmt.Sprintf("must be non-negative, got %d", s.Workers)}
	}
	return nil
}

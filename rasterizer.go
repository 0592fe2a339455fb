// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package diffraster

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TheNeeloy/diffraster/cameras"
	"github.com/TheNeeloy/diffraster/mem"
	"github.com/TheNeeloy/diffraster/scene"
)

// Rasterizer runs the coarse-to-fine differentiable rasterization pipeline:
// project, bin into tiles, resolve per-pixel nearest-K coverage, and
// optionally record the state Backward needs.
//
// A Rasterizer reuses internal scratch memory across calls and is not safe
// for concurrent use; create one per goroutine. The outputs it returns are
// independent of the Rasterizer and stay valid after further calls.
type Rasterizer struct {
	settings Settings
	arena    *mem.Arena
}

// New validates the settings and returns a Rasterizer. Invalid settings are
// reported as a ConfigError before any geometry is touched.
func New(settings Settings) (*Rasterizer, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	return &Rasterizer{
		settings: settings,
		arena:    mem.NewArena(),
	}, nil
}

// Settings returns the settings the Rasterizer was built with.
func (r *Rasterizer) Settings() Settings { return r.settings }

// RasterizeMeshes rasterizes a batch of triangle meshes. cams holds either
// one camera per scene or a single shared camera. The call runs to
// completion over the whole batch or fails without partial output.
func (r *Rasterizer) RasterizeMeshes(cams []cameras.Camera, m *scene.Meshes) (*MeshFragments, error) {
	if m == nil {
		return nil, &scene.ShapeError{Scene: -1, Reason: "nil meshes"}
	}
	if err := validateCameras(cams, m.Batch()); err != nil {
		return nil, err
	}
	r.arena.Reset()
	fc := newFrameConfig(&r.settings, m.MaxFaces())

	start := time.Now()
	proj, err := projectMeshes(&fc, cams, m, r.arena)
	if err != nil {
		return nil, err
	}
	projTime := time.Since(start)

	start = time.Now()
	bins, err := binCandidates(&fc, m.Batch(), m.MaxFaces(), m.FaceCount, proj.valid, proj.bbox, r.arena)
	if err != nil {
		return nil, err
	}
	coarseTime := time.Since(start)

	frags := newMeshFragments(m.Batch(), fc.height, fc.width, fc.k)
	start = time.Now()
	if err := rasterizeMeshTiles(&fc, proj, m, bins, frags); err != nil {
		return nil, err
	}
	fineTime := time.Since(start)

	frags.Diag = Diagnostics{
		Candidates:        int64(len(bins.data)),
		DroppedCandidates: bins.dropped.Load(),
		OverflowedTiles:   bins.overflown.Load(),
		ProjectTime:       projTime,
		CoarseTime:        coarseTime,
		FineTime:          fineTime,
	}
	logForward("meshes", m.Batch(), &fc, &frags.Diag)

	if fc.gradients {
		frags.tape = &meshTape{
			fc:     fc,
			meshes: m,
			screen: proj.screen,
			depth:  proj.depth,
			jac:    proj.jac,
		}
	}
	return frags, nil
}

// RasterizePoints rasterizes a batch of point clouds. cams holds either one
// camera per scene or a single shared camera.
func (r *Rasterizer) RasterizePoints(cams []cameras.Camera, pc *scene.PointClouds) (*PointFragments, error) {
	if pc == nil {
		return nil, &scene.ShapeError{Scene: -1, Reason: "nil point clouds"}
	}
	if err := validateCameras(cams, pc.Batch()); err != nil {
		return nil, err
	}
	r.arena.Reset()
	fc := newFrameConfig(&r.settings, pc.MaxPoints())

	start := time.Now()
	proj, err := projectPoints(&fc, cams, pc, r.arena)
	if err != nil {
		return nil, err
	}
	projTime := time.Since(start)

	start = time.Now()
	bins, err := binCandidates(&fc, pc.Batch(), pc.MaxPoints(), pc.Count, proj.valid, proj.bbox, r.arena)
	if err != nil {
		return nil, err
	}
	coarseTime := time.Since(start)

	frags := newPointFragments(pc.Batch(), fc.height, fc.width, fc.k)
	start = time.Now()
	if err := rasterizePointTiles(&fc, proj, pc, bins, frags); err != nil {
		return nil, err
	}
	fineTime := time.Since(start)

	frags.Diag = Diagnostics{
		Candidates:        int64(len(bins.data)),
		DroppedCandidates: bins.dropped.Load(),
		OverflowedTiles:   bins.overflown.Load(),
		ProjectTime:       projTime,
		CoarseTime:        coarseTime,
		FineTime:          fineTime,
	}
	logForward("points", pc.Batch(), &fc, &frags.Diag)

	if fc.gradients {
		frags.tape = &pointTape{
			fc:     fc,
			clouds: pc,
			screen: proj.screen,
			depth:  proj.depth,
			jac:    proj.jac,
		}
	}
	return frags, nil
}

func validateCameras(cams []cameras.Camera, batch int) error {
	if len(cams) != 1 && len(cams) != batch {
		return &scene.ShapeError{
			Scene:  -1,
			Reason: "camera count must be 1 or the batch size",
		}
	}
	for _, c := range cams {
		if c == nil {
			return &scene.ShapeError{Scene: -1, Reason: "nil camera"}
		}
	}
	return nil
}

func logForward(kind string, batch int, fc *frameConfig, d *Diagnostics) {
	log := Logger()
	if d.DroppedCandidates > 0 {
		log.Warn("tile candidate overflow, dropping",
			"kind", kind,
			"tiles", d.OverflowedTiles,
			"candidates", d.DroppedCandidates,
			"cap", fc.maxPerTile)
	}
	log.Debug("rasterized batch",
		"kind", kind,
		"scenes", batch,
		"size", fc.width*fc.height,
		"tile", fc.grid.size,
		"tiles", fc.grid.count(),
		"k", fc.k,
		"candidates", d.Candidates,
		"project", d.ProjectTime,
		"coarse", d.CoarseTime,
		"fine", d.FineTime)
}

// parallelFor runs f for every index in [0, n) on up to workers goroutines
// and returns the first error. Work items must be independent; callers
// partition output by index.
func parallelFor(workers, n int, f func(i int) error) error {
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := range n {
			if err := f(i); err != nil {
				return err
			}
		}
		return nil
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range n {
		g.Go(func() error { return f(i) })
	}
	return g.Wait()
}

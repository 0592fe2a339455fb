// Copyright 2026 the diffraster authors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// render-debug rasterizes a built-in mesh and point cloud scene and writes
// the fragment buffers as PNG images. It exists to eyeball the pipeline:
// tile seams, depth ordering, blur bands, and overflow behavior all show up
// immediately in the id and depth images.
package main

import (
	"flag"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/TheNeeloy/diffraster"
	"github.com/TheNeeloy/diffraster/cameras"
	"github.com/TheNeeloy/diffraster/dmath"
	"github.com/TheNeeloy/diffraster/scene"
	"github.com/TheNeeloy/diffraster/viz"
)

func main() {
	var (
		out     string
		size    int
		k       int
		blur    float64
		scale   int
		views   int
		verbose bool
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-v] [-out <dir>] [-size <px>] [-views <n>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&out, "out", "./out", "Path to output `directory`")
	flag.IntVar(&size, "size", 256, "Image edge length in `pixels`")
	flag.IntVar(&k, "k", 2, "Fragments retained per pixel")
	flag.Float64Var(&blur, "blur", 0, "Blur radius in `NDC` units")
	flag.IntVar(&scale, "scale", 2, "Integer upscaling `factor` for the PNGs")
	flag.IntVar(&views, "views", 3, "Number of camera orbits to render")
	flag.BoolVar(&verbose, "v", false, "Be verbose")
	flag.Parse()

	if len(flag.Args()) != 0 {
		flag.Usage()
		os.Exit(2)
	}

	dief := func(f string, v ...any) {
		fmt.Fprintf(os.Stderr, f, v...)
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	if verbose {
		diffraster.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	if err := os.MkdirAll(out, 0777); err != nil {
		dief("Couldn't create output directory: %s", err)
	}

	write := func(img image.Image, name string) {
		if scale > 1 {
			img = viz.Scale(img, scale)
		}
		path := filepath.Join(out, name+".png")
		if err := viz.SavePNG(path, img); err != nil {
			dief("Couldn't write %q: %s", path, err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "wrote %s\n", path)
		}
	}

	settings := diffraster.DefaultSettings()
	settings.ImageHeight = size
	settings.ImageWidth = size
	settings.FragmentsPerPixel = k
	settings.BlurRadius = blur
	settings.PerspectiveCorrect = true

	r, err := diffraster.New(settings)
	if err != nil {
		dief("Bad settings: %s", err)
	}

	cams := orbitCameras(views)

	meshes, err := scene.NewMeshes(
		repeat(tetraVerts(), views),
		repeat(tetraFaces(), views),
	)
	if err != nil {
		dief("Couldn't build meshes: %s", err)
	}
	mf, err := r.RasterizeMeshes(cams, meshes)
	if err != nil {
		dief("Couldn't rasterize meshes: %s", err)
	}
	for s := range views {
		write(viz.IDImage(mf, s), fmt.Sprintf("mesh-id-%d", s))
		write(viz.DepthImage(mf, s), fmt.Sprintf("mesh-depth-%d", s))
	}

	points, err := scene.NewPointCloudsUniform(repeat(helixPoints(), views), 0.05)
	if err != nil {
		dief("Couldn't build point clouds: %s", err)
	}
	pf, err := r.RasterizePoints(cams, points)
	if err != nil {
		dief("Couldn't rasterize points: %s", err)
	}
	for s := range views {
		write(viz.IDImage(pf, s), fmt.Sprintf("points-id-%d", s))
		write(viz.DepthImage(pf, s), fmt.Sprintf("points-depth-%d", s))
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "mesh candidates: %d, point candidates: %d\n",
			mf.Diag.Candidates, pf.Diag.Candidates)
	}
}

// orbitCameras places n pinhole cameras on a circle of radius 3 around the
// origin, all looking at the scene center.
func orbitCameras(n int) []cameras.Camera {
	cams := make([]cameras.Camera, n)
	for i := range cams {
		angle := 2 * math.Pi * float64(i) / float64(n)
		eye := dmath.Vec3{X: 3 * math.Sin(angle), Y: 1, Z: 3 * math.Cos(angle)}
		c := cameras.NewPerspective(1.2, 1.2)
		c.R, c.T = cameras.LookAt(eye, dmath.Vec3{}, dmath.Vec3{Y: 1})
		cams[i] = c
	}
	return cams
}

func tetraVerts() []dmath.Vec3 {
	return []dmath.Vec3{
		{X: 1, Y: 1, Z: 1},
		{X: 1, Y: -1, Z: -1},
		{X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1},
	}
}

func tetraFaces() []scene.Face {
	return []scene.Face{
		{0, 1, 2},
		{0, 3, 1},
		{0, 2, 3},
		{1, 3, 2},
	}
}

// helixPoints samples a vertical helix, giving the point renderer depth
// variation along every view direction.
func helixPoints() []dmath.Vec3 {
	const n = 200
	pts := make([]dmath.Vec3, n)
	for i := range pts {
		t := float64(i) / n
		angle := 6 * math.Pi * t
		pts[i] = dmath.Vec3{
			X: 0.8 * math.Cos(angle),
			Y: 2*t - 1,
			Z: 0.8 * math.Sin(angle),
		}
	}
	return pts
}

func repeat[T any](s []T, n int) [][]T {
	out := make([][]T, n)
	for i := range out {
		out[i] = s
	}
	return out
}

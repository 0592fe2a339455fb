// Package viz renders fragment buffers into images for debugging. The
// renderers consume the nearest fragment slot only; they are diagnostic
// aids, not a shading model.
package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
)

// Fragments is the part of a fragment buffer the renderers need. Both mesh
// and point fragment buffers satisfy it.
type Fragments interface {
	Dims() (batch, height, width, k int)
	ID(scene, y, x, k int) int32
	Depth(scene, y, x, k int) float64
}

// DepthImage renders the nearest-fragment depth of one scene as grayscale.
// Nearer surfaces are brighter; pixels with no hit stay black.
func DepthImage(f Fragments, scene int) *image.Gray {
	_, h, w, _ := f.Dims()
	img := image.NewGray(image.Rect(0, 0, w, h))

	lo, hi := math.Inf(1), math.Inf(-1)
	for y := range h {
		for x := range w {
			if f.ID(scene, y, x, 0) < 0 {
				continue
			}
			d := f.Depth(scene, y, x, 0)
			lo = min(lo, d)
			hi = max(hi, d)
		}
	}
	if lo > hi {
		return img
	}

	span := hi - lo
	for y := range h {
		for x := range w {
			if f.ID(scene, y, x, 0) < 0 {
				continue
			}
			t := 0.0
			if span > 0 {
				t = (f.Depth(scene, y, x, 0) - lo) / span
			}
			img.SetGray(x, y, color.Gray{Y: uint8(255 - 191*t)})
		}
	}
	return img
}

// IDImage renders the nearest-fragment primitive ids of one scene with a
// deterministic per-id color. Pixels with no hit stay black.
func IDImage(f Fragments, scene int) *image.RGBA {
	_, h, w, _ := f.Dims()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			id := f.ID(scene, y, x, 0)
			if id < 0 {
				continue
			}
			img.SetRGBA(x, y, idColor(id))
		}
	}
	return img
}

// idColor mixes the id into a bright, stable color. Sequential ids land far
// apart on the hue wheel.
func idColor(id int32) color.RGBA {
	h := uint32(id)*2654435761 + 0x9e3779b9
	return color.RGBA{
		R: 64 + uint8(h>>24)&191,
		G: 64 + uint8(h>>16)&191,
		B: 64 + uint8(h>>8)&191,
		A: 255,
	}
}

// Scale resizes img by an integer factor with nearest-neighbor sampling,
// keeping pixel boundaries crisp for small debug renders.
func Scale(img image.Image, factor int) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("viz: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("viz: encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("viz: %w", err)
	}
	return nil
}

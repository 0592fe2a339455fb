package scene

import (
	"fmt"

	"github.com/TheNeeloy/diffraster/dmath"
)

// PointClouds is a batch of point clouds in the padded layout: per-scene
// centers and screen-space radii packed into fixed-capacity arrays with
// explicit valid counts.
//
// Radii are in NDC units. Points with zero or negative radius are carried
// through but never cover a pixel.
type PointClouds struct {
	points    []dmath.Vec3 // batch * maxPoints
	radii     []float64    // batch * maxPoints
	counts    []int32
	maxPoints int
}

// NewPointClouds packs per-scene center and radius lists into a padded
// batch. Each scene's radius list must match its point list in length.
func NewPointClouds(points [][]dmath.Vec3, radii [][]float64) (*PointClouds, error) {
	if len(points) == 0 {
		return nil, &ShapeError{Scene: -1, Reason: "empty batch"}
	}
	if len(points) != len(radii) {
		return nil, &ShapeError{
			Scene:  -1,
			Reason: fmt.Sprintf("got %d point lists but %d radius lists", len(points), len(radii)),
		}
	}
	maxPoints := 0
	for i := range points {
		if len(points[i]) != len(radii[i]) {
			return nil, &ShapeError{
				Scene:  i,
				Reason: fmt.Sprintf("%d points but %d radii", len(points[i]), len(radii[i])),
			}
		}
		maxPoints = max(maxPoints, len(points[i]))
	}
	b := len(points)
	p := &PointClouds{
		points:    make([]dmath.Vec3, b*maxPoints),
		radii:     make([]float64, b*maxPoints),
		counts:    make([]int32, b),
		maxPoints: maxPoints,
	}
	for i := range points {
		copy(p.points[i*maxPoints:], points[i])
		copy(p.radii[i*maxPoints:], radii[i])
		p.counts[i] = int32(len(points[i]))
	}
	return p, nil
}

// NewPointCloudsUniform packs per-scene center lists with one shared radius.
func NewPointCloudsUniform(points [][]dmath.Vec3, radius float64) (*PointClouds, error) {
	radii := make([][]float64, len(points))
	for i := range points {
		radii[i] = make([]float64, len(points[i]))
		for j := range radii[i] {
			radii[i][j] = radius
		}
	}
	return NewPointClouds(points, radii)
}

// PointCloudsFromPadded wraps arrays already in the padded batch layout. The
// arrays are retained, not copied.
func PointCloudsFromPadded(points []dmath.Vec3, radii []float64, counts []int32, maxPoints int) (*PointClouds, error) {
	if len(counts) == 0 {
		return nil, &ShapeError{Scene: -1, Reason: "empty batch"}
	}
	if maxPoints < 0 {
		return nil, &ShapeError{Scene: -1, Reason: "negative capacity"}
	}
	b := len(counts)
	if len(points) != b*maxPoints {
		return nil, &ShapeError{
			Scene:  -1,
			Reason: fmt.Sprintf("point array has %d entries, want %d*%d", len(points), b, maxPoints),
		}
	}
	if len(radii) != len(points) {
		return nil, &ShapeError{
			Scene:  -1,
			Reason: fmt.Sprintf("radius array has %d entries, want %d", len(radii), len(points)),
		}
	}
	for i := range b {
		if c := counts[i]; c < 0 || int(c) > maxPoints {
			return nil, &ShapeError{
				Scene:  i,
				Reason: fmt.Sprintf("declared point count %d exceeds capacity %d", c, maxPoints),
			}
		}
	}
	return &PointClouds{points: points, radii: radii, counts: counts, maxPoints: maxPoints}, nil
}

func (p *PointClouds) Batch() int     { return len(p.counts) }
func (p *PointClouds) MaxPoints() int { return p.maxPoints }

func (p *PointClouds) Count(scene int) int { return int(p.counts[scene]) }

func (p *PointClouds) Point(scene, i int) dmath.Vec3 { return p.points[scene*p.maxPoints+i] }
func (p *PointClouds) Radius(scene, i int) float64   { return p.radii[scene*p.maxPoints+i] }

// PointIndex maps a per-scene point index to its flat index in the padded
// batch. Gradient arrays returned by the rasterizer use this layout.
func (p *PointClouds) PointIndex(scene, i int) int { return scene*p.maxPoints + i }

// Points exposes the padded center array (batch*maxPoints). Callers must
// not mutate it while a rasterizer holds the batch.
func (p *PointClouds) Points() []dmath.Vec3 { return p.points }

// Radii exposes the padded radius array (batch*maxPoints).
func (p *PointClouds) Radii() []float64 { return p.radii }

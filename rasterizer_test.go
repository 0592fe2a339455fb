package diffraster

import (
	"errors"
	"math"
	"testing"

	"github.com/TheNeeloy/diffraster/cameras"
	"github.com/TheNeeloy/diffraster/dmath"
	"github.com/TheNeeloy/diffraster/scene"
)

func newTestRasterizer(t *testing.T, s Settings) *Rasterizer {
	t.Helper()
	r, err := New(s)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func singleTriangle(t *testing.T, z float64) *scene.Meshes {
	t.Helper()
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -1, Y: -1, Z: z},
			{X: 1, Y: -1, Z: z},
			{X: 0, Y: 1, Z: z},
		}},
		[][]scene.Face{{{0, 1, 2}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func ortho() []cameras.Camera {
	return []cameras.Camera{cameras.NewOrthographic()}
}

func TestSingleTriangleHard(t *testing.T) {
	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1})
	m := singleTriangle(t, 1)
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}

	inside := [4][4]bool{
		{true, true, true, true},
		{false, true, true, false},
		{false, true, true, false},
		{false, false, false, false},
	}
	verts := [3][2]float64{{-1, -1}, {1, -1}, {0, 1}}
	hits := 0
	for y := range 4 {
		for x := range 4 {
			id := frags.ID(0, y, x, 0)
			if !inside[y][x] {
				if id != NoHit {
					t.Errorf("pixel (%d,%d): id = %d, want no hit", x, y, id)
				}
				continue
			}
			hits++
			if id != 0 {
				t.Errorf("pixel (%d,%d): id = %d, want 0", x, y, id)
				continue
			}
			if d := frags.Depth(0, y, x, 0); math.Abs(d-1) > 1e-9 {
				t.Errorf("pixel (%d,%d): depth = %v, want 1", x, y, d)
			}
			b := frags.BaryAt(0, y, x, 0)
			if sum := b[0] + b[1] + b[2]; math.Abs(sum-1) > 1e-9 {
				t.Errorf("pixel (%d,%d): bary sum = %v", x, y, sum)
			}
			for i, w := range b {
				if w < 0 {
					t.Errorf("pixel (%d,%d): bary[%d] = %v, want >= 0", x, y, i, w)
				}
			}
			// Interpolating the vertices with the weights must reproduce
			// the pixel center.
			ru := b[0]*verts[0][0] + b[1]*verts[1][0] + b[2]*verts[2][0]
			rv := b[0]*verts[0][1] + b[1]*verts[1][1] + b[2]*verts[2][1]
			pu, pv := pixelCenter(x, 4), pixelCenter(y, 4)
			if math.Abs(ru-pu) > 1e-9 || math.Abs(rv-pv) > 1e-9 {
				t.Errorf("pixel (%d,%d): weights reconstruct (%v,%v), want (%v,%v)", x, y, ru, rv, pu, pv)
			}
			if d := frags.Dist(0, y, x, 0); d >= 0 {
				t.Errorf("pixel (%d,%d): dist = %v, want < 0 inside", x, y, d)
			}
		}
	}
	if hits != 8 {
		t.Errorf("interior pixels = %d, want 8", hits)
	}
	if frags.Diag.Candidates != 1 || frags.Diag.DroppedCandidates != 0 {
		t.Errorf("diagnostics = %+v", frags.Diag)
	}
}

func TestDepthOrdering(t *testing.T) {
	// Face 0 is the far triangle so the fine stage has to reorder.
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -1, Y: -1, Z: 1.5}, {X: 1, Y: -1, Z: 1.5}, {X: 0, Y: 1, Z: 1.5},
			{X: -1, Y: -1, Z: 0.5}, {X: 1, Y: -1, Z: 0.5}, {X: 0, Y: 1, Z: 0.5},
		}},
		[][]scene.Face{{{0, 1, 2}, {3, 4, 5}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 2})
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}
	covered := 0
	for y := range 4 {
		for x := range 4 {
			if frags.ID(0, y, x, 0) == NoHit {
				continue
			}
			covered++
			if id0, id1 := frags.ID(0, y, x, 0), frags.ID(0, y, x, 1); id0 != 1 || id1 != 0 {
				t.Errorf("pixel (%d,%d): ids = (%d,%d), want (1,0)", x, y, id0, id1)
			}
			d0, d1 := frags.Depth(0, y, x, 0), frags.Depth(0, y, x, 1)
			if math.Abs(d0-0.5) > 1e-9 || math.Abs(d1-1.5) > 1e-9 {
				t.Errorf("pixel (%d,%d): depths = (%v,%v)", x, y, d0, d1)
			}
			if d0 > d1 {
				t.Errorf("pixel (%d,%d): depths out of order", x, y)
			}
		}
	}
	if covered != 8 {
		t.Errorf("covered pixels = %d, want 8", covered)
	}
}

func TestDepthTieKeepsLowerID(t *testing.T) {
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 0, Y: 1, Z: 1},
		}},
		[][]scene.Face{{{0, 1, 2}, {0, 1, 2}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 2})
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}
	for y := range 4 {
		for x := range 4 {
			if frags.ID(0, y, x, 0) == NoHit {
				continue
			}
			if id0, id1 := frags.ID(0, y, x, 0), frags.ID(0, y, x, 1); id0 != 0 || id1 != 1 {
				t.Errorf("pixel (%d,%d): ids = (%d,%d), want (0,1)", x, y, id0, id1)
			}
		}
	}
}

func TestPaddingNeverAppears(t *testing.T) {
	// Scene 0 declares one face, scene 1 two; the padded slots of scene 0
	// carry garbage that must stay inert.
	verts := make([]dmath.Vec3, 2*6)
	faces := make([]scene.Face, 2*2)
	tri := [3]dmath.Vec3{{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 0, Y: 1, Z: 1}}
	for i, v := range tri {
		verts[i] = v
		verts[6+i] = v
	}
	for i, v := range tri {
		verts[6+3+i] = dmath.Vec3{X: v.X, Y: v.Y, Z: 2}
	}
	verts[3] = dmath.Vec3{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	faces[0] = scene.Face{0, 1, 2}
	faces[1] = scene.Face{5, 5, 5} // padding
	faces[2] = scene.Face{0, 1, 2}
	faces[3] = scene.Face{3, 4, 5}
	m, err := scene.MeshesFromPadded(verts, faces, []int32{3, 6}, []int32{1, 2}, 6, 2)
	if err != nil {
		t.Fatal(err)
	}

	r := newTestRasterizer(t, Settings{ImageHeight: 8, ImageWidth: 8, FragmentsPerPixel: 2})
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}
	for s := range 2 {
		limit := int32(m.FaceCount(s))
		for y := range 8 {
			for x := range 8 {
				for k := range 2 {
					if id := frags.ID(s, y, x, k); id != NoHit && id >= limit {
						t.Fatalf("scene %d pixel (%d,%d) slot %d: padded id %d in output", s, x, y, k, id)
					}
				}
			}
		}
	}
	// Scene 1's second face sits behind the first at the same footprint.
	if id := frags.ID(1, 4, 4, 1); id != 1 {
		t.Errorf("scene 1 slot 1 id = %d, want 1", id)
	}
}

func TestBackfaceCulling(t *testing.T) {
	// Clockwise in image space once v points down.
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -1, Y: -1, Z: 1},
			{X: 0, Y: 1, Z: 1},
			{X: 1, Y: -1, Z: 1},
		}},
		[][]scene.Face{{{0, 1, 2}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	anyHit := func(f *MeshFragments) bool {
		for _, id := range f.IDs {
			if id != NoHit {
				return true
			}
		}
		return false
	}

	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1, CullBackfaces: true})
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}
	if anyHit(frags) {
		t.Error("culled triangle produced fragments")
	}

	r = newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1})
	frags, err = r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}
	if !anyHit(frags) {
		t.Error("triangle vanished without culling")
	}
}

func TestNearClip(t *testing.T) {
	for _, tt := range []struct {
		name string
		z    [3]float64
	}{
		{"behind", [3]float64{-1, -1, -1}},
		{"at zero", [3]float64{0, 0, 0}},
		{"one vertex too close", [3]float64{1, 1, 0.005}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			m, err := scene.NewMeshes(
				[][]dmath.Vec3{{
					{X: -1, Y: -1, Z: tt.z[0]},
					{X: 1, Y: -1, Z: tt.z[1]},
					{X: 0, Y: 1, Z: tt.z[2]},
				}},
				[][]scene.Face{{{0, 1, 2}}},
			)
			if err != nil {
				t.Fatal(err)
			}
			r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1})
			frags, err := r.RasterizeMeshes(ortho(), m)
			if err != nil {
				t.Fatal(err)
			}
			for _, id := range frags.IDs {
				if id != NoHit {
					t.Fatalf("face with depth %v produced fragments", tt.z)
				}
			}
		})
	}
}

func TestEmptySceneInBatch(t *testing.T) {
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{
			{},
			{{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 0, Y: 1, Z: 1}},
		},
		[][]scene.Face{{}, {{0, 1, 2}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1})
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}
	for y := range 4 {
		for x := range 4 {
			if id := frags.ID(0, y, x, 0); id != NoHit {
				t.Fatalf("empty scene hit id %d at (%d,%d)", id, x, y)
			}
		}
	}
	if frags.ID(1, 0, 1, 0) != 0 {
		t.Error("non-empty scene lost its triangle")
	}
}

func TestCameraValidation(t *testing.T) {
	m := singleTriangle(t, 1)
	r := newTestRasterizer(t, DefaultSettings())

	var shapeErr *scene.ShapeError
	if _, err := r.RasterizeMeshes(nil, m); !errors.As(err, &shapeErr) {
		t.Errorf("no cameras: err = %v, want ShapeError", err)
	}
	cams := []cameras.Camera{cameras.NewOrthographic(), cameras.NewOrthographic()}
	if _, err := r.RasterizeMeshes(cams, m); !errors.As(err, &shapeErr) {
		t.Errorf("camera count mismatch: err = %v, want ShapeError", err)
	}
	if _, err := r.RasterizeMeshes([]cameras.Camera{nil}, m); !errors.As(err, &shapeErr) {
		t.Errorf("nil camera: err = %v, want ShapeError", err)
	}
	if _, err := r.RasterizeMeshes(ortho(), nil); !errors.As(err, &shapeErr) {
		t.Errorf("nil meshes: err = %v, want ShapeError", err)
	}
}

func TestOverflowFail(t *testing.T) {
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 0, Y: 1, Z: 1},
			{X: -1, Y: -1, Z: 2}, {X: 1, Y: -1, Z: 2}, {X: 0, Y: 1, Z: 2},
		}},
		[][]scene.Face{{{0, 1, 2}, {3, 4, 5}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{
		ImageHeight:       4,
		ImageWidth:        4,
		FragmentsPerPixel: 1,
		MaxPerTile:        1,
		Overflow:          OverflowFail,
	})
	_, err = r.RasterizeMeshes(ortho(), m)
	var ovf *OverflowError
	if !errors.As(err, &ovf) {
		t.Fatalf("err = %v, want OverflowError", err)
	}
	if ovf.Scene != 0 || ovf.TileX != 0 || ovf.TileY != 0 || ovf.Count != 2 || ovf.Cap != 1 {
		t.Errorf("OverflowError = %+v", ovf)
	}
}

func TestOverflowDropKeepsLowestIDs(t *testing.T) {
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -1, Y: -1, Z: 2}, {X: 1, Y: -1, Z: 2}, {X: 0, Y: 1, Z: 2},
			{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 0, Y: 1, Z: 1},
		}},
		[][]scene.Face{{{0, 1, 2}, {3, 4, 5}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{
		ImageHeight:       4,
		ImageWidth:        4,
		FragmentsPerPixel: 1,
		MaxPerTile:        1,
	})
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}
	// Face 1 is nearer but got dropped in the coarse stage; the survivor is
	// the lowest id.
	for y := range 4 {
		for x := range 4 {
			if id := frags.ID(0, y, x, 0); id != NoHit && id != 0 {
				t.Errorf("pixel (%d,%d): id = %d, want 0", x, y, id)
			}
		}
	}
	if frags.Diag.DroppedCandidates != 1 || frags.Diag.OverflowedTiles != 1 {
		t.Errorf("diagnostics = %+v", frags.Diag)
	}
}

func TestPerspectiveCorrectDepth(t *testing.T) {
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -1, Y: 0, Z: 1},
			{X: 2, Y: 0, Z: 2},
			{X: 0, Y: 1, Z: 1},
		}},
		[][]scene.Face{{{0, 1, 2}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	cams := []cameras.Camera{cameras.NewPerspective(1, 1)}

	// The single pixel center (0,0) lies on the screen edge between the
	// depth-1 and depth-2 vertices, at screen midpoint.
	r := newTestRasterizer(t, Settings{ImageHeight: 1, ImageWidth: 1, FragmentsPerPixel: 1})
	frags, err := r.RasterizeMeshes(cams, m)
	if err != nil {
		t.Fatal(err)
	}
	if id := frags.ID(0, 0, 0, 0); id != 0 {
		t.Fatalf("id = %d, want 0", id)
	}
	if d := frags.Depth(0, 0, 0, 0); math.Abs(d-1.5) > 1e-12 {
		t.Errorf("screen-linear depth = %v, want 1.5", d)
	}
	b := frags.BaryAt(0, 0, 0, 0)
	if math.Abs(b[0]-0.5) > 1e-12 || math.Abs(b[1]-0.5) > 1e-12 || math.Abs(b[2]) > 1e-12 {
		t.Errorf("screen-linear bary = %v, want (0.5,0.5,0)", b)
	}

	r = newTestRasterizer(t, Settings{ImageHeight: 1, ImageWidth: 1, FragmentsPerPixel: 1, PerspectiveCorrect: true})
	frags, err = r.RasterizeMeshes(cams, m)
	if err != nil {
		t.Fatal(err)
	}
	if d := frags.Depth(0, 0, 0, 0); math.Abs(d-4.0/3) > 1e-12 {
		t.Errorf("perspective-correct depth = %v, want 4/3", d)
	}
	b = frags.BaryAt(0, 0, 0, 0)
	if math.Abs(b[0]-2.0/3) > 1e-12 || math.Abs(b[1]-1.0/3) > 1e-12 || math.Abs(b[2]) > 1e-12 {
		t.Errorf("perspective-correct bary = %v, want (2/3,1/3,0)", b)
	}
	if d := frags.Dist(0, 0, 0, 0); math.Abs(d) > 1e-12 {
		t.Errorf("dist = %v, want 0 on the boundary", d)
	}
}

func TestBlurBand(t *testing.T) {
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -1, Y: -1, Z: 1},
			{X: 0, Y: -1, Z: 1},
			{X: 0, Y: 1, Z: 1},
		}},
		[][]scene.Face{{{0, 1, 2}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1, BlurRadius: 0.3})
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}

	// Pixel (2,1) sits 0.25 right of the vertical edge at u=0: inside the
	// blur band, outside the triangle.
	if id := frags.ID(0, 1, 2, 0); id != 0 {
		t.Fatalf("blur-band pixel id = %d, want 0", id)
	}
	if d := frags.Dist(0, 1, 2, 0); math.Abs(d-0.25) > 1e-9 {
		t.Errorf("blur-band dist = %v, want 0.25", d)
	}
	b := frags.BaryAt(0, 1, 2, 0)
	if sum := b[0] + b[1] + b[2]; math.Abs(sum-1) > 1e-9 {
		t.Errorf("blur-band bary sum = %v, want 1", sum)
	}
	if d := frags.Depth(0, 1, 2, 0); math.Abs(d-1) > 1e-9 {
		t.Errorf("blur-band depth = %v, want 1", d)
	}
	// Pixel (3,1) is 0.75 away, beyond the band.
	if id := frags.ID(0, 1, 3, 0); id != NoHit {
		t.Errorf("pixel outside the band hit id %d", id)
	}
}

func TestDepthConventionBackward(t *testing.T) {
	pc, err := scene.NewPointCloudsUniform(
		[][]dmath.Vec3{{
			{X: 0, Y: 0, Z: -2},
			{X: 0, Y: 0, Z: -1},
		}},
		0.5,
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{
		ImageHeight:       4,
		ImageWidth:        4,
		FragmentsPerPixel: 2,
		Depth:             ZBackward,
	})
	frags, err := r.RasterizePoints(ortho(), pc)
	if err != nil {
		t.Fatal(err)
	}
	// Point 1 at z=-1 is nearer under the backward convention.
	if id := frags.ID(0, 1, 1, 0); id != 1 {
		t.Fatalf("slot 0 id = %d, want 1", id)
	}
	if d := frags.Depth(0, 1, 1, 0); math.Abs(d-1) > 1e-12 {
		t.Errorf("slot 0 depth = %v, want canonical 1", d)
	}
	if id := frags.ID(0, 1, 1, 1); id != 0 {
		t.Fatalf("slot 1 id = %d, want 0", id)
	}
	if d := frags.Depth(0, 1, 1, 1); math.Abs(d-2) > 1e-12 {
		t.Errorf("slot 1 depth = %v, want canonical 2", d)
	}
}

func TestPointForward(t *testing.T) {
	pc, err := scene.NewPointClouds(
		[][]dmath.Vec3{{{X: 0, Y: 0, Z: 1}}},
		[][]float64{{0.6}},
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1})
	frags, err := r.RasterizePoints(ortho(), pc)
	if err != nil {
		t.Fatal(err)
	}

	for y := range 4 {
		for x := range 4 {
			u, v := pixelCenter(x, 4), pixelCenter(y, 4)
			d2 := u*u + v*v
			id := frags.ID(0, y, x, 0)
			if d2 > 0.36 {
				if id != NoHit {
					t.Errorf("pixel (%d,%d): id = %d, want no hit", x, y, id)
				}
				continue
			}
			if id != 0 {
				t.Errorf("pixel (%d,%d): id = %d, want 0", x, y, id)
				continue
			}
			if got := frags.Weight(0, y, x, 0); math.Abs(got-(1-d2/0.36)) > 1e-12 {
				t.Errorf("pixel (%d,%d): weight = %v, want %v", x, y, got, 1-d2/0.36)
			}
			if got := frags.Dist2(0, y, x, 0); math.Abs(got-d2) > 1e-12 {
				t.Errorf("pixel (%d,%d): dist2 = %v, want %v", x, y, got, d2)
			}
			if got := frags.Depth(0, y, x, 0); math.Abs(got-1) > 1e-12 {
				t.Errorf("pixel (%d,%d): depth = %v, want 1", x, y, got)
			}
		}
	}
	// The four pixels nearest the center are the covered set for r=0.6.
	covered := 0
	for _, id := range frags.IDs {
		if id != NoHit {
			covered++
		}
	}
	if covered != 4 {
		t.Errorf("covered pixels = %d, want 4", covered)
	}
}

func TestDegenerateGeometryNeverCovers(t *testing.T) {
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -1, Y: 0, Z: 1},
			{X: 0, Y: 0, Z: 1},
			{X: 1, Y: 0, Z: 1},
		}},
		[][]scene.Face{{{0, 1, 2}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1})
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range frags.IDs {
		if id != NoHit {
			t.Fatal("zero-area triangle produced fragments")
		}
	}
	for _, d := range frags.Depths {
		if math.IsNaN(d) {
			t.Fatal("NaN leaked into depths")
		}
	}

	pc, err := scene.NewPointClouds(
		[][]dmath.Vec3{{{X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: 1}}},
		[][]float64{{0, -0.5}},
	)
	if err != nil {
		t.Fatal(err)
	}
	pfrags, err := r.RasterizePoints(ortho(), pc)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range pfrags.IDs {
		if id != NoHit {
			t.Fatal("degenerate point produced fragments")
		}
	}
}

func TestSharedCameraBroadcast(t *testing.T) {
	tri := []dmath.Vec3{{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 0, Y: 1, Z: 1}}
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{tri, tri},
		[][]scene.Face{{{0, 1, 2}}, {{0, 1, 2}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1})
	frags, err := r.RasterizeMeshes(ortho(), m)
	if err != nil {
		t.Fatal(err)
	}
	for y := range 4 {
		for x := range 4 {
			if frags.ID(0, y, x, 0) != frags.ID(1, y, x, 0) {
				t.Fatalf("pixel (%d,%d): scenes diverge under a shared camera", x, y)
			}
			if frags.Depth(0, y, x, 0) != frags.Depth(1, y, x, 0) {
				t.Fatalf("pixel (%d,%d): depths diverge under a shared camera", x, y)
			}
		}
	}
}

func TestRasterizerReuse(t *testing.T) {
	r := newTestRasterizer(t, Settings{ImageHeight: 4, ImageWidth: 4, FragmentsPerPixel: 1})
	first, err := r.RasterizeMeshes(ortho(), singleTriangle(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	snapshot := make([]int32, len(first.IDs))
	copy(snapshot, first.IDs)

	// A second call reuses the scratch arena; the first output must not
	// change underneath the caller.
	m, err := scene.NewMeshes(
		[][]dmath.Vec3{{
			{X: -0.1, Y: -0.1, Z: 3}, {X: 0.1, Y: -0.1, Z: 3}, {X: 0, Y: 0.1, Z: 3},
		}},
		[][]scene.Face{{{0, 1, 2}}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.RasterizeMeshes(ortho(), m); err != nil {
		t.Fatal(err)
	}
	for i, id := range first.IDs {
		if id != snapshot[i] {
			t.Fatalf("IDs[%d] changed from %d to %d after rasterizer reuse", i, snapshot[i], id)
		}
	}
}

func TestRawViews(t *testing.T) {
	r := newTestRasterizer(t, Settings{ImageHeight: 2, ImageWidth: 3, FragmentsPerPixel: 2})
	frags, err := r.RasterizeMeshes(ortho(), singleTriangle(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	n := 1 * 2 * 3 * 2
	if got := len(frags.RawIDs()); got != n*4 {
		t.Errorf("RawIDs length = %d, want %d", got, n*4)
	}
	if got := len(frags.RawDepths()); got != n*8 {
		t.Errorf("RawDepths length = %d, want %d", got, n*8)
	}
	if got := len(frags.RawBary()); got != n*3*8 {
		t.Errorf("RawBary length = %d, want %d", got, n*3*8)
	}
	if got := len(frags.RawDists()); got != n*8 {
		t.Errorf("RawDists length = %d, want %d", got, n*8)
	}
}

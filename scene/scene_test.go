package scene

import (
	"errors"
	"testing"

	"github.com/TheNeeloy/diffraster/dmath"
)

func TestNewMeshesPadding(t *testing.T) {
	verts := [][]dmath.Vec3{
		{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1}},
		{{X: 0, Y: 0, Z: 2}},
	}
	faces := [][]Face{
		{{0, 1, 2}},
		{},
	}
	m, err := NewMeshes(verts, faces)
	if err != nil {
		t.Fatal(err)
	}
	if m.Batch() != 2 {
		t.Fatalf("Batch = %d, want 2", m.Batch())
	}
	if m.MaxVerts() != 3 || m.MaxFaces() != 1 {
		t.Fatalf("MaxVerts/MaxFaces = %d/%d, want 3/1", m.MaxVerts(), m.MaxFaces())
	}
	if m.VertCount(1) != 1 || m.FaceCount(1) != 0 {
		t.Fatalf("scene 1 counts = %d verts, %d faces, want 1, 0", m.VertCount(1), m.FaceCount(1))
	}
	if got := m.Vert(1, 0); got != (dmath.Vec3{X: 0, Y: 0, Z: 2}) {
		t.Errorf("Vert(1,0) = %v", got)
	}
	if got := m.VertIndex(1, 0); got != 3 {
		t.Errorf("VertIndex(1,0) = %d, want 3", got)
	}
	if len(m.Verts()) != 6 || len(m.Faces()) != 2 {
		t.Errorf("padded lengths = %d verts, %d faces, want 6, 2", len(m.Verts()), len(m.Faces()))
	}
}

func TestNewMeshesShapeErrors(t *testing.T) {
	tri := []dmath.Vec3{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1}}
	tests := []struct {
		name  string
		verts [][]dmath.Vec3
		faces [][]Face
		scene int
	}{
		{"empty batch", nil, nil, -1},
		{"list count mismatch", [][]dmath.Vec3{tri}, [][]Face{{{0, 1, 2}}, {}}, -1},
		{"face index out of range", [][]dmath.Vec3{tri}, [][]Face{{{0, 1, 3}}}, 0},
		{"negative face index", [][]dmath.Vec3{tri}, [][]Face{{{0, -1, 2}}}, 0},
		{"index beyond scene count", [][]dmath.Vec3{tri, tri[:2]}, [][]Face{{{0, 1, 2}}, {{0, 1, 2}}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMeshes(tt.verts, tt.faces)
			var serr *ShapeError
			if !errors.As(err, &serr) {
				t.Fatalf("err = %v, want *ShapeError", err)
			}
			if serr.Scene != tt.scene {
				t.Errorf("Scene = %d, want %d (%s)", serr.Scene, tt.scene, serr)
			}
		})
	}
}

func TestMeshesFromPadded(t *testing.T) {
	verts := []dmath.Vec3{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1}, {X: 0, Y: 0, Z: 2}, {}, {}}
	faces := []Face{{0, 1, 2}, {}}
	m, err := MeshesFromPadded(verts, faces, []int32{3, 1}, []int32{1, 0}, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if m.Face(0, 0) != (Face{0, 1, 2}) {
		t.Errorf("Face(0,0) = %v", m.Face(0, 0))
	}

	// declared count exceeding capacity
	_, err = MeshesFromPadded(verts, faces, []int32{4, 1}, []int32{1, 0}, 3, 1)
	var serr *ShapeError
	if !errors.As(err, &serr) || serr.Scene != 0 {
		t.Fatalf("count>capacity err = %v, want *ShapeError for scene 0", err)
	}

	// backing array too short for the declared layout
	_, err = MeshesFromPadded(verts[:5], faces, []int32{3, 1}, []int32{1, 0}, 3, 1)
	if !errors.As(err, &serr) {
		t.Fatalf("short array err = %v, want *ShapeError", err)
	}

	// garbage in face padding is fine as long as counts exclude it
	badPad := []Face{{0, 1, 2}, {99, -7, 99}}
	if _, err := MeshesFromPadded(verts, badPad, []int32{3, 1}, []int32{1, 0}, 3, 1); err != nil {
		t.Errorf("padding face rejected: %v", err)
	}
}

func TestNewPointClouds(t *testing.T) {
	pts := [][]dmath.Vec3{
		{{X: 0, Y: 0, Z: 1}, {X: 0.5, Y: 0, Z: 2}},
		{},
	}
	radii := [][]float64{{0.1, 0.2}, {}}
	p, err := NewPointClouds(pts, radii)
	if err != nil {
		t.Fatal(err)
	}
	if p.Batch() != 2 || p.MaxPoints() != 2 {
		t.Fatalf("Batch/MaxPoints = %d/%d, want 2/2", p.Batch(), p.MaxPoints())
	}
	if p.Count(1) != 0 {
		t.Errorf("Count(1) = %d, want 0", p.Count(1))
	}
	if p.Radius(0, 1) != 0.2 {
		t.Errorf("Radius(0,1) = %g, want 0.2", p.Radius(0, 1))
	}

	_, err = NewPointClouds(pts, [][]float64{{0.1}, {}})
	var serr *ShapeError
	if !errors.As(err, &serr) || serr.Scene != 0 {
		t.Fatalf("radius mismatch err = %v, want *ShapeError for scene 0", err)
	}
}

func TestNewPointCloudsUniform(t *testing.T) {
	p, err := NewPointCloudsUniform([][]dmath.Vec3{{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}}}, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	for i := range p.Count(0) {
		if p.Radius(0, i) != 0.25 {
			t.Errorf("Radius(0,%d) = %g, want 0.25", i, p.Radius(0, i))
		}
	}
}

func TestPointCloudsFromPadded(t *testing.T) {
	pts := []dmath.Vec3{{X: 0, Y: 0, Z: 1}, {}}
	radii := []float64{0.1, 0}
	if _, err := PointCloudsFromPadded(pts, radii, []int32{1, 1}, 1); err != nil {
		t.Fatal(err)
	}
	_, err := PointCloudsFromPadded(pts, radii, []int32{2, 1}, 1)
	var serr *ShapeError
	if !errors.As(err, &serr) || serr.Scene != 0 {
		t.Fatalf("count>capacity err = %v, want *ShapeError for scene 0", err)
	}
	if _, err := PointCloudsFromPadded(pts, radii[:1], []int32{1, 1}, 1); err == nil {
		t.Fatal("radius array shorter than points accepted")
	}
}

package scene

import (
	"fmt"

	"github.com/TheNeeloy/diffraster/dmath"
)

// Face indexes three vertices of one scene's vertex list.
type Face [3]int32

// Meshes is a batch of triangle meshes in the padded layout the rasterizer
// consumes: per-scene vertex and face lists packed into fixed-capacity
// arrays with explicit valid counts. Entries beyond a scene's count are
// padding and never reach any computation.
//
// A Meshes value is immutable once built; the rasterizer shares it across
// workers without copying.
type Meshes struct {
	verts      []dmath.Vec3 // batch * maxVerts
	faces      []Face       // batch * maxFaces
	vertCounts []int32
	faceCounts []int32
	maxVerts   int
	maxFaces   int
}

// NewMeshes packs per-scene vertex and face lists of differing lengths into
// a padded batch. verts and faces must have the same length (the batch
// size), which must be at least one.
func NewMeshes(verts [][]dmath.Vec3, faces [][]Face) (*Meshes, error) {
	if len(verts) == 0 {
		return nil, &ShapeError{Scene: -1, Reason: "empty batch"}
	}
	if len(verts) != len(faces) {
		return nil, &ShapeError{
			Scene:  -1,
			Reason: fmt.Sprintf("got %d vertex lists but %d face lists", len(verts), len(faces)),
		}
	}
	b := len(verts)
	maxVerts, maxFaces := 0, 0
	for i := range verts {
		maxVerts = max(maxVerts, len(verts[i]))
		maxFaces = max(maxFaces, len(faces[i]))
	}
	m := &Meshes{
		verts:      make([]dmath.Vec3, b*maxVerts),
		faces:      make([]Face, b*maxFaces),
		vertCounts: make([]int32, b),
		faceCounts: make([]int32, b),
		maxVerts:   maxVerts,
		maxFaces:   maxFaces,
	}
	for i := range verts {
		copy(m.verts[i*maxVerts:], verts[i])
		copy(m.faces[i*maxFaces:], faces[i])
		m.vertCounts[i] = int32(len(verts[i]))
		m.faceCounts[i] = int32(len(faces[i]))
	}
	if err := m.validateFaces(); err != nil {
		return nil, err
	}
	return m, nil
}

// MeshesFromPadded wraps arrays that are already in the padded batch layout.
// len(verts) must be len(vertCounts)*maxVerts and len(faces)
// len(faceCounts)*maxFaces. The arrays are retained, not copied.
func MeshesFromPadded(verts []dmath.Vec3, faces []Face, vertCounts, faceCounts []int32, maxVerts, maxFaces int) (*Meshes, error) {
	if len(vertCounts) == 0 {
		return nil, &ShapeError{Scene: -1, Reason: "empty batch"}
	}
	if len(vertCounts) != len(faceCounts) {
		return nil, &ShapeError{
			Scene:  -1,
			Reason: fmt.Sprintf("got %d vertex counts but %d face counts", len(vertCounts), len(faceCounts)),
		}
	}
	b := len(vertCounts)
	if maxVerts < 0 || maxFaces < 0 {
		return nil, &ShapeError{Scene: -1, Reason: "negative capacity"}
	}
	if len(verts) != b*maxVerts {
		return nil, &ShapeError{
			Scene:  -1,
			Reason: fmt.Sprintf("vertex array has %d entries, want %d*%d", len(verts), b, maxVerts),
		}
	}
	if len(faces) != b*maxFaces {
		return nil, &ShapeError{
			Scene:  -1,
			Reason: fmt.Sprintf("face array has %d entries, want %d*%d", len(faces), b, maxFaces),
		}
	}
	for i := range b {
		if c := vertCounts[i]; c < 0 || int(c) > maxVerts {
			return nil, &ShapeError{
				Scene:  i,
				Reason: fmt.Sprintf("declared vertex count %d exceeds capacity %d", c, maxVerts),
			}
		}
		if c := faceCounts[i]; c < 0 || int(c) > maxFaces {
			return nil, &ShapeError{
				Scene:  i,
				Reason: fmt.Sprintf("declared face count %d exceeds capacity %d", c, maxFaces),
			}
		}
	}
	m := &Meshes{
		verts:      verts,
		faces:      faces,
		vertCounts: vertCounts,
		faceCounts: faceCounts,
		maxVerts:   maxVerts,
		maxFaces:   maxFaces,
	}
	if err := m.validateFaces(); err != nil {
		return nil, err
	}
	return m, nil
}

// validateFaces checks that every face within a scene's declared count
// references vertices within that scene's declared count. Padding faces are
// not inspected.
func (m *Meshes) validateFaces() error {
	for s := range m.Batch() {
		nv := int32(m.VertCount(s))
		base := s * m.maxFaces
		for i := 0; i < m.FaceCount(s); i++ {
			f := m.faces[base+i]
			for _, v := range f {
				if v < 0 || v >= nv {
					return &ShapeError{
						Scene:  s,
						Reason: fmt.Sprintf("face %d references vertex %d, scene has %d", i, v, nv),
					}
				}
			}
		}
	}
	return nil
}

func (m *Meshes) Batch() int    { return len(m.vertCounts) }
func (m *Meshes) MaxVerts() int { return m.maxVerts }
func (m *Meshes) MaxFaces() int { return m.maxFaces }

func (m *Meshes) VertCount(scene int) int { return int(m.vertCounts[scene]) }
func (m *Meshes) FaceCount(scene int) int { return int(m.faceCounts[scene]) }

func (m *Meshes) Vert(scene, i int) dmath.Vec3 { return m.verts[scene*m.maxVerts+i] }
func (m *Meshes) Face(scene, i int) Face       { return m.faces[scene*m.maxFaces+i] }

// VertIndex maps a per-scene vertex index to its flat index in the padded
// batch. Gradient arrays returned by the rasterizer use this layout.
func (m *Meshes) VertIndex(scene, i int) int { return scene*m.maxVerts + i }

// Verts exposes the padded vertex array (batch*maxVerts). Callers must not
// mutate it while a rasterizer holds the batch.
func (m *Meshes) Verts() []dmath.Vec3 { return m.verts }

// Faces exposes the padded face array (batch*maxFaces).
func (m *Meshes) Faces() []Face { return m.faces }

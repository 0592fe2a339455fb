package scene

import "fmt"

// ShapeError reports malformed batch geometry: mismatched per-scene array
// lengths, declared counts exceeding capacity, or face indices referencing
// vertices beyond a scene's declared vertex count.
type ShapeError struct {
	// Scene is the index within the batch, or -1 for batch-level mismatches.
	Scene  int
	Reason string
}

func (err *ShapeError) Error() string {
	if err.Scene < 0 {
		return "scene: " + err.Reason
	}
	return fmt.Sprintf("scene: scene %d: %s", err.Scene, err.Reason)
}

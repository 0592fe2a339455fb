package diffraster

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid Settings field. Settings are validated
// eagerly; a ConfigError is returned before any computation begins.
type ConfigError struct {
	Field  string
	Reason string
}

func (err *ConfigError) Error() string {
	return "diffraster: invalid setting " + err.Field + ": " + err.Reason
}

// OverflowError reports a tile whose candidate count exceeded
// Settings.MaxPerTile under OverflowFail. The call is aborted as a whole;
// there is no partial output.
type OverflowError struct {
	Scene        int
	TileX, TileY int
	Count        int
	Cap          int
}

func (err *OverflowError) Error() string {
	return fmt.Sprintf("diffraster: scene %d: tile (%d, %d) holds %d candidates, cap is %d",
		err.Scene, err.TileX, err.TileY, err.Count, err.Cap)
}

// ErrGradientsUnavailable is returned by Backward when the forward pass ran
// without Settings.Gradients, or when the recorded state has already been
// consumed by an earlier Backward call.
var ErrGradientsUnavailable = errors.New("diffraster: gradient state unavailable")

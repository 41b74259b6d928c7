// Package postprocess - Postprocessing utilities for detection models.
package postprocess

import "github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/images"

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result, corner form in normalized coordinates.
	Box images.Box
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
	// The index of the anchor the result was decoded from. Used to break
	// score ties deterministically.
	Anchor int
}

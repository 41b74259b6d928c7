package ssd

import "fmt"

// ConfigError reports an invalid default-box or decoder configuration.
// It is surfaced at construction time and never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ssd: invalid configuration: %s", e.Reason)
}

func configErrorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ShapeMismatchError reports a disagreement between the anchor set and the
// length of a raw prediction. The call that produced it fails as a whole;
// no partial output is returned and no decoder state is corrupted.
type ShapeMismatchError struct {
	// Image is the batch index of the offending prediction, or -1 when the
	// mismatch is between the two batch dimensions themselves.
	Image int
	// Want is the expected anchor count.
	Want int
	// GotLoc and GotConf are the anchor counts implied by the location and
	// confidence tensors.
	GotLoc, GotConf int
}

func (e *ShapeMismatchError) Error() string {
	if e.Image < 0 {
		return fmt.Sprintf("ssd: batch length mismatch: %d location tensors vs %d confidence tensors", e.GotLoc, e.GotConf)
	}
	return fmt.Sprintf("ssd: shape mismatch for image %d: want %d anchors, got %d location / %d confidence",
		e.Image, e.Want, e.GotLoc, e.GotConf)
}

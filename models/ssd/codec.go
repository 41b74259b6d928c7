package ssd

import (
	"github.com/chewxy/math32"

	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/images"
)

// Variances are the fixed constants that rescale predicted offsets before
// they are applied to anchor geometry.
type Variances struct {
	// Center scales the center offsets (first two components).
	Center float32
	// Size scales the log-size offsets (last two components).
	Size float32
}

// DefaultVariances returns the SSD300 training constants.
func DefaultVariances() Variances {
	return Variances{Center: 0.1, Size: 0.2}
}

// BoxCodec converts between the network's learned offset representation and
// absolute boxes, using the anchor set as the reference frame. Decode is the
// inference hot path; Encode is the exact inverse and exists for testing.
type BoxCodec struct {
	anchors   []AnchorBox
	variances Variances
}

// NewBoxCodec creates a codec over the given anchor set.
func NewBoxCodec(dboxes *DefaultBoxes, variances Variances) *BoxCodec {
	return &BoxCodec{anchors: dboxes.Boxes(), variances: variances}
}

// Decode transforms per-anchor offsets into absolute center-size boxes.
// The input is anchor-major: four floats per anchor, aligned by index with
// the anchor set. NaN or Inf offsets propagate into the output unchecked;
// they are dropped naturally at the confidence-filter stage.
//
// Per-anchor semantics:
//
//	cx' = cx + off[0]*varCenter*w    w' = w * exp(off[2]*varSize)
//	cy' = cy + off[1]*varCenter*h    h' = h * exp(off[3]*varSize)
func (c *BoxCodec) Decode(loc []float32) ([]AnchorBox, error) {
	n := len(c.anchors)
	if len(loc) != 4*n {
		return nil, &ShapeMismatchError{Image: 0, Want: n, GotLoc: len(loc) / 4, GotConf: n}
	}

	out := make([]AnchorBox, n)
	for i, a := range c.anchors {
		off := loc[i*4 : i*4+4]
		out[i] = AnchorBox{
			CX: a.CX + off[0]*c.variances.Center*a.W,
			CY: a.CY + off[1]*c.variances.Center*a.H,
			W:  a.W * math32.Exp(off[2]*c.variances.Size),
			H:  a.H * math32.Exp(off[3]*c.variances.Size),
		}
	}
	return out, nil
}

// DecodeCorners decodes offsets and converts the result to corner form for
// suppression and reporting.
func (c *BoxCodec) DecodeCorners(loc []float32) ([]images.Box, error) {
	decoded, err := c.Decode(loc)
	if err != nil {
		return nil, err
	}
	out := make([]images.Box, len(decoded))
	for i, b := range decoded {
		out[i] = b.Corner()
	}
	return out, nil
}

// Encode is the inverse transform: it maps absolute center-size boxes back
// to per-anchor offsets. Unused at inference time.
func (c *BoxCodec) Encode(boxes []AnchorBox) ([]float32, error) {
	n := len(c.anchors)
	if len(boxes) != n {
		return nil, &ShapeMismatchError{Image: 0, Want: n, GotLoc: len(boxes), GotConf: n}
	}

	out := make([]float32, 4*n)
	for i, a := range c.anchors {
		b := boxes[i]
		out[i*4+0] = (b.CX - a.CX) / (c.variances.Center * a.W)
		out[i*4+1] = (b.CY - a.CY) / (c.variances.Center * a.H)
		out[i*4+2] = math32.Log(b.W/a.W) / c.variances.Size
		out[i*4+3] = math32.Log(b.H/a.H) / c.variances.Size
	}
	return out, nil
}

// Variances returns the codec's offset scaling constants.
func (c *BoxCodec) Variances() Variances {
	return c.variances
}

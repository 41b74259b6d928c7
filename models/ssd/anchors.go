// Package ssd - SSD300 detection decode pipeline: default-box generation,
// offset decoding, and per-class suppression.
package ssd

import (
	"github.com/chewxy/math32"

	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/images"
)

// AnchorBox is a default box in center-size form, in normalized [0, 1]
// image coordinates. Generated boxes are not clipped; values may slightly
// exceed the unit square and are clamped only at consumption time.
type AnchorBox struct {
	CX, CY, W, H float32
}

// Corner converts the box to corner form.
func (a AnchorBox) Corner() images.Box {
	return images.Box{
		X1: a.CX - 0.5*a.W,
		Y1: a.CY - 0.5*a.H,
		X2: a.CX + 0.5*a.W,
		Y2: a.CY + 0.5*a.H,
	}
}

// DefaultBoxesConfig describes the anchor grid of one input resolution.
type DefaultBoxesConfig struct {
	// FeatureMapSizes holds the spatial resolution of each detection scale.
	FeatureMapSizes []int
	// Scales holds the box scale per detection scale as a fraction of the
	// image size, plus one trailing boundary value used only for the
	// geometric-mean square of the last scale. Must be strictly increasing;
	// every value except the trailing boundary must lie in (0, 1].
	Scales []float32
	// AspectRatios holds the non-square aspect ratios applied at each scale.
	// Each ratio r produces a pair of boxes (r and its reciprocal).
	AspectRatios [][]float32
}

// SSD300Config returns the canonical SSD300 anchor configuration: 8732
// default boxes over six scales.
func SSD300Config() DefaultBoxesConfig {
	return DefaultBoxesConfig{
		FeatureMapSizes: []int{38, 19, 10, 5, 3, 1},
		Scales: []float32{
			21.0 / 300, 45.0 / 300, 99.0 / 300, 153.0 / 300,
			207.0 / 300, 261.0 / 300, 315.0 / 300,
		},
		AspectRatios: [][]float32{{2}, {2, 3}, {2, 3}, {2, 3}, {2}, {2}},
	}
}

// DefaultBoxes is the full ordered anchor set for a fixed input resolution.
// It is built once, never mutated afterwards, and safe for concurrent reads.
type DefaultBoxes struct {
	config   DefaultBoxesConfig
	boxes    []AnchorBox
	perScale []int
}

// NewDefaultBoxes validates the configuration and generates the anchor set.
// The generation is a pure function of the configuration: two calls with the
// same configuration yield identical boxes.
//
// Ordering is scale ascending, then row ascending, then column ascending,
// then variant ascending. Variants per cell: the 1:1 box at the scale value,
// the extra square at the geometric mean of this and the next scale value,
// then each configured ratio followed by its reciprocal.
func NewDefaultBoxes(config DefaultBoxesConfig) (*DefaultBoxes, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	d := &DefaultBoxes{
		config:   config,
		perScale: make([]int, len(config.FeatureMapSizes)),
	}

	total := 0
	for idx, fm := range config.FeatureMapSizes {
		variants := 2 + 2*len(config.AspectRatios[idx])
		d.perScale[idx] = fm * fm * variants
		total += d.perScale[idx]
	}
	d.boxes = make([]AnchorBox, 0, total)

	for idx, fm := range config.FeatureMapSizes {
		sk1 := config.Scales[idx]
		sk2 := config.Scales[idx+1]
		sk3 := math32.Sqrt(sk1 * sk2)

		// Width/height variants shared by every cell at this scale.
		sizes := make([][2]float32, 0, 2+2*len(config.AspectRatios[idx]))
		sizes = append(sizes, [2]float32{sk1, sk1}, [2]float32{sk3, sk3})
		for _, r := range config.AspectRatios[idx] {
			sq := math32.Sqrt(r)
			sizes = append(sizes, [2]float32{sk1 * sq, sk1 / sq}, [2]float32{sk1 / sq, sk1 * sq})
		}

		for row := 0; row < fm; row++ {
			cy := (float32(row) + 0.5) / float32(fm)
			for col := 0; col < fm; col++ {
				cx := (float32(col) + 0.5) / float32(fm)
				for _, wh := range sizes {
					d.boxes = append(d.boxes, AnchorBox{CX: cx, CY: cy, W: wh[0], H: wh[1]})
				}
			}
		}
	}

	return d, nil
}

func validateConfig(config DefaultBoxesConfig) error {
	if len(config.FeatureMapSizes) == 0 {
		return configErrorf("no feature map sizes")
	}
	if len(config.Scales) != len(config.FeatureMapSizes)+1 {
		return configErrorf("want %d scales for %d feature maps, got %d",
			len(config.FeatureMapSizes)+1, len(config.FeatureMapSizes), len(config.Scales))
	}
	if len(config.AspectRatios) != len(config.FeatureMapSizes) {
		return configErrorf("want %d aspect ratio sets, got %d",
			len(config.FeatureMapSizes), len(config.AspectRatios))
	}
	for i, fm := range config.FeatureMapSizes {
		if fm <= 0 {
			return configErrorf("feature map size %d at scale %d", fm, i)
		}
	}
	for i, s := range config.Scales {
		if s <= 0 {
			return configErrorf("scale %v at index %d is not positive", s, i)
		}
		if i > 0 && s <= config.Scales[i-1] {
			return configErrorf("scales must be strictly increasing, got %v after %v", s, config.Scales[i-1])
		}
		// The trailing boundary only feeds the geometric-mean square of the
		// last scale and may exceed 1 (315/300 in the reference table).
		if i < len(config.Scales)-1 && s > 1 {
			return configErrorf("scale %v at index %d exceeds 1", s, i)
		}
	}
	for i, ratios := range config.AspectRatios {
		for _, r := range ratios {
			if r <= 0 {
				return configErrorf("aspect ratio %v at scale %d", r, i)
			}
		}
	}
	return nil
}

// Boxes returns the flat ordered anchor set. Callers must treat it as
// read-only shared data.
func (d *DefaultBoxes) Boxes() []AnchorBox {
	return d.boxes
}

// Len returns the total number of default boxes.
func (d *DefaultBoxes) Len() int {
	return len(d.boxes)
}

// PerScale returns the number of boxes contributed by each detection scale.
func (d *DefaultBoxes) PerScale() []int {
	out := make([]int, len(d.perScale))
	copy(out, d.perScale)
	return out
}

// Config returns a copy of the generating configuration.
func (d *DefaultBoxes) Config() DefaultBoxesConfig {
	return d.config
}

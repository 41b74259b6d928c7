package ssd

import (
	"sort"
	"sync"

	"github.com/chewxy/math32"

	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/models/postprocess"
)

// DecoderConfig tunes the raw-prediction decode pipeline.
type DecoderConfig struct {
	// Criteria is the IoU overlap above which two boxes of the same class
	// suppress each other.
	Criteria float32
	// MaxOutput caps the number of detections reported per image.
	MaxOutput int
	// ScoreThreshold drops candidates before suppression. Only scores
	// strictly above it pass, so NaN scores never become candidates.
	ScoreThreshold float32
	// MaxCandidates caps how many boxes per class enter suppression.
	MaxCandidates int
	// Workers bounds how many images of a batch decode concurrently.
	// Zero or negative means sequential.
	Workers int
}

// DefaultDecoderConfig returns the reference evaluation settings.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		Criteria:       0.5,
		MaxOutput:      20,
		ScoreThreshold: 0.05,
		MaxCandidates:  200,
		Workers:        0,
	}
}

// Decoder turns raw network output into scored, suppressed detections.
// Construction validates the configuration; a built decoder is stateless
// per call and safe for concurrent use.
type Decoder struct {
	codec      *BoxCodec
	numClasses int
	numAnchors int
	config     DecoderConfig
}

// NewDecoder builds a decoder over the given anchor set. numClasses counts
// all classes including the background class at index 0, which is never
// reported.
func NewDecoder(dboxes *DefaultBoxes, numClasses int, config DecoderConfig) (*Decoder, error) {
	if numClasses < 2 {
		return nil, configErrorf("need at least 2 classes (background plus one), got %d", numClasses)
	}
	if config.Criteria <= 0 || config.Criteria > 1 {
		return nil, configErrorf("criteria %v outside (0, 1]", config.Criteria)
	}
	if config.MaxOutput <= 0 {
		return nil, configErrorf("max output %d is not positive", config.MaxOutput)
	}
	if config.MaxCandidates <= 0 {
		return nil, configErrorf("max candidates %d is not positive", config.MaxCandidates)
	}
	return &Decoder{
		codec:      NewBoxCodec(dboxes, DefaultVariances()),
		numClasses: numClasses,
		numAnchors: dboxes.Len(),
		config:     config,
	}, nil
}

// NumAnchors returns the anchor count the decoder expects per image.
func (d *Decoder) NumAnchors() int {
	return d.numAnchors
}

// NumClasses returns the class count including background.
func (d *Decoder) NumClasses() int {
	return d.numClasses
}

// DecodeBatch decodes one batch of raw predictions into per-image detection
// lists. locBatch holds anchor-major location offsets (4 floats per anchor);
// confBatch holds anchor-major unnormalized class logits (numClasses floats
// per anchor). Shapes are validated for the whole batch before any decoding
// starts, so an error never comes with partial output.
//
// Output per image is sorted by confidence descending, ties broken by class
// then anchor index ascending, truncated to MaxOutput.
func (d *Decoder) DecodeBatch(locBatch, confBatch [][]float32) ([][]postprocess.Result, error) {
	if len(locBatch) != len(confBatch) {
		return nil, &ShapeMismatchError{Image: -1, Want: d.numAnchors, GotLoc: len(locBatch), GotConf: len(confBatch)}
	}
	for i := range locBatch {
		if len(locBatch[i]) != 4*d.numAnchors || len(confBatch[i]) != d.numClasses*d.numAnchors {
			return nil, &ShapeMismatchError{
				Image:   i,
				Want:    d.numAnchors,
				GotLoc:  len(locBatch[i]) / 4,
				GotConf: len(confBatch[i]) / d.numClasses,
			}
		}
	}

	out := make([][]postprocess.Result, len(locBatch))
	workers := d.config.Workers
	if workers <= 1 || len(locBatch) <= 1 {
		for i := range locBatch {
			out[i] = d.decodeSingle(locBatch[i], confBatch[i])
		}
		return out, nil
	}

	if workers > len(locBatch) {
		workers = len(locBatch)
	}
	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = d.decodeSingle(locBatch[i], confBatch[i])
			}
		}()
	}
	for i := range locBatch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out, nil
}

// decodeSingle runs the full pipeline for one image. Shapes are already
// validated by the caller.
func (d *Decoder) decodeSingle(loc, conf []float32) []postprocess.Result {
	boxes, _ := d.codec.DecodeCorners(loc)
	scores := d.softmax(conf)

	suppress := postprocess.SuppressConfig{
		IoUThreshold:  d.config.Criteria,
		MaxCandidates: d.config.MaxCandidates,
		MaxResults:    d.config.MaxOutput,
	}

	var merged []postprocess.Result
	candidates := make([]postprocess.Result, 0, d.config.MaxCandidates)
	for class := 1; class < d.numClasses; class++ {
		candidates = candidates[:0]
		for anchor := 0; anchor < d.numAnchors; anchor++ {
			score := scores[anchor*d.numClasses+class]
			// Positive comparison so NaN scores never qualify.
			if !(score > d.config.ScoreThreshold) {
				continue
			}
			candidates = append(candidates, postprocess.Result{
				Box:    boxes[anchor],
				Score:  score,
				Class:  class,
				Anchor: anchor,
			})
		}
		merged = append(merged, postprocess.Suppress(candidates, suppress)...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].Class != merged[j].Class {
			return merged[i].Class < merged[j].Class
		}
		return merged[i].Anchor < merged[j].Anchor
	})
	if len(merged) > d.config.MaxOutput {
		merged = merged[:d.config.MaxOutput]
	}
	return merged
}

// softmax normalizes per-anchor class logits into probabilities. The input
// and output are anchor-major with numClasses entries per anchor. The max
// logit is subtracted per anchor before exponentiation for stability.
func (d *Decoder) softmax(conf []float32) []float32 {
	out := make([]float32, len(conf))
	for anchor := 0; anchor < d.numAnchors; anchor++ {
		row := conf[anchor*d.numClasses : (anchor+1)*d.numClasses]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		dst := out[anchor*d.numClasses : (anchor+1)*d.numClasses]
		for i, v := range row {
			e := math32.Exp(v - max)
			dst[i] = e
			sum += e
		}
		for i := range dst {
			dst[i] /= sum
		}
	}
	return out
}

// PickBest filters a detection list down to entries scoring strictly above
// threshold, preserving order. The input is never mutated.
func PickBest(detections []postprocess.Result, threshold float32) []postprocess.Result {
	out := make([]postprocess.Result, 0, len(detections))
	for _, det := range detections {
		if det.Score > threshold {
			out = append(out, det)
		}
	}
	return out
}

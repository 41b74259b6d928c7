// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/images"
)

// SuppressConfig defines parameters for Non-Maximum Suppression.
type SuppressConfig struct {
	// IoUThreshold is the overlap threshold above which a lower-confidence
	// box is suppressed.
	IoUThreshold float32
	// MaxCandidates bounds how many of the highest-confidence candidates
	// are considered per call. Zero means no bound.
	MaxCandidates int
	// MaxResults caps how many boxes are emitted per call. Zero means no cap.
	MaxResults int
}

// DefaultSuppressConfig returns the SSD300 suppression parameters.
func DefaultSuppressConfig() SuppressConfig {
	return SuppressConfig{
		IoUThreshold:  0.5,
		MaxCandidates: 200,
		MaxResults:    20,
	}
}

// Suppress performs greedy Non-Maximum Suppression over one class's
// candidates. The input is never mutated; the output is a subset of the
// input sorted by descending confidence, with score ties broken by ascending
// anchor index so repeated calls are deterministic.
//
// Arguments:
//   - candidates: Detection candidates for a single class.
//   - config: Suppression configuration.
//
// Returns:
//   - Filtered slice of detections. If no candidates are provided, returns nil.
func Suppress(candidates []Result, config SuppressConfig) []Result {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	sorted := make([]Result, n)
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Anchor < sorted[j].Anchor
	})

	if config.MaxCandidates > 0 && n > config.MaxCandidates {
		sorted = sorted[:config.MaxCandidates]
		n = config.MaxCandidates
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true
		if config.MaxResults > 0 && len(filtered) >= config.MaxResults {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			// Suppress if IoU exceeds threshold.
			if images.CalculateIoU(anchor.Box, sorted[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}

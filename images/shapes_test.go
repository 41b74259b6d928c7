package images

import (
	"math"
	"testing"
)

// TestIoU_Correctness validates the IoU implementation against known test cases.
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Box
		r2       Box
		expected float32
		epsilon  float32
	}{
		{
			name:     "Identical boxes",
			r1:       Box{0, 0, 1, 1},
			r2:       Box{0, 0, 1, 1},
			expected: 1.0,
			epsilon:  0.001,
		},
		{
			name:     "No overlap",
			r1:       Box{0, 0, 0.4, 0.4},
			r2:       Box{0.6, 0.6, 1, 1},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Touching edges",
			r1:       Box{0, 0, 0.5, 1},
			r2:       Box{0.5, 0, 1, 1},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Quarter shift",
			r1:       Box{0, 0, 0.4, 0.4},
			r2:       Box{0.2, 0.2, 0.6, 0.6},
			expected: 0.142857, // inter=0.04, union=0.16+0.16-0.04=0.28, 1/7
			epsilon:  0.001,
		},
		{
			name:     "One inside other",
			r1:       Box{0, 0, 0.8, 0.8},
			r2:       Box{0.2, 0.2, 0.6, 0.6},
			expected: 0.25, // inter=0.16, union=0.64
			epsilon:  0.001,
		},
		{
			name:     "Degenerate box",
			r1:       Box{0.3, 0.3, 0.3, 0.7},
			r2:       Box{0, 0, 1, 1},
			expected: 0.0,
			epsilon:  0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			if math.Abs(float64(result-tt.expected)) > float64(tt.epsilon) {
				t.Errorf("CalculateIoU() = %v, expected %v (±%v)", result, tt.expected, tt.epsilon)
			}

			// IoU(A, B) must equal IoU(B, A).
			reverse := CalculateIoU(tt.r2, tt.r1)
			if math.Abs(float64(result-reverse)) > float64(tt.epsilon) {
				t.Errorf("IoU not symmetric: IoU(A,B)=%v != IoU(B,A)=%v", result, reverse)
			}
		})
	}
}

func TestBoxArea(t *testing.T) {
	if got := (Box{0, 0, 0.5, 0.2}).Area(); math.Abs(float64(got-0.1)) > 1e-6 {
		t.Errorf("Area() = %v, expected 0.1", got)
	}
	// Inverted corners must not produce a negative area.
	if got := (Box{0.5, 0.5, 0.2, 0.2}).Area(); got != 0 {
		t.Errorf("Area() of inverted box = %v, expected 0", got)
	}
}

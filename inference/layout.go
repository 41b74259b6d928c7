// Package inference - ONNX Runtime execution of the detection network.
package inference

// TransposeChannelMajor reorders a [channels, anchors] tensor into
// anchor-major layout. The network emits ploc as [1, 4, 8732] and plabel as
// [1, 81, 8732]; the decoder wants all values of one anchor adjacent.
func TransposeChannelMajor(raw []float32, channels, anchors int) []float32 {
	out := make([]float32, len(raw))
	for c := 0; c < channels; c++ {
		row := raw[c*anchors : (c+1)*anchors]
		for a, v := range row {
			out[a*channels+c] = v
		}
	}
	return out
}

// Package model - Numeric precision handling.
//
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
package model

import "github.com/x448/float16"

// Precision represents the numeric precision of a model.
type Precision string

const (
	// PrecisionFP32 represents 32-bit floating point precision.
	PrecisionFP32 Precision = "FP32"
	// PrecisionFP16 represents 16-bit floating point precision.
	PrecisionFP16 Precision = "FP16"
)

// Valid reports whether p is a supported precision.
func (p Precision) Valid() bool {
	return p == PrecisionFP32 || p == PrecisionFP16
}

// ToHalf converts a float32 slice to IEEE 754 half precision. Values outside
// the half-precision range saturate to ±Inf per the float16 conversion rules.
func ToHalf(data []float32) []float16.Float16 {
	out := make([]float16.Float16, len(data))
	for i, v := range data {
		out[i] = float16.Fromfloat32(v)
	}
	return out
}

// FromHalf converts half-precision data back to float32.
func FromHalf(data []float16.Float16) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = v.Float32()
	}
	return out
}

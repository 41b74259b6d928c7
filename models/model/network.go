package model

// Network is the opaque detection network boundary. It maps one
// preprocessed CHW input tensor to anchor-major location offsets and class
// scores; the decode pipeline consumes the outputs without knowing how they
// were produced.
type Network interface {
	// Infer runs the network on one input tensor. loc holds 4 floats per
	// anchor, conf holds one score per class per anchor, both anchor-major.
	Infer(input []float32) (loc []float32, conf []float32, err error)
	// Close releases the backing runtime resources.
	Close() error
}

package inference

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/models/model"
)

// Initialize loads the ONNX Runtime shared library and creates the global
// environment. Safe to call more than once. libraryPath may be empty to use
// the platform default lookup.
func Initialize(libraryPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "failed to initialize onnxruntime")
	}
	return nil
}

// Shutdown destroys the global ONNX Runtime environment.
func Shutdown() error {
	return ort.DestroyEnvironment()
}

// SessionConfig describes the exported SSD300 graph: tensor names, anchor
// geometry, and the element type the graph was exported with.
type SessionConfig struct {
	ModelPath  string
	Precision  model.Precision
	NumAnchors int
	NumClasses int
	// Tensor names as exported.
	InputName string
	LocName   string
	ConfName  string
	// Input geometry.
	InputWidth  int
	InputHeight int
}

// DefaultSessionConfig returns the canonical SSD300 export layout:
// input "image" 1x3x300x300, outputs "ploc" 1x4x8732 and "plabel" 1x81x8732.
//
// The anchor axis must be index-aligned with the decoder's anchor set.
// Exports whose box head emits a different per-scale anchor order (the
// reference export inner-orders by box variant, not by cell) need a remap
// of the anchor axis before decoding.
func DefaultSessionConfig(modelPath string) SessionConfig {
	return SessionConfig{
		ModelPath:   modelPath,
		Precision:   model.PrecisionFP32,
		NumAnchors:  8732,
		NumClasses:  81,
		InputName:   "image",
		LocName:     "ploc",
		ConfName:    "plabel",
		InputWidth:  300,
		InputHeight: 300,
	}
}

func (c SessionConfig) validate() error {
	if c.ModelPath == "" {
		return errors.New("inference: empty model path")
	}
	if !c.Precision.Valid() {
		return errors.Errorf("inference: unknown precision %q", c.Precision)
	}
	if c.NumAnchors <= 0 || c.NumClasses < 2 {
		return errors.Errorf("inference: bad geometry: %d anchors, %d classes", c.NumAnchors, c.NumClasses)
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return errors.Errorf("inference: bad input size %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.InputName == "" || c.LocName == "" || c.ConfName == "" {
		return errors.New("inference: empty tensor name")
	}
	return nil
}

// Session runs the SSD300 network through ONNX Runtime, one image per call.
// Tensors are allocated once and reused across Infer calls; a Session is
// not safe for concurrent use.
type Session struct {
	config  SessionConfig
	session *ort.AdvancedSession

	// FP32 graphs.
	inputF32 *ort.Tensor[float32]
	locF32   *ort.Tensor[float32]
	confF32  *ort.Tensor[float32]

	// FP16 graphs exchange raw half-precision bytes.
	inputF16 *ort.CustomDataTensor
	locF16   *ort.CustomDataTensor
	confF16  *ort.CustomDataTensor
}

var _ model.Network = (*Session)(nil)

// NewSession builds the runtime session and its input/output tensors.
// Initialize must have succeeded first.
func NewSession(config SessionConfig) (*Session, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	inShape := ort.NewShape(1, 3, int64(config.InputHeight), int64(config.InputWidth))
	locShape := ort.NewShape(1, 4, int64(config.NumAnchors))
	confShape := ort.NewShape(1, int64(config.NumClasses), int64(config.NumAnchors))

	s := &Session{config: config}
	var inputs, outputs []ort.ArbitraryTensor
	var err error
	if config.Precision == model.PrecisionFP16 {
		if s.inputF16, err = ort.NewCustomDataTensor(inShape, make([]byte, 2*inShape.FlattenedSize()), ort.TensorElementDataTypeFloat16); err == nil {
			if s.locF16, err = ort.NewCustomDataTensor(locShape, make([]byte, 2*locShape.FlattenedSize()), ort.TensorElementDataTypeFloat16); err == nil {
				s.confF16, err = ort.NewCustomDataTensor(confShape, make([]byte, 2*confShape.FlattenedSize()), ort.TensorElementDataTypeFloat16)
			}
		}
		inputs = []ort.ArbitraryTensor{s.inputF16}
		outputs = []ort.ArbitraryTensor{s.locF16, s.confF16}
	} else {
		if s.inputF32, err = ort.NewEmptyTensor[float32](inShape); err == nil {
			if s.locF32, err = ort.NewEmptyTensor[float32](locShape); err == nil {
				s.confF32, err = ort.NewEmptyTensor[float32](confShape)
			}
		}
		inputs = []ort.ArbitraryTensor{s.inputF32}
		outputs = []ort.ArbitraryTensor{s.locF32, s.confF32}
	}
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to allocate tensors")
	}

	s.session, err = ort.NewAdvancedSession(
		config.ModelPath,
		[]string{config.InputName},
		[]string{config.LocName, config.ConfName},
		inputs,
		outputs,
		nil,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrapf(err, "failed to create session for %s", config.ModelPath)
	}
	return s, nil
}

// Config returns the session configuration.
func (s *Session) Config() SessionConfig {
	return s.config
}

// Infer runs the network on one preprocessed CHW tensor and returns the
// decoder-ready anchor-major location and confidence slices.
func (s *Session) Infer(input []float32) ([]float32, []float32, error) {
	want := 3 * s.config.InputWidth * s.config.InputHeight
	if len(input) != want {
		return nil, nil, errors.Errorf("inference: input has %d elements, want %d", len(input), want)
	}

	s.setInput(input)
	if err := s.session.Run(); err != nil {
		return nil, nil, errors.Wrap(err, "inference run failed")
	}

	rawLoc, rawConf := s.readOutputs()
	loc := TransposeChannelMajor(rawLoc, 4, s.config.NumAnchors)
	conf := TransposeChannelMajor(rawConf, s.config.NumClasses, s.config.NumAnchors)
	return loc, conf, nil
}

// InferBatch runs the network image by image over a flat [N, 3, H, W]
// batch tensor. The session graph is fixed at batch size one, so images run
// sequentially.
func (s *Session) InferBatch(batch []float32, batchSize int) (locBatch, confBatch [][]float32, err error) {
	per := 3 * s.config.InputWidth * s.config.InputHeight
	if batchSize <= 0 || len(batch) != batchSize*per {
		return nil, nil, errors.Errorf("inference: batch has %d elements, want %d for %d images",
			len(batch), batchSize*per, batchSize)
	}

	locBatch = make([][]float32, batchSize)
	confBatch = make([][]float32, batchSize)
	for i := 0; i < batchSize; i++ {
		locBatch[i], confBatch[i], err = s.Infer(batch[i*per : (i+1)*per])
		if err != nil {
			return nil, nil, err
		}
	}
	return locBatch, confBatch, nil
}

func (s *Session) setInput(input []float32) {
	if s.inputF32 != nil {
		copy(s.inputF32.GetData(), input)
		return
	}
	data := s.inputF16.GetData()
	for i, v := range input {
		binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v).Bits())
	}
}

func (s *Session) readOutputs() ([]float32, []float32) {
	if s.locF32 != nil {
		return s.locF32.GetData(), s.confF32.GetData()
	}
	return halfBytesToFloat32(s.locF16.GetData()), halfBytesToFloat32(s.confF16.GetData())
}

func halfBytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
	}
	return out
}

// Close releases the session and its tensors.
func (s *Session) Close() error {
	if s.inputF32 != nil {
		s.inputF32.Destroy()
		s.inputF32 = nil
	}
	if s.locF32 != nil {
		s.locF32.Destroy()
		s.locF32 = nil
	}
	if s.confF32 != nil {
		s.confF32.Destroy()
		s.confF32 = nil
	}
	if s.inputF16 != nil {
		s.inputF16.Destroy()
		s.inputF16 = nil
	}
	if s.locF16 != nil {
		s.locF16.Destroy()
		s.locF16 = nil
	}
	if s.confF16 != nil {
		s.confF16.Destroy()
		s.confF16 = nil
	}
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	return nil
}

package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Normalization constants matching the SSD300 training recipe: pixel values
// in [0, 1] are mapped through (p*256 - mean) / std.
const (
	NormalizeMean = 128.0
	NormalizeStd  = 128.0
)

// PipelineConfig defines the geometry of the preprocessing pipeline.
type PipelineConfig struct {
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
}

// DefaultPipelineConfig returns the SSD300 input geometry.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{InputWidth: 300, InputHeight: 300}
}

// Pipeline converts raw images into model-ready CHW float32 tensors:
// aspect-preserving rescale, center crop, normalization, layout conversion.
type Pipeline struct {
	config PipelineConfig
}

// NewPipeline creates a preprocessing pipeline for the given input geometry.
func NewPipeline(config PipelineConfig) (*Pipeline, error) {
	if config.InputWidth <= 0 || config.InputHeight <= 0 {
		return nil, errors.Errorf("invalid input geometry %dx%d", config.InputWidth, config.InputHeight)
	}
	return &Pipeline{config: config}, nil
}

// Rescale resizes img so that its short side matches the model input while
// preserving aspect ratio. The scaling is expressed through min/max on the
// source dimensions rather than branching on an exact aspect comparison, so
// square inputs take no special path.
func (p *Pipeline) Rescale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return img
	}

	aspect := float64(w) / float64(h)
	if w >= h {
		// Landscape or square: height pinned to the input height.
		newW := uint(aspect*float64(p.config.InputHeight) + 0.5)
		return resize.Resize(newW, uint(p.config.InputHeight), img, resize.Lanczos3)
	}
	// Portrait: width pinned to the input width.
	newH := uint(float64(p.config.InputWidth)/aspect + 0.5)
	return resize.Resize(uint(p.config.InputWidth), newH, img, resize.Lanczos3)
}

// CropCenter extracts the centered InputWidth x InputHeight window.
func (p *Pipeline) CropCenter(img image.Image) image.Image {
	bounds := img.Bounds()
	cropW, cropH := p.config.InputWidth, p.config.InputHeight
	startX := bounds.Min.X + (bounds.Dx()-cropW)/2
	startY := bounds.Min.Y + (bounds.Dy()-cropH)/2

	out := image.NewRGBA(image.Rect(0, 0, cropW, cropH))
	for y := 0; y < cropH; y++ {
		for x := 0; x < cropW; x++ {
			out.Set(x, y, img.At(startX+x, startY+y))
		}
	}
	return out
}

// ToTensor converts an InputWidth x InputHeight image into a normalized CHW
// float32 tensor with channels in RGB order.
func (p *Pipeline) ToTensor(img image.Image) []float32 {
	w, h := p.config.InputWidth, p.config.InputHeight
	channelSize := w * h
	data := make([]float32, 3*channelSize)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	bounds := img.Bounds()
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			red[i] = normalizePixel(float32(r >> 8))
			green[i] = normalizePixel(float32(g >> 8))
			blue[i] = normalizePixel(float32(b >> 8))
			i++
		}
	}
	return data
}

// normalizePixel maps an 8-bit channel value through the [0,1] float image
// convention and the (p*256 - mean) / std training normalization.
func normalizePixel(v float32) float32 {
	return (v/255.0*256.0 - NormalizeMean) / NormalizeStd
}

// Prepare runs the full pipeline on one image: rescale, center crop,
// normalize, CHW conversion.
func (p *Pipeline) Prepare(img image.Image) []float32 {
	return p.ToTensor(p.CropCenter(p.Rescale(img)))
}

// PrepareBatch runs the pipeline on every image and concatenates the
// per-image tensors into one batch tensor of shape [N, 3, H, W].
//
// Arguments:
//   - imgs: The decoded input images.
//
// Returns:
//   - []float32: Batch tensor data, len N*3*InputHeight*InputWidth.
//   - error: An error if the batch is empty.
func (p *Pipeline) PrepareBatch(imgs []image.Image) ([]float32, error) {
	if len(imgs) == 0 {
		return nil, errors.New("empty input batch")
	}
	per := 3 * p.config.InputWidth * p.config.InputHeight
	data := make([]float32, 0, len(imgs)*per)
	for _, img := range imgs {
		data = append(data, p.Prepare(img)...)
	}
	return data, nil
}

// Config returns the pipeline geometry.
func (p *Pipeline) Config() PipelineConfig {
	return p.config
}

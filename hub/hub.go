package hub

import (
	"context"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/images"
	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/models/model"
	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/models/postprocess"
	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/models/ssd"
)

// Default checkpoint locations per precision.
const (
	DefaultCheckpointURLFP32 = "https://api.ngc.nvidia.com/v2/models/nvidia/ssd_pyt_ckpt_amp/versions/20.06.0/files/nvidia_ssdpyt_fp32_200703.npz"
	DefaultCheckpointURLFP16 = "https://api.ngc.nvidia.com/v2/models/nvidia/ssd_pyt_ckpt_amp/versions/20.06.0/files/nvidia_ssdpyt_amp_200703.npz"
)

// Config controls the SSD300 entrypoint.
type Config struct {
	// Precision selects the parameter storage precision.
	Precision model.Precision
	// Pretrained fetches and loads the published checkpoint. When false the
	// model is built zero-initialized from the manifest.
	Pretrained bool
	// ForceReload discards a cached checkpoint and downloads it again.
	ForceReload bool
	// CacheDir overrides the checkpoint cache location. Empty means the
	// user cache directory.
	CacheDir string
	// CheckpointURL overrides the per-precision default checkpoint.
	CheckpointURL string
}

// DefaultConfig returns the entrypoint defaults: pretrained FP32 weights
// into the user cache directory.
func DefaultConfig() Config {
	return Config{
		Precision:  model.PrecisionFP32,
		Pretrained: true,
	}
}

func (c Config) checkpointURL() string {
	if c.CheckpointURL != "" {
		return c.CheckpointURL
	}
	if c.Precision == model.PrecisionFP16 {
		return DefaultCheckpointURLFP16
	}
	return DefaultCheckpointURLFP32
}

func (c Config) cacheDir() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve user cache directory")
	}
	return filepath.Join(base, "ssd300"), nil
}

// SSD300 builds the SSD300 detection model together with its processing
// companion. With Pretrained set it fetches the checkpoint through the
// cache, unwraps distributed-training key prefixes, and loads the weights
// at the requested precision.
func SSD300(ctx context.Context, config Config) (*ssd.SSD300, *Processing, error) {
	if !config.Precision.Valid() {
		return nil, nil, errors.Errorf("hub: unknown precision %q", config.Precision)
	}

	var dict StateDict
	if config.Pretrained {
		dir, err := config.cacheDir()
		if err != nil {
			return nil, nil, err
		}
		cache, err := NewCheckpointCache(dir)
		if err != nil {
			return nil, nil, err
		}
		path, err := cache.Fetch(ctx, config.checkpointURL(), config.ForceReload)
		if err != nil {
			return nil, nil, err
		}
		raw, err := ReadStateDictFile(path)
		if err != nil {
			return nil, nil, err
		}
		dict, err = UnwrapDistributed(raw)
		if err != nil {
			return nil, nil, err
		}
	} else {
		dict = zeroStateDict()
	}

	m, err := ssd.Load(config.Precision, dict)
	if err != nil {
		return nil, nil, err
	}

	processing, err := NewProcessing()
	if err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"model":      m.Name(),
		"precision":  m.Precision(),
		"pretrained": config.Pretrained,
	}).Info("model ready")
	return m, processing, nil
}

func zeroStateDict() StateDict {
	manifest := ssd.SSD300Manifest()
	dict := make(StateDict, len(manifest))
	for _, spec := range manifest {
		dict[spec.Name] = make([]float32, spec.Count)
	}
	return dict
}

// Processing bundles the input and output halves of the SSD300 pipeline:
// image preprocessing into network tensors, and raw network output decoding
// into detections.
type Processing struct {
	pipeline *images.Pipeline
	decoder  *ssd.Decoder
}

// NewProcessing builds the companion with the canonical SSD300 geometry
// and decode settings.
func NewProcessing() (*Processing, error) {
	pipeline, err := images.NewPipeline(images.DefaultPipelineConfig())
	if err != nil {
		return nil, err
	}
	dboxes, err := ssd.NewDefaultBoxes(ssd.SSD300Config())
	if err != nil {
		return nil, err
	}
	decoder, err := ssd.NewDecoder(dboxes, ssd.NumClassesCOCO, ssd.DefaultDecoderConfig())
	if err != nil {
		return nil, err
	}
	return &Processing{pipeline: pipeline, decoder: decoder}, nil
}

// PrepareInput preprocesses one image into a CHW float32 tensor.
func (p *Processing) PrepareInput(img image.Image) []float32 {
	return p.pipeline.Prepare(img)
}

// PrepareBatch preprocesses a batch into one [N, 3, H, W] tensor.
func (p *Processing) PrepareBatch(imgs []image.Image) ([]float32, error) {
	return p.pipeline.PrepareBatch(imgs)
}

// DecodeBatch turns raw per-image network outputs into suppressed,
// confidence-sorted detection lists.
func (p *Processing) DecodeBatch(locBatch, confBatch [][]float32) ([][]postprocess.Result, error) {
	return p.decoder.DecodeBatch(locBatch, confBatch)
}

// PickBest filters detections to those scoring strictly above threshold.
func (p *Processing) PickBest(detections []postprocess.Result, threshold float32) []postprocess.Result {
	return ssd.PickBest(detections, threshold)
}

// Decoder exposes the underlying detection decoder.
func (p *Processing) Decoder() *ssd.Decoder {
	return p.decoder
}

// Pipeline exposes the underlying preprocessing pipeline.
func (p *Processing) Pipeline() *images.Pipeline {
	return p.pipeline
}

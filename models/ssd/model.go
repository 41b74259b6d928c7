package ssd

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/models/model"
)

// NumClassesCOCO counts the COCO detection classes plus background.
const NumClassesCOCO = 81

// Parameter is one named tensor of the loaded network. Data always holds
// the FP32 values; Half is populated instead when the owning model runs at
// half precision and the parameter is eligible for casting.
type Parameter struct {
	Name      string
	BatchNorm bool
	Data      []float32
	Half      []float16.Float16
}

// SSD300 holds the loaded parameter set of the detection network at a fixed
// precision. It is immutable after Load.
type SSD300 struct {
	name      model.Name
	precision model.Precision
	params    []Parameter
	index     map[string]int
}

// IsBatchNormParam reports whether a checkpoint key belongs to a batch-norm
// layer of the SSD300 graph. Batch-norm parameters are kept at full
// precision regardless of model precision because half-precision running
// statistics destabilize the normalization.
func IsBatchNormParam(key string) bool {
	for _, spec := range SSD300Manifest() {
		if spec.Name == key {
			return spec.BatchNorm
		}
	}
	return false
}

// bookkeepingKey reports checkpoint entries that carry no weights. PyTorch
// batch-norm layers persist an update counter alongside the statistics.
func bookkeepingKey(key string) bool {
	return strings.HasSuffix(key, ".num_batches_tracked")
}

// Load builds an SSD300 model from a flat checkpoint mapping, validated
// against the parameter manifest: every manifest entry must be present with
// the exact element count, and keys outside the manifest are rejected.
// Non-batch-norm parameters are cast to half floats when precision is FP16;
// batch-norm parameters always stay FP32. Parameters are stored in manifest
// order, so two loads of the same checkpoint produce identical layouts.
func Load(precision model.Precision, params map[string][]float32) (*SSD300, error) {
	if !precision.Valid() {
		return nil, errors.Errorf("ssd: unknown precision %q", precision)
	}

	manifest := SSD300Manifest()
	known := make(map[string]struct{}, len(manifest))
	for _, spec := range manifest {
		known[spec.Name] = struct{}{}
	}
	for key := range params {
		if _, ok := known[key]; !ok && !bookkeepingKey(key) {
			return nil, errors.Errorf("ssd: checkpoint key %q not in the SSD300 manifest", key)
		}
	}

	m := &SSD300{
		name:      model.ModelNameSSD300,
		precision: precision,
		params:    make([]Parameter, 0, len(manifest)),
		index:     make(map[string]int, len(manifest)),
	}
	for _, spec := range manifest {
		data, ok := params[spec.Name]
		if !ok {
			return nil, errors.Errorf("ssd: checkpoint is missing parameter %q", spec.Name)
		}
		if len(data) != spec.Count {
			return nil, errors.Errorf("ssd: parameter %q has %d elements, manifest wants %d",
				spec.Name, len(data), spec.Count)
		}
		p := Parameter{Name: spec.Name, BatchNorm: spec.BatchNorm}
		if precision == model.PrecisionFP16 && !spec.BatchNorm {
			p.Half = model.ToHalf(data)
		} else {
			p.Data = append([]float32(nil), data...)
		}
		m.index[spec.Name] = len(m.params)
		m.params = append(m.params, p)
	}
	return m, nil
}

// Name returns the model identifier.
func (m *SSD300) Name() model.Name {
	return m.name
}

// Precision returns the storage precision of the castable parameters.
func (m *SSD300) Precision() model.Precision {
	return m.precision
}

// NumParams returns the number of named parameters.
func (m *SSD300) NumParams() int {
	return len(m.params)
}

// Param looks a parameter up by checkpoint key.
func (m *SSD300) Param(key string) (Parameter, bool) {
	i, ok := m.index[key]
	if !ok {
		return Parameter{}, false
	}
	return m.params[i], true
}

// Params returns the parameters in manifest order. Callers must treat the
// slice as read-only.
func (m *SSD300) Params() []Parameter {
	return m.params
}

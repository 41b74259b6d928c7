// Package hub - Model-hub style loading of pretrained detection models:
// checkpoint fetch and cache, state-dict reading, key reconciliation, and
// the SSD300 entrypoint.
package hub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// StateDict maps checkpoint parameter keys to flat float32 data.
type StateDict map[string][]float32

// KeyCollisionError reports two checkpoint keys that collapse onto the same
// name after prefix stripping. A collision means the checkpoint was saved
// under an unexpected wrapping and silently keeping either entry would load
// wrong weights.
type KeyCollisionError struct {
	Key string
}

func (e *KeyCollisionError) Error() string {
	return fmt.Sprintf("hub: key %q appears more than once after prefix stripping", e.Key)
}

// ReadStateDict reads a state dict from an NPZ archive: a zip file whose
// entries are NumPy .npy tensors keyed by parameter name. Integer tensors
// (batch-norm update counters) are widened to float32.
func ReadStateDict(r io.ReaderAt, size int64) (StateDict, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open checkpoint archive")
	}

	dict := make(StateDict, len(archive.File))
	for _, entry := range archive.File {
		if !strings.HasSuffix(entry.Name, ".npy") {
			continue
		}
		key := strings.TrimSuffix(entry.Name, ".npy")

		rc, err := entry.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open checkpoint entry %s", entry.Name)
		}
		data, err := readNpy(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read checkpoint entry %s", entry.Name)
		}
		dict[key] = data
	}
	if len(dict) == 0 {
		return nil, errors.New("checkpoint archive holds no tensors")
	}
	return dict, nil
}

// ReadStateDictFile reads an NPZ checkpoint from disk.
func ReadStateDictFile(path string) (StateDict, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open checkpoint %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat checkpoint %s", path)
	}
	return ReadStateDict(f, info.Size())
}

func readNpy(r io.Reader) ([]float32, error) {
	var dense tensor.Dense
	if err := dense.ReadNpy(r); err != nil {
		return nil, err
	}

	switch data := dense.Data().(type) {
	case []float32:
		return append([]float32(nil), data...), nil
	case []float64:
		out := make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
		return out, nil
	case []int64:
		out := make([]float32, len(data))
		for i, v := range data {
			out[i] = float32(v)
		}
		return out, nil
	case float32:
		return []float32{data}, nil
	case float64:
		return []float32{float32(data)}, nil
	case int64:
		return []float32{float32(data)}, nil
	default:
		return nil, errors.Errorf("unsupported tensor element type %T", data)
	}
}

// StripPrefixes returns a fresh state dict with the given key prefixes
// removed, applied in order to every key. Used to unwrap checkpoints saved
// from distributed training, where parameters are nested under "module.1."
// or "module.". Two distinct keys collapsing onto the same stripped name is
// a KeyCollisionError; the input is never mutated.
func StripPrefixes(dict StateDict, prefixes ...string) (StateDict, error) {
	out := make(StateDict, len(dict))
	for key, data := range dict {
		stripped := key
		for _, prefix := range prefixes {
			stripped = strings.TrimPrefix(stripped, prefix)
		}
		if _, exists := out[stripped]; exists {
			return nil, &KeyCollisionError{Key: stripped}
		}
		out[stripped] = data
	}
	return out, nil
}

// UnwrapDistributed strips the prefixes written by distributed training
// wrappers, in nesting order.
func UnwrapDistributed(dict StateDict) (StateDict, error) {
	return StripPrefixes(dict, "module.1.", "module.")
}

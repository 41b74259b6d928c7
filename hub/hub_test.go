package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/models/model"
	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/models/ssd"
)

func TestSSD300NotPretrained(t *testing.T) {
	config := DefaultConfig()
	config.Pretrained = false
	config.CacheDir = t.TempDir()

	m, processing, err := SSD300(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, processing)

	assert.Equal(t, model.ModelNameSSD300, m.Name())
	assert.Equal(t, model.PrecisionFP32, m.Precision())
	assert.Equal(t, len(ssd.SSD300Manifest()), m.NumParams())
	assert.Equal(t, 8732, processing.Decoder().NumAnchors())
}

func TestSSD300Pretrained(t *testing.T) {
	// Serve a checkpoint with every manifest parameter wrapped under the
	// distributed-training prefix.
	entries := make(map[string][]float32)
	for _, spec := range ssd.SSD300Manifest() {
		entries["module.1."+spec.Name] = make([]float32, spec.Count)
	}
	archive := writeNpz(t, entries)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer server.Close()

	config := Config{
		Precision:     model.PrecisionFP16,
		Pretrained:    true,
		CacheDir:      t.TempDir(),
		CheckpointURL: server.URL + "/ssd300_fp16.npz",
	}

	m, processing, err := SSD300(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, processing)

	assert.Equal(t, model.PrecisionFP16, m.Precision())
	// Prefixes were stripped; lookups use plain manifest keys.
	conv, ok := m.Param("feature_extractor.feature_extractor.0.weight")
	require.True(t, ok)
	assert.NotEmpty(t, conv.Half)
	bn, ok := m.Param("feature_extractor.feature_extractor.1.weight")
	require.True(t, ok)
	assert.NotEmpty(t, bn.Data)
}

func TestSSD300RejectsUnknownPrecision(t *testing.T) {
	config := DefaultConfig()
	config.Precision = model.Precision("int8")

	_, _, err := SSD300(context.Background(), config)
	assert.Error(t, err)
}

func TestConfigCheckpointURL(t *testing.T) {
	assert.Equal(t, DefaultCheckpointURLFP32, Config{Precision: model.PrecisionFP32}.checkpointURL())
	assert.Equal(t, DefaultCheckpointURLFP16, Config{Precision: model.PrecisionFP16}.checkpointURL())
	assert.Equal(t, "http://x/y.npz", Config{CheckpointURL: "http://x/y.npz"}.checkpointURL())
}

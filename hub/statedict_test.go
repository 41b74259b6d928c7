package hub

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// writeNpz packs the given tensors into an in-memory NPZ archive.
func writeNpz(t *testing.T, entries map[string][]float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name + ".npy")
		require.NoError(t, err)
		dense := tensor.New(tensor.WithShape(len(data)), tensor.WithBacking(data))
		require.NoError(t, dense.WriteNpy(w))
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestReadStateDictRoundTrip(t *testing.T) {
	want := map[string][]float32{
		"loc.0.weight": {1.5, -2.25, 0},
		"conf.0.bias":  {0.125},
	}
	raw := writeNpz(t, want)

	dict, err := ReadStateDict(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, dict, 2)
	assert.Equal(t, want["loc.0.weight"], dict["loc.0.weight"])
	assert.Equal(t, want["conf.0.bias"], dict["conf.0.bias"])
}

func TestReadStateDictWidensDoubles(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("stat.npy")
	require.NoError(t, err)
	dense := tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{1.5, 2.5}))
	require.NoError(t, dense.WriteNpy(w))
	require.NoError(t, zw.Close())

	dict, err := ReadStateDict(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2.5}, dict["stat"])
}

func TestReadStateDictSkipsForeignEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("README.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("not a tensor"))
	require.NoError(t, err)
	w, err = zw.Create("loc.0.bias.npy")
	require.NoError(t, err)
	dense := tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{7}))
	require.NoError(t, dense.WriteNpy(w))
	require.NoError(t, zw.Close())

	dict, err := ReadStateDict(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, dict, 1)
	assert.Equal(t, []float32{7}, dict["loc.0.bias"])
}

func TestReadStateDictRejectsEmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, zip.NewWriter(&buf).Close())

	_, err := ReadStateDict(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.Error(t, err)
}

func TestReadStateDictRejectsGarbage(t *testing.T) {
	raw := []byte("definitely not a zip archive")
	_, err := ReadStateDict(bytes.NewReader(raw), int64(len(raw)))
	assert.Error(t, err)
}

func TestStripPrefixes(t *testing.T) {
	dict := StateDict{
		"module.1.a.weight": {1},
		"module.b.weight":   {2},
		"c.weight":          {3},
	}

	stripped, err := UnwrapDistributed(dict)
	require.NoError(t, err)
	assert.Equal(t, StateDict{
		"a.weight": {1},
		"b.weight": {2},
		"c.weight": {3},
	}, stripped)

	// Input untouched.
	assert.Contains(t, dict, "module.1.a.weight")
}

func TestStripPrefixesCollision(t *testing.T) {
	dict := StateDict{
		"module.1.a.weight": {1},
		"module.a.weight":   {2},
	}

	stripped, err := UnwrapDistributed(dict)
	assert.Nil(t, stripped)
	var cerr *KeyCollisionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "a.weight", cerr.Key)
}

func TestStripPrefixesOrder(t *testing.T) {
	// "module.1." must strip before "module.", otherwise the leading "1."
	// would survive.
	stripped, err := StripPrefixes(StateDict{"module.1.x": {1}}, "module.1.", "module.")
	require.NoError(t, err)
	assert.Contains(t, stripped, "x")
}

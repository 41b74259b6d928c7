package util

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadDirectoryImageFiles(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 4, 4)
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	files, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)

	// Name-ordered, text file and directory skipped.
	assert.Equal(t, filepath.Join(dir, "a.png"), files[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.png"), files[1].Path)
	assert.NotEmpty(t, files[0].Data)
}

func TestLoadDirectoryImageFilesMissingDir(t *testing.T) {
	_, err := LoadDirectoryImageFiles(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestDecodeAll(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 2, 3)

	files, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)

	decoded, err := DecodeAll(files)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, 2, decoded[0].Bounds().Dx())
	assert.Equal(t, 3, decoded[0].Bounds().Dy())
}

func TestDecodeAllBadData(t *testing.T) {
	_, err := DecodeAll([]ImageFile{{Path: "x.png", Data: []byte("garbage")}})
	assert.Error(t, err)
}

// Package util - Filesystem helpers for assembling input batches.
package util

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/robot-perception-group/NVIDIADeepLearningExamplesFork/images"
)

// ImageFile is one batch input read from disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
}

// LoadDirectoryImageFiles reads all image files from a directory, ordered
// by file name so batch indices are reproducible. Subdirectories and
// non-image files are skipped.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The raw bytes of each image file, name-ordered.
//   - error: An error if listing or reading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".webp":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", path)
		}
		files = append(files, ImageFile{Path: path, Data: data})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// DecodeAll decodes every loaded file into an image ready for the
// preprocessing pipeline.
func DecodeAll(files []ImageFile) ([]image.Image, error) {
	decoded := make([]image.Image, len(files))
	for i, file := range files {
		img := images.Image{Data: file.Data}
		out, err := img.Decode()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", file.Path)
		}
		decoded[i] = out
	}
	return decoded, nil
}

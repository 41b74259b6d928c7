// Package images - Image loading and preprocessing utilities for detection models.
package images

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats.
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// Image represents an encoded input image with metadata.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// Decode decodes the raw bytes into an image.Image. JPEG, PNG and WebP
// decoders are registered by this package.
func (i *Image) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(i.Data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	return img, nil
}

// LoadFile reads and decodes an image from disk.
//
// Arguments:
//   - path: Path to the image file.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if reading or decoding fails.
func LoadFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	return img, nil
}

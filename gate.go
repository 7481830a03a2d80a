package main

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// maxImagePixels bounds the raster a header may declare. Decoders allocate
// the whole raster up front, so a corrupt header must be refused before
// decoding.
const maxImagePixels = 1 << 26

// CheckImageIsValid reports whether data decodes to a raster with a
// non-zero area. It never fails: undecodable input, including input that
// makes a decoder panic, is simply invalid.
func CheckImageIsValid(data []byte) bool {
	w, h, err := imageDimensions(data)
	return err == nil && w > 0 && h > 0
}

// imageDimensions fully decodes data and returns the size of the decoded
// raster. Headers declaring more than maxImagePixels are rejected without
// decoding the pixels.
func imageDimensions(data []byte) (w, h int, err error) {
	if len(data) == 0 {
		return 0, 0, image.ErrFormat
	}
	defer func() {
		if r := recover(); r != nil {
			w, h, err = 0, 0, errors.Errorf("image decoder panic: %v", r)
		}
	}()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return 0, 0, errors.Errorf("image header declares %dx%d pixels", cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

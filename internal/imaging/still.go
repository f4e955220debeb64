// Package imaging holds the encoded still image shared by the camera and
// file-import paths.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	_ "image/gif" // Register GIF decoder
	_ "image/png" // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	FormatJPEG   = "jpeg"
	MIMETypeJPEG = "image/jpeg"

	// DefaultQuality matches a 0.8 lossy encode.
	DefaultQuality = 80

	// DefaultMaxPixels caps decoded imports at 40 megapixels.
	DefaultMaxPixels = 40_000_000
)

var ErrUnsupportedImage = errors.New("unsupported or corrupt image")

// Still is an encoded still image. Width and Height are the encoded
// dimensions.
type Still struct {
	Format   string
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// EncodeJPEG encodes img at its native dimensions.
func EncodeJPEG(img image.Image, quality int) (*Still, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode still: %w", err)
	}

	bounds := img.Bounds()
	return &Still{
		Format:   FormatJPEG,
		MIMEType: MIMETypeJPEG,
		Data:     buf.Bytes(),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// Decode turns an arbitrary imported image (JPEG, PNG, GIF, WebP) into the
// same JPEG still representation the camera path produces. The header is
// checked first and images over maxPixels are rejected before any pixel data
// is allocated. Images larger than maxDimension on either side are scaled
// down preserving aspect ratio. Zero disables either limit.
func Decode(data []byte, quality, maxDimension, maxPixels int) (*Still, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedImage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty dimensions %dx%d", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	bounds := img.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxDimension)
	if w != bounds.Dx() || h != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	return EncodeJPEG(img, quality)
}

func fitWithin(width, height, limit int) (int, int) {
	if limit <= 0 || (width <= limit && height <= limit) {
		return width, height
	}
	if width >= height {
		scaled := height * limit / width
		if scaled < 1 {
			scaled = 1
		}
		return limit, scaled
	}
	scaled := width * limit / height
	if scaled < 1 {
		scaled = 1
	}
	return scaled, limit
}

// Base64 returns the standard base64 encoding of the still bytes.
func (s *Still) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Data)
}

// DataURL returns the still as a data: URL suitable for inline rendering.
func (s *Still) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", s.MIMEType, s.Base64())
}

// Clone returns a deep copy so callers cannot alias session buffers.
func (s *Still) Clone() *Still {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Data = append([]byte(nil), s.Data...)
	return &cp
}

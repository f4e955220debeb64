package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestEncodeJPEGKeepsNativeDimensions(t *testing.T) {
	still, err := EncodeJPEG(testImage(64, 48), DefaultQuality)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	if still.Width != 64 || still.Height != 48 {
		t.Errorf("expected 64x48, got %dx%d", still.Width, still.Height)
	}
	if still.Format != FormatJPEG || still.MIMEType != MIMETypeJPEG {
		t.Errorf("unexpected format %s/%s", still.Format, still.MIMEType)
	}
	if !bytes.HasPrefix(still.Data, []byte{0xFF, 0xD8}) {
		t.Error("expected JPEG SOI marker")
	}
}

func TestDecodeConvertsPNGToJPEGStill(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(40, 30)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	still, err := Decode(buf.Bytes(), DefaultQuality, 0, DefaultMaxPixels)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if still.Format != FormatJPEG {
		t.Errorf("expected jpeg still, got %s", still.Format)
	}
	if still.Width != 40 || still.Height != 30 {
		t.Errorf("expected 40x30, got %dx%d", still.Width, still.Height)
	}
}

func TestDecodeScalesLargeImports(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(200, 100)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	still, err := Decode(buf.Bytes(), DefaultQuality, 50, DefaultMaxPixels)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if still.Width != 50 || still.Height != 25 {
		t.Errorf("expected 50x25, got %dx%d", still.Width, still.Height)
	}
}

func TestDecodeRejectsOversizedPixelCount(t *testing.T) {
	// A uniform image compresses to a few hundred KB while declaring 64M pixels.
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8000, 8000))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	if buf.Len() > 1<<20 {
		t.Fatalf("expected a small compressed file, got %d bytes", buf.Len())
	}

	_, err := Decode(buf.Bytes(), DefaultQuality, 2048, DefaultMaxPixels)
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
	if !strings.Contains(err.Error(), "8000x8000") {
		t.Errorf("expected dimensions in error, got %v", err)
	}
}

func TestDecodePixelLimit(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(100, 100)); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	tests := []struct {
		name      string
		maxPixels int
		wantErr   bool
	}{
		{name: "disabled", maxPixels: 0},
		{name: "exactly at limit", maxPixels: 10000},
		{name: "one below", maxPixels: 9999, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(buf.Bytes(), DefaultQuality, 0, tt.maxPixels)
			if tt.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "text", data: []byte("definitely not an image")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data, DefaultQuality, 0, DefaultMaxPixels)
			if !errors.Is(err, ErrUnsupportedImage) {
				t.Fatalf("expected ErrUnsupportedImage, got %v", err)
			}
		})
	}
}

func TestDataURLAndClone(t *testing.T) {
	still := &Still{Format: FormatJPEG, MIMEType: MIMETypeJPEG, Data: []byte{1, 2, 3}}

	if got := still.DataURL(); !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Errorf("unexpected data url %q", got)
	}

	cp := still.Clone()
	cp.Data[0] = 9
	if still.Data[0] != 1 {
		t.Error("clone aliases the original buffer")
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit   int
		wantW, wantH int
	}{
		{1280, 720, 0, 1280, 720},
		{1280, 720, 2048, 1280, 720},
		{4000, 3000, 2000, 2000, 1500},
		{3000, 4000, 2000, 1500, 2000},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.limit)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d,%d,%d) = %dx%d, want %dx%d", tt.w, tt.h, tt.limit, w, h, tt.wantW, tt.wantH)
		}
	}
}

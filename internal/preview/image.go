package preview

import (
	"bytes"
	"fmt"
	"image"
	"os"

	// Decoders for still sources and ffmpeg output.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"render-engine/internal/cache"
	"render-engine/internal/logging"
)

const (
	// MaxImageDimension bounds either side of a still decoded in-process.
	MaxImageDimension = 4096

	// MaxImagePixels bounds the decoded area (~80MB as RGBA).
	MaxImagePixels = 20_000_000
)

// loadStill decodes a still image with auto-orientation, downscaling it
// when it exceeds the dimension or pixel bounds.
func loadStill(path string) (image.Image, error) {
	w, h, err := imageDimensions(path)
	if err != nil {
		logging.Debug("Could not read dimensions of %s: %v", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	if w <= MaxImageDimension && h <= MaxImageDimension && w*h <= MaxImagePixels {
		return img, nil
	}

	tw, th := constrain(w, h, MaxImageDimension, MaxImagePixels)
	logging.Debug("Constraining still %s from %dx%d to %dx%d", path, w, h, tw, th)
	return imaging.Resize(img, tw, th, imaging.Lanczos), nil
}

// constrain scales w x h down to fit maxDim on each side and maxPixels in
// area, keeping the aspect ratio.
func constrain(w, h, maxDim, maxPixels int) (int, int) {
	if w > maxDim || h > maxDim {
		if w > h {
			h = h * maxDim / w
			w = maxDim
		} else {
			w = w * maxDim / h
			h = maxDim
		}
	}
	if w*h > maxPixels {
		scale := float64(maxPixels) / float64(w*h)
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}
	return max(w, 1), max(h, 1)
}

func imageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// encodeJPEG wraps img as a cacheable preview.
func encodeJPEG(img image.Image, quality int) (*cache.PreviewImage, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	b := img.Bounds()
	return newPreviewImage(buf.Bytes(), "image/jpeg", b.Dx(), b.Dy()), nil
}

// decodePreview reads the size of an image written by ffmpeg.
func decodePreview(data []byte, contentType string) (*cache.PreviewImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unreadable preview image: %w", err)
	}
	return newPreviewImage(data, contentType, cfg.Width, cfg.Height), nil
}

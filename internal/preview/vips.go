package preview

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"render-engine/internal/logging"
)

var (
	vipsMu        sync.Mutex
	vipsAvailable bool
)

// InitVips starts libvips for still-image thumbnails. Call once at startup;
// without it stills are decoded with imaging instead.
func InitVips() error {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		return nil
	}

	level := vips.LogLevelWarning
	switch logging.GetLevel() {
	case logging.LevelDebug:
		level = vips.LogLevelInfo
	case logging.LevelWarn:
		level = vips.LogLevelError
	case logging.LevelError:
		level = vips.LogLevelCritical
	}
	vips.LoggingSettings(func(domain string, l vips.LogLevel, msg string) {
		switch {
		case l >= vips.LogLevelError:
			logging.Error("[%s] %s", domain, msg)
		case l == vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, level)

	// One operation at a time keeps libvips memory predictable next to the
	// ffmpeg subprocesses.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips.
func ShutdownVips() {
	vipsMu.Lock()
	defer vipsMu.Unlock()

	if vipsAvailable {
		vips.Shutdown()
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether InitVips succeeded.
func IsVipsAvailable() bool {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	return vipsAvailable
}

// thumbnailWithVips shrinks path to fit width x height during decode.
func thumbnailWithVips(path string, width, height int) (image.Image, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	logging.Debug("vips: %s %dx%d -> %dx%d", filepath.Base(path), ref.Width(), ref.Height(), width, height)
	if err := ref.Thumbnail(width, height, vips.InterestingNone); err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	data, _, err := ref.ExportJpeg(&vips.JpegExportParams{Quality: 95, OptimizeCoding: true})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode vips output: %w", err)
	}
	return img, nil
}

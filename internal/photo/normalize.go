// Package photo bounds report photos to upload-friendly dimensions and size
// before they are uploaded or spooled for offline sync.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrDecode indicates the input could not be decoded as an image. The caller
// must not fall back to uploading the raw bytes.
var ErrDecode = errors.New("cannot decode image")

// Default bounds applied by the submission path.
const (
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1080
	DefaultQuality   = 0.8
)

// File is an in-memory image file.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Normalize decodes f, scales it down (never up) so neither bound is
// exceeded while preserving aspect ratio, and re-encodes it at the given
// quality. The file name is preserved. Inputs that decode but have no Go
// encoder (webp) come back as JPEG with the MIME updated to match.
func Normalize(f File, maxWidth, maxHeight int, quality float64) (File, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return File{}, fmt.Errorf("bounds must be positive, got %dx%d", maxWidth, maxHeight)
	}
	if quality <= 0 || quality > 1 {
		return File{}, fmt.Errorf("quality must be in (0,1], got %v", quality)
	}

	img, format, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return File{}, fmt.Errorf("%w: %s: %v", ErrDecode, f.Name, err)
	}

	// Fit only scales down; a smaller image passes through unchanged.
	resized := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	out := File{Name: f.Name, MIME: f.MIME}
	switch format {
	case "png":
		err = png.Encode(&buf, resized)
		out.MIME = "image/png"
	case "gif":
		err = gif.Encode(&buf, resized, nil)
		out.MIME = "image/gif"
	default:
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: int(quality * 100)})
		out.MIME = "image/jpeg"
	}
	if err != nil {
		return File{}, fmt.Errorf("encode %s: %w", f.Name, err)
	}

	out.Data = buf.Bytes()
	return out, nil
}

// Dimensions decodes just the image header and returns width and height.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}

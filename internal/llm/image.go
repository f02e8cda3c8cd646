package llm

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// passthroughTypes are accepted by the vision endpoint as-is.
var passthroughTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// encodeImage returns a data URL for the page image. BMP and TIFF pages are
// re-encoded as PNG first.
func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	mime, ok := passthroughTypes[ext]
	if !ok {
		var img image.Image
		switch ext {
		case ".bmp":
			img, err = bmp.Decode(bytes.NewReader(data))
		case ".tiff", ".tif":
			img, err = tiff.Decode(bytes.NewReader(data))
		default:
			return "", fmt.Errorf("unsupported image type %q", ext)
		}
		if err != nil {
			return "", fmt.Errorf("decode %s image: %w", ext, err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("re-encode image as png: %w", err)
		}
		data, mime = buf.Bytes(), "image/png"
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

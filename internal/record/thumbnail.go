package record

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
)

// ImageDimensions decodes just the image header and returns width and height.
func ImageDimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Thumbnail decodes the image payload and returns a PNG-encoded thumbnail
// whose longest side is at most maxPx. Images already within the bound are
// re-encoded without scaling.
func Thumbnail(data []byte, maxPx int) ([]byte, error) {
	if maxPx <= 0 {
		return nil, fmt.Errorf("thumbnail max size must be positive, got %d", maxPx)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxPx || h > maxPx {
		if w >= h {
			h = h * maxPx / w
			w = maxPx
		} else {
			w = w * maxPx / h
			h = maxPx
		}
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		src = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

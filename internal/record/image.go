package record

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// maxShortSide is the largest short dimension an inline prompt image
// keeps. Larger screenshots cost tokens without helping the model.
const maxShortSide = 256

// Downscale shrinks a PNG so its short side is at most maxShortSide
// pixels, using nearest-neighbor sampling. Already-small images pass
// through untouched.
func Downscale(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	short := w
	if h < short {
		short = h
	}
	if short <= maxShortSide {
		return data, nil
	}

	scale := float64(maxShortSide) / float64(short)
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		sy := bounds.Min.Y + y*h/dh
		for x := 0; x < dw; x++ {
			sx := bounds.Min.X + x*w/dw
			dst.Set(x, y, src.At(sx, sy))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode scaled image: %w", err)
	}
	return buf.Bytes(), nil
}

// InlineBase64 downscales a screenshot and returns it base64 encoded
// for an inline image part. Scaling failures fall back to the original
// bytes.
func InlineBase64(data []byte) string {
	scaled, err := Downscale(data)
	if err != nil {
		scaled = data
	}
	return base64.StdEncoding.EncodeToString(scaled)
}

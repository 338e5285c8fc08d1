package media

import (
	"bytes"
	"errors"
	"image"

	// Decodable upload formats. The format is sniffed from the byte
	// stream, never taken from the declared content type.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
)

// thumbMaxDim bounds both thumbnail dimensions; aspect ratio is preserved
// and images are never upscaled.
const thumbMaxDim = 250

func thumbnailWebP(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, &Error{Code: CodeUnsupported, Err: err}
		}
		return nil, &Error{Code: CodeDecode, Err: err}
	}

	bounds := img.Bounds()
	w, h := thumbSize(bounds.Dx(), bounds.Dy())

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, scaled, nil); err != nil {
		return nil, &Error{Code: CodeEncode, Err: err}
	}
	return buf.Bytes(), nil
}

func thumbSize(w, h int) (int, int) {
	if w <= thumbMaxDim && h <= thumbMaxDim {
		return w, h
	}
	if w >= h {
		scaled := h * thumbMaxDim / w
		if scaled < 1 {
			scaled = 1
		}
		return thumbMaxDim, scaled
	}
	scaled := w * thumbMaxDim / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, thumbMaxDim
}

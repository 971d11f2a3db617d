package materialize

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const compareHeight = 1024

// SideBySide builds the before/after comparison composite locally from the
// person photo and the generated image. The backend does not always return
// one, and building it here keeps the composite under the same durability
// rules as the primary image.
func SideBySide(before, after []byte) ([]byte, error) {
	left, err := imaging.Decode(bytes.NewReader(before))
	if err != nil {
		return nil, fmt.Errorf("decode before image: %w", err)
	}
	right, err := imaging.Decode(bytes.NewReader(after))
	if err != nil {
		return nil, fmt.Errorf("decode after image: %w", err)
	}

	left = imaging.Resize(left, 0, compareHeight, imaging.Lanczos)
	right = imaging.Resize(right, 0, compareHeight, imaging.Lanczos)

	lw := left.Bounds().Dx()
	rw := right.Bounds().Dx()
	canvas := imaging.New(lw+rw, compareHeight, color.White)
	canvas = imaging.Paste(canvas, left, image.Pt(0, 0))
	canvas = imaging.Paste(canvas, right, image.Pt(lw, 0))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode comparison: %w", err)
	}
	return buf.Bytes(), nil
}

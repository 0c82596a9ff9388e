package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// Filter selects the resampling kernel used when scaling.
type Filter string

const (
	// CatmullRom is the default, cubic, kernel.
	CatmullRom Filter = "catmull-rom"
	// Lanczos uses imaging's Lanczos kernel.
	Lanczos Filter = "lanczos"
	// Lanczos3 uses nfnt/resize's Lanczos3 kernel.
	Lanczos3 Filter = "lanczos3"
)

// DefaultSharpen is the sigma of the sharpening pass applied after
// downscaling.
const DefaultSharpen = 0.5

// ParseFilter resolves a filter name. An empty name selects CatmullRom.
func ParseFilter(name string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return CatmullRom, nil
	case CatmullRom, Lanczos, Lanczos3:
		return f, nil
	}
	return "", fmt.Errorf("unknown filter %q", name)
}

// Engine scales a square intermediate into icon rasters.
// The zero value uses CatmullRom without sharpening.
type Engine struct {
	Filter Filter
	// Sharpen is the sigma of the post-downscale sharpening pass. Zero
	// disables it.
	Sharpen float64
}

// Square extends img to a square canvas of side max(width, height), with
// the original centred and the short dimension padded with transparency.
// Nothing is cropped.
func Square(img image.Image) *image.NRGBA {
	var (
		b    = img.Bounds()
		w, h = b.Dx(), b.Dy()
		side = w
	)
	if h > side {
		side = h
	}
	dst := image.NewNRGBA(image.Rect(0, 0, side, side))
	at := image.Pt((side-w)/2, (side-h)/2)
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(b.Size())}, img, b.Min, draw.Src)
	return dst
}

// Scale resamples a square image to side pixels. The source is returned as
// is when it already has that size.
func (e Engine) Scale(square image.Image, side int) image.Image {
	b := square.Bounds()
	if b.Dx() == side && b.Dy() == side {
		return square
	}
	var scaled image.Image
	switch e.Filter {
	case Lanczos:
		scaled = imaging.Resize(square, side, side, imaging.Lanczos)
	case Lanczos3:
		scaled = resize.Resize(uint(side), uint(side), square, resize.Lanczos3)
	default:
		rect := image.Rect(0, 0, side, side)
		dst := image.NewRGBA(rect)
		draw.CatmullRom.Scale(dst, rect, square, b, draw.Src, nil)
		scaled = dst
	}
	if e.Sharpen > 0 && side < b.Dx() {
		scaled = imaging.Sharpen(scaled, e.Sharpen)
	}
	return scaled
}

// Render scales the square intermediate to side pixels and encodes the
// result as PNG.
func (e Engine) Render(square image.Image, side int) ([]byte, error) {
	if b := square.Bounds(); side < 1 || side > b.Dx() {
		return nil, fmt.Errorf("side length %d outside 1..%d", side, b.Dx())
	}
	return EncodePNG(e.Scale(square, side))
}

// EncodePNG encodes img losslessly as 8-bit RGBA. The alpha channel is
// written even when every pixel is opaque.
func EncodePNG(img image.Image) ([]byte, error) {
	n, ok := img.(*image.NRGBA)
	if !ok {
		n = imaging.Clone(img)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, translucent{n}); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// translucent keeps png.Encode from dropping the alpha channel.
type translucent struct {
	*image.NRGBA
}

func (translucent) Opaque() bool { return false }

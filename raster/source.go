// Package raster loads source images and derives square icon rasters from
// them.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// DefaultSVGSide is the side length vector sources are rasterised at.
const DefaultSVGSide = 1024

// ErrDecode marks a source that could not be decoded.
var ErrDecode = errors.New("raster: cannot decode source")

// Source is a decoded source image. It is immutable once loaded.
type Source struct {
	// Path identifies the source.
	Path string
	// Format is the decoder that read the source, e.g. "png" or "svg".
	Format string
	Width  int
	Height int
	Image  image.Image
}

// MinSide returns the smaller of width and height.
func (s *Source) MinSide() int {
	if s.Width < s.Height {
		return s.Width
	}
	return s.Height
}

// Base returns the file name of the source without its extension.
func (s *Source) Base() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open loads the image at path. Vector sources are rasterised at svgSide
// pixels along their longer edge; zero selects DefaultSVGSide.
func Open(path string, svgSide int) (*Source, error) {
	by, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	src, err := Decode(bytes.NewReader(by), path, svgSide)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Decode reads a source image from r. The name is used for identity and to
// recognise vector sources.
func Decode(r io.Reader, name string, svgSide int) (*Source, error) {
	by, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading source: %w", err)
	}
	if isSVG(name, by) {
		img, err := rasteriseSVG(by, svgSide)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
		}
		return newSource(name, "svg", img), nil
	}
	img, format, err := image.Decode(bytes.NewReader(by))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return newSource(name, format, img), nil
}

func newSource(name, format string, img image.Image) *Source {
	b := img.Bounds()
	return &Source{
		Path:   name,
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
		Image:  img,
	}
}

func isSVG(name string, by []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".svg") {
		return true
	}
	head := by
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<svg"))
}

// rasteriseSVG draws the icon so that its longer edge spans side pixels.
func rasteriseSVG(by []byte, side int) (image.Image, error) {
	if side <= 0 {
		side = DefaultSVGSide
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(by))
	if err != nil {
		return nil, err
	}
	vw, vh := icon.ViewBox.W, icon.ViewBox.H
	if vw <= 0 || vh <= 0 {
		vw, vh = 1, 1
	}
	w, h := side, side
	if vw > vh {
		h = int(float64(side)*vh/vw + 0.5)
	} else if vh > vw {
		w = int(float64(side)*vw/vh + 0.5)
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return rgba, nil
}

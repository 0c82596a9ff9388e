package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// TestSquareExtends ensures non-square sources are padded, not cropped.
func TestSquareExtends(t *testing.T) {
	tests := []struct {
		name        string
		w, h        int
		side        int
		opaque      image.Point
		transparent image.Point
	}{
		{name: "wide", w: 40, h: 20, side: 40, opaque: image.Pt(0, 10), transparent: image.Pt(0, 2)},
		{name: "tall", w: 10, h: 30, side: 30, opaque: image.Pt(10, 29), transparent: image.Pt(2, 15)},
		{name: "square", w: 16, h: 16, side: 16, opaque: image.Pt(0, 0), transparent: image.Pt(-1, -1)},
	}
	blue := color.NRGBA{B: 0xff, A: 0xff}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sq := Square(solid(tt.w, tt.h, blue))
			require.Equal(t, image.Rect(0, 0, tt.side, tt.side), sq.Bounds())
			require.Equal(t, blue, sq.NRGBAAt(tt.opaque.X, tt.opaque.Y))
			if tt.transparent.X >= 0 {
				require.Zero(t, sq.NRGBAAt(tt.transparent.X, tt.transparent.Y).A)
			}
			// Every source pixel survives.
			var opaque int
			for ii := 3; ii < len(sq.Pix); ii += 4 {
				if sq.Pix[ii] == 0xff {
					opaque++
				}
			}
			require.Equal(t, tt.w*tt.h, opaque)
		})
	}
}

func TestScale(t *testing.T) {
	sq := Square(solid(64, 64, color.NRGBA{R: 0xff, A: 0xff}))
	for _, f := range []Filter{CatmullRom, Lanczos, Lanczos3} {
		t.Run(string(f), func(t *testing.T) {
			e := Engine{Filter: f, Sharpen: DefaultSharpen}
			for _, side := range []int{1, 16, 48, 63} {
				got := e.Scale(sq, side)
				require.Equal(t, side, got.Bounds().Dx())
				require.Equal(t, side, got.Bounds().Dy())
			}
			// No resampling or sharpening at the intermediate size.
			require.Same(t, sq, e.Scale(sq, 64))
		})
	}
}

// pngColorType reads the colour type byte of the IHDR chunk.
func pngColorType(data []byte) byte {
	return data[25]
}

func TestRender(t *testing.T) {
	for name, src := range map[string]image.Image{
		"padded": solid(300, 200, color.NRGBA{G: 0xff, A: 0xff}),
		"opaque": solid(300, 300, color.NRGBA{G: 0xff, A: 0xff}),
	} {
		t.Run(name, func(t *testing.T) {
			sq := Square(src)
			e := Engine{Sharpen: DefaultSharpen}
			for _, side := range []int{16, 32, 300} {
				data, err := e.Render(sq, side)
				require.NoError(t, err)
				cfg, err := png.DecodeConfig(bytes.NewReader(data))
				require.NoError(t, err)
				require.Equal(t, side, cfg.Width)
				require.Equal(t, side, cfg.Height)
				require.Equal(t, byte(6), pngColorType(data), "side %d is not RGBA", side)
			}
			_, err := e.Render(sq, 301)
			require.Error(t, err)
		})
	}
}

func TestEncodePNGKeepsAlpha(t *testing.T) {
	for _, f := range []Filter{CatmullRom, Lanczos, Lanczos3} {
		e := Engine{Filter: f}
		data, err := EncodePNG(e.Scale(solid(64, 64, color.NRGBA{R: 0xff, A: 0xff}), 16))
		require.NoError(t, err)
		require.Equal(t, byte(6), pngColorType(data), string(f))
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		require.IsType(t, &image.NRGBA{}, img)
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in   string
		want Filter
		err  bool
	}{
		{in: "", want: CatmullRom},
		{in: "Lanczos", want: Lanczos},
		{in: " lanczos3 ", want: Lanczos3},
		{in: "box", err: true},
	}
	for _, tt := range tests {
		got, err := ParseFilter(tt.in)
		if tt.err {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.png")
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(30, 20, color.NRGBA{A: 0xff})))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	src, err := Open(path, 0)
	require.NoError(t, err)
	require.Equal(t, "png", src.Format)
	require.Equal(t, 30, src.Width)
	require.Equal(t, 20, src.Height)
	require.Equal(t, 20, src.MinSide())
	require.Equal(t, "logo", src.Base())

	_, err = Decode(strings.NewReader("definitely not an image"), "bad.png", 0)
	require.True(t, errors.Is(err, ErrDecode))
}

func TestDecodeSVG(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 100">
<rect x="0" y="0" width="200" height="100" fill="#ff0000"/></svg>`
	src, err := Decode(strings.NewReader(svg), "wide.svg", 128)
	require.NoError(t, err)
	require.Equal(t, "svg", src.Format)
	require.Equal(t, 128, src.Width)
	require.Equal(t, 64, src.Height)
}

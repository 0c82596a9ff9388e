package ico

import (
	"bytes"
	"fmt"
)

// Encoding identifies how a frame payload is stored.
type Encoding int

const (
	// EncodingPNG is a complete PNG stream.
	EncodingPNG Encoding = iota
	// EncodingDIB is a BITMAPINFOHEADER followed by the XOR and AND planes.
	EncodingDIB
	// EncodingUnknown is anything else; it is carried through unchanged.
	EncodingUnknown
)

func (e Encoding) String() string {
	switch e {
	case EncodingPNG:
		return "png"
	case EncodingDIB:
		return "dib"
	}
	return "unknown"
}

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Classify inspects the leading bytes of a payload.
func Classify(data []byte) Encoding {
	if bytes.HasPrefix(data, pngMagic) {
		return EncodingPNG
	}
	if len(data) >= dibHeaderSize && data[0] == dibHeaderSize && data[1] == 0 && data[2] == 0 && data[3] == 0 {
		return EncodingDIB
	}
	return EncodingUnknown
}

// Hotspot is the cursor hotspot stored in place of planes and bit count.
type Hotspot struct {
	X, Y uint16
}

// Frame is one resolution of an icon.
type Frame struct {
	// SideLength is the frame's square size, the larger of Width and Height.
	SideLength int
	// Width and Height are the true pixel dimensions. Zero means SideLength.
	Width, Height int
	// BitDepth is bits per pixel. Zero is treated as 32 when encoding.
	BitDepth int
	// ColorCount is the palette size byte from the directory, 0 for truecolor.
	ColorCount uint8
	// Hotspot is only written for cursor containers.
	Hotspot  *Hotspot
	Encoding Encoding
	Data     []byte
}

// NewPNGFrame wraps a square 32-bit PNG payload.
func NewPNGFrame(side int, data []byte) Frame {
	return Frame{
		SideLength: side,
		Width:      side,
		Height:     side,
		BitDepth:   32,
		Encoding:   EncodingPNG,
		Data:       data,
	}
}

// Dimensions returns the pixel width and height of the frame.
func (f Frame) Dimensions() (int, int) {
	w, h := f.Width, f.Height
	if w == 0 {
		w = f.SideLength
	}
	if h == 0 {
		h = f.SideLength
	}
	return w, h
}

func (f Frame) String() string {
	w, h := f.Dimensions()
	return fmt.Sprintf("%dx%d %dbpp %s (%d bytes)", w, h, f.BitDepth, f.Encoding, len(f.Data))
}

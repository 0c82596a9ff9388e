package ico

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

const dibHeaderSize = 40

// DIBHeader is the BITMAPINFOHEADER that starts a legacy frame.
// Height covers the XOR plane and the AND mask, so it is twice the frame
// height.
type DIBHeader struct {
	Size        uint32
	Width       int32
	Height      int32
	Planes      uint16
	BitCount    uint16
	Compression uint32
	SizeImage   uint32
	XPelsPerM   int32
	YPelsPerM   int32
	ClrUsed     uint32
	ClrImport   uint32
}

// ParseDIBHeader reads the bitmap header at the front of a DIB payload.
func ParseDIBHeader(b []byte) (DIBHeader, error) {
	if len(b) < dibHeaderSize {
		return DIBHeader{}, decodeErrorf("truncated bitmap header: %d bytes", len(b))
	}
	h := DIBHeader{
		Size:        binary.LittleEndian.Uint32(b[0:4]),
		Width:       int32(binary.LittleEndian.Uint32(b[4:8])),
		Height:      int32(binary.LittleEndian.Uint32(b[8:12])),
		Planes:      binary.LittleEndian.Uint16(b[12:14]),
		BitCount:    binary.LittleEndian.Uint16(b[14:16]),
		Compression: binary.LittleEndian.Uint32(b[16:20]),
		SizeImage:   binary.LittleEndian.Uint32(b[20:24]),
		XPelsPerM:   int32(binary.LittleEndian.Uint32(b[24:28])),
		YPelsPerM:   int32(binary.LittleEndian.Uint32(b[28:32])),
		ClrUsed:     binary.LittleEndian.Uint32(b[32:36]),
		ClrImport:   binary.LittleEndian.Uint32(b[36:40]),
	}
	if h.Size < dibHeaderSize || int(h.Size) > len(b) {
		return DIBHeader{}, decodeErrorf("bad bitmap header size %d", h.Size)
	}
	return h, nil
}

// Dimensions returns the true frame width and height.
func (h DIBHeader) Dimensions() (int, int) {
	height := int(h.Height)
	if height < 0 {
		height = -height
	}
	return int(h.Width), height / 2
}

// Put writes the header into the first 40 bytes of b.
func (h DIBHeader) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], h.Size)
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.Width))
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.Height))
	binary.LittleEndian.PutUint16(b[12:14], h.Planes)
	binary.LittleEndian.PutUint16(b[14:16], h.BitCount)
	binary.LittleEndian.PutUint32(b[16:20], h.Compression)
	binary.LittleEndian.PutUint32(b[20:24], h.SizeImage)
	binary.LittleEndian.PutUint32(b[24:28], uint32(h.XPelsPerM))
	binary.LittleEndian.PutUint32(b[28:32], uint32(h.YPelsPerM))
	binary.LittleEndian.PutUint32(b[32:36], h.ClrUsed)
	binary.LittleEndian.PutUint32(b[36:40], h.ClrImport)
}

// Image renders a frame for preview or export.
func Image(f Frame) (image.Image, error) {
	switch f.Encoding {
	case EncodingPNG:
		img, err := png.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, &DecodeError{Reason: "png frame", Err: err}
		}
		return img, nil
	case EncodingDIB:
		return decodeDIB(f.Data)
	}
	return nil, decodeErrorf("unknown frame encoding")
}

// EncodePNG returns the frame as a PNG stream, converting DIB frames.
func EncodePNG(f Frame) ([]byte, error) {
	if f.Encoding == EncodingPNG {
		return f.Data, nil
	}
	img, err := Image(f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeDIB reads an uncompressed bottom-up bitmap with its AND mask.
func decodeDIB(data []byte) (image.Image, error) {
	h, err := ParseDIBHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Compression != 0 {
		return nil, decodeErrorf("compressed bitmap (%d) not supported", h.Compression)
	}
	w, ht := h.Dimensions()
	if w <= 0 || ht <= 0 || w > 1024 || ht > 1024 {
		return nil, decodeErrorf("bad bitmap dimensions %dx%d", w, ht)
	}
	bpp := int(h.BitCount)
	var palette []color.NRGBA
	off := int(h.Size)
	if bpp <= 8 {
		n := int(h.ClrUsed)
		if n == 0 || n > 1<<bpp {
			n = 1 << bpp
		}
		if len(data) < off+n*4 {
			return nil, decodeErrorf("truncated palette")
		}
		palette = make([]color.NRGBA, n)
		for ii := range palette {
			p := data[off+ii*4:]
			palette[ii] = color.NRGBA{R: p[2], G: p[1], B: p[0], A: 0xff}
		}
		off += n * 4
	}
	switch bpp {
	case 1, 4, 8, 24, 32:
	default:
		return nil, decodeErrorf("unsupported bit depth %d", bpp)
	}
	var (
		stride     = ((w*bpp + 31) / 32) * 4
		maskStride = ((w + 31) / 32) * 4
		maskOff    = off + stride*ht
	)
	if len(data) < maskOff {
		return nil, decodeErrorf("truncated pixel data")
	}
	hasMask := len(data) >= maskOff+maskStride*ht
	img := image.NewNRGBA(image.Rect(0, 0, w, ht))
	anyAlpha := false
	for y := 0; y < ht; y++ {
		row := data[off+(ht-1-y)*stride:]
		for x := 0; x < w; x++ {
			var c color.NRGBA
			switch bpp {
			case 32:
				c = color.NRGBA{R: row[x*4+2], G: row[x*4+1], B: row[x*4], A: row[x*4+3]}
				anyAlpha = anyAlpha || c.A != 0
			case 24:
				c = color.NRGBA{R: row[x*3+2], G: row[x*3+1], B: row[x*3], A: 0xff}
			default:
				idx := paletteIndex(row, x, bpp)
				if idx < len(palette) {
					c = palette[idx]
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	// 32 bit frames carry their own alpha; everything else relies on the mask.
	if hasMask && !(bpp == 32 && anyAlpha) {
		for y := 0; y < ht; y++ {
			row := data[maskOff+(ht-1-y)*maskStride:]
			for x := 0; x < w; x++ {
				c := img.NRGBAAt(x, y)
				if row[x/8]&(0x80>>uint(x%8)) != 0 {
					c.A = 0
				} else {
					c.A = 0xff
				}
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img, nil
}

func paletteIndex(row []byte, x, bpp int) int {
	switch bpp {
	case 8:
		return int(row[x])
	case 4:
		b := row[x/2]
		if x%2 == 0 {
			return int(b >> 4)
		}
		return int(b & 0x0f)
	case 1:
		return int(row[x/8]>>(7-uint(x%8))) & 1
	}
	return 0
}

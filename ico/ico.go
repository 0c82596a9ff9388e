// Package ico implements the Windows icon container format: a 6 byte header,
// one 16 byte directory entry per frame, then the frame payloads.
//
// See https://en.wikipedia.org/wiki/ICO_(file_format).
package ico

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the size of the ICONDIR header.
	HeaderSize = 6
	// EntrySize is the size of one ICONDIRENTRY.
	EntrySize = 16
	// MaxFrames is the largest frame count a container may declare.
	MaxFrames = 1023
	// MaxSide is the largest side length the directory can express.
	MaxSide = 256
)

const (
	// TypeIcon marks an icon container.
	TypeIcon uint16 = 1
	// TypeCursor marks a cursor container.
	TypeCursor uint16 = 2
)

// Header is the ICONDIR header.
type Header struct {
	Reserved uint16
	Type     uint16
	Count    uint16
}

// Validate reports whether the header describes a container we can read.
func (h Header) Validate() error {
	if h.Reserved != 0 {
		return decodeErrorf("reserved field must be 0, got %d", h.Reserved)
	}
	if h.Type != TypeIcon && h.Type != TypeCursor {
		return decodeErrorf("unknown container type %d", h.Type)
	}
	if h.Count == 0 || h.Count > MaxFrames {
		return decodeErrorf("frame count %d out of range", h.Count)
	}
	return nil
}

// ParseHeader reads a header from the front of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, decodeErrorf("truncated header: %d bytes", len(b))
	}
	return Header{
		Reserved: binary.LittleEndian.Uint16(b[0:2]),
		Type:     binary.LittleEndian.Uint16(b[2:4]),
		Count:    binary.LittleEndian.Uint16(b[4:6]),
	}, nil
}

// Entry is the ICONDIRENTRY describing one frame.
//
// For cursors Planes and BitCount hold the hotspot X and Y.
type Entry struct {
	Width       uint8 // 0 means 256
	Height      uint8 // 0 means 256
	ColorCount  uint8
	Reserved    uint8
	Planes      uint16
	BitCount    uint16
	BytesInRes  uint32
	ImageOffset uint32
}

// Dimensions returns the pixel width and height, expanding 0 to 256.
func (e Entry) Dimensions() (int, int) {
	return expand(e.Width), expand(e.Height)
}

// End returns the offset just past the entry's payload.
func (e Entry) End() uint64 {
	return uint64(e.ImageOffset) + uint64(e.BytesInRes)
}

func parseEntry(b []byte) Entry {
	return Entry{
		Width:       b[0],
		Height:      b[1],
		ColorCount:  b[2],
		Reserved:    b[3],
		Planes:      binary.LittleEndian.Uint16(b[4:6]),
		BitCount:    binary.LittleEndian.Uint16(b[6:8]),
		BytesInRes:  binary.LittleEndian.Uint32(b[8:12]),
		ImageOffset: binary.LittleEndian.Uint32(b[12:16]),
	}
}

// ReadDirectory parses the header and directory entries of a container
// without touching the payloads.
func ReadDirectory(data []byte) (Header, []Entry, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	if err := h.Validate(); err != nil {
		return Header{}, nil, err
	}
	end := HeaderSize + int(h.Count)*EntrySize
	if len(data) < end {
		return Header{}, nil, decodeErrorf("truncated directory: need %d bytes, have %d", end, len(data))
	}
	entries := make([]Entry, h.Count)
	for ii := range entries {
		off := HeaderSize + ii*EntrySize
		entries[ii] = parseEntry(data[off : off+EntrySize])
	}
	return h, entries, nil
}

// Truncate converts a side length to its directory byte, wrapping 256 to 0.
func Truncate(side int) uint8 {
	if side >= MaxSide {
		return 0
	}
	return uint8(side)
}

func expand(b uint8) int {
	if b == 0 {
		return MaxSide
	}
	return int(b)
}

func decodeErrorf(format string, args ...interface{}) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

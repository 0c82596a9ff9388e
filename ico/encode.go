package ico

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Layout computes the directory for frames, in the order given.
// Offsets run contiguously from the end of the directory, so payloads are
// written back to back with no gaps.
//
// Frame sets that are empty, too large, or that repeat a side length are
// rejected.
func Layout(kind uint16, frames []Frame) ([]Entry, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if len(frames) > MaxFrames {
		return nil, fmt.Errorf("%w: %d", ErrTooManyFrames, len(frames))
	}
	seen := make(map[int]struct{}, len(frames))
	for _, f := range frames {
		if f.SideLength < 1 || f.SideLength > MaxSide {
			return nil, fmt.Errorf("ico: side length %d out of range", f.SideLength)
		}
		if _, ok := seen[f.SideLength]; ok {
			return nil, &DuplicateSizeError{SideLength: f.SideLength}
		}
		seen[f.SideLength] = struct{}{}
	}
	var (
		entries = make([]Entry, len(frames))
		offset  = uint64(HeaderSize + EntrySize*len(frames))
	)
	for ii, f := range frames {
		w, h := f.Dimensions()
		e := Entry{
			Width:       Truncate(w),
			Height:      Truncate(h),
			ColorCount:  f.ColorCount,
			Planes:      1,
			BitCount:    uint16(f.BitDepth),
			BytesInRes:  uint32(len(f.Data)),
			ImageOffset: uint32(offset),
		}
		if e.BitCount == 0 {
			e.BitCount = 32
		}
		if kind == TypeCursor && f.Hotspot != nil {
			e.Planes, e.BitCount = f.Hotspot.X, f.Hotspot.Y
		}
		entries[ii] = e
		offset += uint64(len(f.Data))
		if offset > math.MaxUint32 {
			return nil, fmt.Errorf("ico: container exceeds 4GiB")
		}
	}
	return entries, nil
}

// Encode writes frames as a container of the given kind.
// Nothing is written if the frame set is invalid.
func Encode(dst io.Writer, kind uint16, frames []Frame) error {
	entries, err := Layout(kind, frames)
	if err != nil {
		return err
	}
	var dir bytes.Buffer
	dir.Grow(HeaderSize + EntrySize*len(entries))
	if err := binary.Write(&dir, binary.LittleEndian, Header{Type: kind, Count: uint16(len(entries))}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := binary.Write(&dir, binary.LittleEndian, entries); err != nil {
		return fmt.Errorf("writing entries: %w", err)
	}
	if _, err := dst.Write(dir.Bytes()); err != nil {
		return fmt.Errorf("writing directory: %w", err)
	}
	for _, f := range frames {
		if _, err := dst.Write(f.Data); err != nil {
			return fmt.Errorf("writing frame data: %w", err)
		}
	}
	return nil
}

// Marshal encodes frames into a new byte slice.
func Marshal(kind uint16, frames []Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, kind, frames); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

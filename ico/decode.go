package ico

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"sort"
)

// Container is a decoded icon or cursor file.
type Container struct {
	Type uint16
	// Entries is the directory as stored, in file order.
	Entries []Entry
	// Frames are sorted best first: deepest bit depth, then largest side.
	Frames []Frame
}

// Best returns the canonical preview frame.
func (c *Container) Best() (Frame, bool) {
	if c == nil || len(c.Frames) == 0 {
		return Frame{}, false
	}
	return c.Frames[0], true
}

// Decode reads a whole container from r.
func Decode(r io.Reader) (*Container, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading container: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal decodes a container held in memory.
// Payloads are copied out of data.
func Unmarshal(data []byte) (*Container, error) {
	h, entries, err := ReadDirectory(data)
	if err != nil {
		return nil, err
	}
	c := &Container{
		Type:    h.Type,
		Entries: entries,
		Frames:  make([]Frame, 0, len(entries)),
	}
	for ii, e := range entries {
		if e.End() > uint64(len(data)) {
			return nil, decodeErrorf("entry %d: payload [%d, %d) exceeds %d bytes", ii, e.ImageOffset, e.End(), len(data))
		}
		if int(e.ImageOffset) < HeaderSize+len(entries)*EntrySize {
			return nil, decodeErrorf("entry %d: payload offset %d overlaps directory", ii, e.ImageOffset)
		}
		payload := make([]byte, e.BytesInRes)
		copy(payload, data[e.ImageOffset:e.End()])
		c.Frames = append(c.Frames, frameFrom(h.Type, e, payload))
	}
	SortFrames(c.Frames)
	return c, nil
}

// SortFrames orders frames best first: deepest bit depth, then largest side.
func SortFrames(frames []Frame) {
	sort.SliceStable(frames, func(i, j int) bool {
		if frames[i].BitDepth != frames[j].BitDepth {
			return frames[i].BitDepth > frames[j].BitDepth
		}
		return frames[i].SideLength > frames[j].SideLength
	})
}

// frameFrom builds a frame from its directory entry and payload, trusting the
// payload's own header over the directory when the payload can be read.
func frameFrom(kind uint16, e Entry, payload []byte) Frame {
	f := Frame{
		ColorCount: e.ColorCount,
		Encoding:   Classify(payload),
		Data:       payload,
	}
	w, h, depth, ok := probe(f.Encoding, payload)
	if !ok {
		w, h = e.Dimensions()
		if kind == TypeIcon {
			depth = int(e.BitCount)
		}
	}
	// The directory's bit count is authoritative for PNG icon frames; cursors
	// reuse that field for the hotspot.
	if ok && kind == TypeIcon && f.Encoding == EncodingPNG && e.BitCount != 0 {
		depth = int(e.BitCount)
	}
	if kind == TypeCursor {
		f.Hotspot = &Hotspot{X: e.Planes, Y: e.BitCount}
	}
	f.Width, f.Height, f.BitDepth = w, h, depth
	f.SideLength = w
	if h > w {
		f.SideLength = h
	}
	return f
}

func probe(enc Encoding, payload []byte) (w, h, depth int, ok bool) {
	switch enc {
	case EncodingPNG:
		cfg, err := png.DecodeConfig(bytes.NewReader(payload))
		if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
			return 0, 0, 0, false
		}
		return cfg.Width, cfg.Height, pngDepth(payload), true
	case EncodingDIB:
		hdr, err := ParseDIBHeader(payload)
		if err != nil {
			return 0, 0, 0, false
		}
		w, h := hdr.Dimensions()
		if w <= 0 || h <= 0 {
			return 0, 0, 0, false
		}
		return w, h, int(hdr.BitCount), true
	}
	return 0, 0, 0, false
}

// pngDepth derives bits per pixel from the IHDR chunk.
func pngDepth(payload []byte) int {
	// signature(8) length(4) "IHDR"(4) width(4) height(4) depth(1) colour type(1)
	if len(payload) < 26 || string(payload[12:16]) != "IHDR" {
		return 32
	}
	depth := int(payload[24])
	switch payload[25] {
	case 0, 3: // grey, palette
		return depth
	case 2: // rgb
		return depth * 3
	case 4: // grey + alpha
		return depth * 2
	case 6: // rgba
		return depth * 4
	}
	return 32
}

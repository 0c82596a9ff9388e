package extract

import (
	"encoding/binary"
	"fmt"

	"git.sr.ht/~jackmordaunt/icogen/ico"
)

// GroupEntrySize is the size of one GRPICONDIRENTRY record.
const GroupEntrySize = 14

// GroupEntry is one record of an RT_GROUP_ICON resource. It mirrors the file
// directory entry except that the trailing field is the RT_ICON ordinal
// rather than a file offset.
//
// See http://blogs.msdn.com/b/oldnewthing/archive/2012/07/20/10331787.aspx
type GroupEntry struct {
	Width      uint8
	Height     uint8
	ColorCount uint8
	Reserved   uint8
	Planes     uint16
	BitCount   uint16
	BytesInRes uint32
	Ordinal    uint16
}

// Dimensions returns the pixel width and height, expanding 0 to 256.
func (e GroupEntry) Dimensions() (int, int) {
	return ico.Entry{Width: e.Width, Height: e.Height}.Dimensions()
}

// Put writes the record into the first 14 bytes of b.
func (e GroupEntry) Put(b []byte) {
	b[0] = e.Width
	b[1] = e.Height
	b[2] = e.ColorCount
	b[3] = e.Reserved
	binary.LittleEndian.PutUint16(b[4:6], e.Planes)
	binary.LittleEndian.PutUint16(b[6:8], e.BitCount)
	binary.LittleEndian.PutUint32(b[8:12], e.BytesInRes)
	binary.LittleEndian.PutUint16(b[12:14], e.Ordinal)
}

// ParseGroup decodes an RT_GROUP_ICON blob: the 6 byte header followed by
// count records.
func ParseGroup(b []byte) (ico.Header, []GroupEntry, error) {
	h, err := ico.ParseHeader(b)
	if err != nil {
		return ico.Header{}, nil, err
	}
	if err := h.Validate(); err != nil {
		return ico.Header{}, nil, err
	}
	need := ico.HeaderSize + int(h.Count)*GroupEntrySize
	if len(b) < need {
		return ico.Header{}, nil, &ico.DecodeError{
			Reason: fmt.Sprintf("truncated group resource: need %d bytes, have %d", need, len(b)),
		}
	}
	entries := make([]GroupEntry, h.Count)
	for ii := range entries {
		r := b[ico.HeaderSize+ii*GroupEntrySize:]
		entries[ii] = GroupEntry{
			Width:      r[0],
			Height:     r[1],
			ColorCount: r[2],
			Reserved:   r[3],
			Planes:     binary.LittleEndian.Uint16(r[4:6]),
			BitCount:   binary.LittleEndian.Uint16(r[6:8]),
			BytesInRes: binary.LittleEndian.Uint32(r[8:12]),
			Ordinal:    binary.LittleEndian.Uint16(r[12:14]),
		}
	}
	return h, entries, nil
}

// MarshalGroup encodes a group resource blob.
func MarshalGroup(kind uint16, entries []GroupEntry) []byte {
	b := make([]byte, ico.HeaderSize+len(entries)*GroupEntrySize)
	binary.LittleEndian.PutUint16(b[2:4], kind)
	binary.LittleEndian.PutUint16(b[4:6], uint16(len(entries)))
	for ii, e := range entries {
		e.Put(b[ico.HeaderSize+ii*GroupEntrySize:])
	}
	return b
}

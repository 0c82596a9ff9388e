// Package rsrc packs an icon container into a COFF object that the Go
// linker embeds as the Windows application icon.
package rsrc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/akavel/rsrc/binutil"
	"github.com/akavel/rsrc/coff"
	"github.com/akavel/rsrc/ico"
)

// Arches lists the architectures a .syso can be produced for.
var Arches = []string{"386", "amd64", "arm", "arm64"}

// Embed writes the container as RT_ICON and RT_GROUP_ICON resources into a
// .syso file at output.
func Embed(output, arch string, container []byte) error {
	obj, err := Build(arch, container)
	if err != nil {
		return err
	}
	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := write(obj, out); err != nil {
		out.Close()
		os.Remove(output)
		return err
	}
	return out.Close()
}

// Build assembles the resource object in memory.
func Build(arch string, container []byte) (*coff.Coff, error) {
	obj := coff.NewRSRC()
	if err := obj.Arch(arch); err != nil {
		return nil, fmt.Errorf("setting architecture: %w", err)
	}
	if err := addIcon(obj, bytes.NewReader(container), int64(len(container)), idGenerator()); err != nil {
		return nil, fmt.Errorf("adding icon: %w", err)
	}
	obj.Freeze()
	return obj, nil
}

// WriteTo serialises a built object.
func WriteTo(w io.Writer, obj *coff.Coff) error {
	return write(obj, w)
}

// on storing icons, see: http://blogs.msdn.com/b/oldnewthing/archive/2012/07/20/10331787.aspx
type iconGroup struct {
	ico.ICONDIR
	Entries []iconEntry
}

func (group iconGroup) Size() int64 {
	return int64(binary.Size(group.ICONDIR) + len(group.Entries)*binary.Size(group.Entries[0]))
}

type iconEntry struct {
	ico.IconDirEntryCommon
	Id uint16
}

// addIcon registers one RT_ICON per frame, reading payloads lazily from
// data, followed by the group that references them by ordinal.
func addIcon(out *coff.Coff, data io.ReaderAt, size int64, newid func() uint16) error {
	icons, err := ico.DecodeHeaders(io.NewSectionReader(data, 0, size))
	if err != nil {
		return fmt.Errorf("decoding header: %w", err)
	}
	if len(icons) == 0 {
		return fmt.Errorf("container has no frames")
	}
	group := iconGroup{ICONDIR: ico.ICONDIR{
		Reserved: 0,
		Type:     1,
		Count:    uint16(len(icons)),
	}}
	for _, icon := range icons {
		if end := int64(icon.ImageOffset) + int64(icon.BytesInRes); end > size {
			return fmt.Errorf("frame data ends at %d past container end %d", end, size)
		}
		id := newid()
		out.AddResource(coff.RT_ICON, id, io.NewSectionReader(data, int64(icon.ImageOffset), int64(icon.BytesInRes)))
		group.Entries = append(group.Entries, iconEntry{icon.IconDirEntryCommon, id})
	}
	out.AddResource(coff.RT_GROUP_ICON, newid(), group)
	return nil
}

func write(obj *coff.Coff, out io.Writer) error {
	w := binutil.Writer{W: out}
	if err := binutil.Walk(obj, func(v reflect.Value, path string) error {
		if binutil.Plain(v.Kind()) {
			w.WriteLE(v.Interface())
			return nil
		}
		vv, ok := v.Interface().(binutil.SizedReader)
		if ok {
			w.WriteFromSized(vv)
			return binutil.WALK_SKIP
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walking coff: %w", err)
	}
	if w.Err != nil {
		return fmt.Errorf("writing output: %w", w.Err)
	}
	return nil
}

func idGenerator() func() uint16 {
	id := uint16(0)
	return func() uint16 {
		id++
		return id
	}
}

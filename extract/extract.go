// Package extract rebuilds standalone icon containers from the resource
// tables of executables and libraries.
//
// Resource access is abstracted behind ResourceReader. On Windows the native
// loader is used; elsewhere the module is parsed with winres.
package extract

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"git.sr.ht/~jackmordaunt/icogen/ico"
	"github.com/hashicorp/go-hclog"
)

// ResourceType is a Windows resource type ordinal.
type ResourceType uint16

const (
	// TypeIcon holds a single icon image, addressed by ordinal.
	TypeIcon ResourceType = 3
	// TypeGroupIcon holds the directory of one logical icon.
	TypeGroupIcon ResourceType = 14
)

func (t ResourceType) String() string {
	switch t {
	case TypeIcon:
		return "RT_ICON"
	case TypeGroupIcon:
		return "RT_GROUP_ICON"
	}
	return fmt.Sprintf("type %d", uint16(t))
}

// ResourceID names a resource either by ordinal or by string.
type ResourceID struct {
	Ordinal uint16
	Name    string
}

// ID returns an ordinal identifier.
func ID(n uint16) ResourceID { return ResourceID{Ordinal: n} }

// Name returns a string identifier.
func Name(s string) ResourceID { return ResourceID{Name: s} }

// IsName reports whether the identifier is a string.
func (id ResourceID) IsName() bool { return id.Name != "" }

// Equal compares identifiers; names compare case-insensitively as the OS
// loader does.
func (id ResourceID) Equal(other ResourceID) bool {
	if id.IsName() || other.IsName() {
		return strings.EqualFold(id.Name, other.Name)
	}
	return id.Ordinal == other.Ordinal
}

func (id ResourceID) String() string {
	if id.IsName() {
		return id.Name
	}
	return strconv.Itoa(int(id.Ordinal))
}

// ParseResourceID reads "12", "#12" or a resource name.
func ParseResourceID(s string) ResourceID {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 10, 16); err == nil {
		return ID(uint16(n))
	}
	return Name(s)
}

// ResourceReader is an open module whose resources can be read.
type ResourceReader interface {
	// GroupIconIDs lists the RT_GROUP_ICON identifiers in the module.
	GroupIconIDs() ([]ResourceID, error)
	// ResourceBytes loads one resource. A missing resource yields a
	// *NotFoundError.
	ResourceBytes(kind ResourceType, id ResourceID) ([]byte, error)
	// Close releases the module.
	Close() error
}

// Opener opens a module for resource access.
type Opener func(path string) (ResourceReader, error)

// DefaultOpener picks the native loader on Windows and winres elsewhere.
func DefaultOpener() Opener {
	if runtime.GOOS == "windows" {
		return OpenNative
	}
	return OpenPEFile
}

var (
	// ErrUnsupported is returned by the native loader off Windows.
	ErrUnsupported = errors.New("extract: native resource access unsupported on " + runtime.GOOS)
)

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Type ResourceType
	ID   ResourceID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("extract: %s %s not found", e.Type, e.ID)
}

// CorruptResourceError reports an RT_ICON resource that is missing or whose
// length disagrees with its group record.
type CorruptResourceError struct {
	Ordinal  uint16
	Declared int
	Actual   int
	Err      error
}

func (e *CorruptResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: icon resource %d: %v", e.Ordinal, e.Err)
	}
	return fmt.Sprintf("extract: icon resource %d: declared %d bytes, loaded %d", e.Ordinal, e.Declared, e.Actual)
}

func (e *CorruptResourceError) Unwrap() error {
	return e.Err
}

// Result is a reconstructed container.
type Result struct {
	// Data is the encoded container.
	Data []byte
	// Container is Data decoded, frames best first.
	Container *ico.Container
	// Dropped lists records skipped because a deeper frame of the same side
	// length was kept.
	Dropped []GroupEntry
}

// Extractor reconstructs icon containers from modules.
type Extractor struct {
	Open   Opener
	Logger hclog.Logger
}

// New returns an extractor using the platform's default opener.
func New(logger hclog.Logger) *Extractor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Extractor{Open: DefaultOpener(), Logger: logger}
}

func (x *Extractor) logger() hclog.Logger {
	if x.Logger == nil {
		return hclog.NewNullLogger()
	}
	return x.Logger
}

func (x *Extractor) open(path string) (ResourceReader, error) {
	open := x.Open
	if open == nil {
		open = DefaultOpener()
	}
	r, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("opening module %s: %w", path, err)
	}
	return r, nil
}

// List returns the group icon identifiers found in the module.
func (x *Extractor) List(path string) ([]ResourceID, error) {
	r, err := x.open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	ids, err := r.GroupIconIDs()
	if err != nil {
		return nil, fmt.Errorf("listing group icons: %w", err)
	}
	x.logger().Debug("listed group icons", "module", path, "count", len(ids))
	return ids, nil
}

// Extract rebuilds the container for one group icon. Every icon image the
// group declares must load with exactly its declared length; otherwise a
// *CorruptResourceError is returned and no container is produced.
func (x *Extractor) Extract(ctx context.Context, path string, id ResourceID) (*Result, error) {
	kind, records, blobs, err := x.load(ctx, path, id)
	if err != nil {
		return nil, err
	}
	frames, dropped := framesFrom(records, blobs)
	for _, d := range dropped {
		w, h := d.Dimensions()
		x.logger().Debug("dropping shallower duplicate frame", "ordinal", d.Ordinal, "width", w, "height", h, "bits", d.BitCount)
	}
	data, err := ico.Marshal(kind, frames)
	if err != nil {
		return nil, fmt.Errorf("encoding container: %w", err)
	}
	c, err := ico.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding container: %w", err)
	}
	x.logger().Info("extracted icon", "module", path, "id", id, "frames", len(frames), "bytes", len(data))
	return &Result{Data: data, Container: c, Dropped: dropped}, nil
}

// load holds the module open only while the group and its images are read.
func (x *Extractor) load(ctx context.Context, path string, id ResourceID) (uint16, []GroupEntry, [][]byte, error) {
	r, err := x.open(path)
	if err != nil {
		return 0, nil, nil, err
	}
	defer r.Close()
	group, err := r.ResourceBytes(TypeGroupIcon, id)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("loading group icon %s: %w", id, err)
	}
	h, records, err := ParseGroup(group)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("parsing group icon %s: %w", id, err)
	}
	blobs := make([][]byte, len(records))
	for ii, rec := range records {
		if err := ctx.Err(); err != nil {
			return 0, nil, nil, err
		}
		data, err := r.ResourceBytes(TypeIcon, ID(rec.Ordinal))
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				return 0, nil, nil, &CorruptResourceError{Ordinal: rec.Ordinal, Declared: int(rec.BytesInRes), Err: err}
			}
			return 0, nil, nil, fmt.Errorf("loading icon %d: %w", rec.Ordinal, err)
		}
		if len(data) != int(rec.BytesInRes) {
			return 0, nil, nil, &CorruptResourceError{Ordinal: rec.Ordinal, Declared: int(rec.BytesInRes), Actual: len(data)}
		}
		blobs[ii] = data
	}
	return h.Type, records, blobs, nil
}

// framesFrom converts group records to frames, keeping the deepest frame
// for each side length since a container holds one frame per side.
func framesFrom(records []GroupEntry, blobs [][]byte) ([]ico.Frame, []GroupEntry) {
	var (
		frames  []ico.Frame
		sources []GroupEntry
		index   = make(map[int]int)
		dropped []GroupEntry
	)
	for ii, rec := range records {
		w, h := rec.Dimensions()
		f := ico.Frame{
			SideLength: w,
			Width:      w,
			Height:     h,
			BitDepth:   int(rec.BitCount),
			ColorCount: rec.ColorCount,
			Encoding:   ico.Classify(blobs[ii]),
			Data:       blobs[ii],
		}
		if h > w {
			f.SideLength = h
		}
		if f.BitDepth == 0 && f.Encoding == ico.EncodingDIB {
			if hdr, err := ico.ParseDIBHeader(f.Data); err == nil {
				f.BitDepth = int(hdr.BitCount)
			}
		}
		at, seen := index[f.SideLength]
		if !seen {
			index[f.SideLength] = len(frames)
			frames = append(frames, f)
			sources = append(sources, rec)
			continue
		}
		if deeper(f, frames[at]) {
			dropped = append(dropped, sources[at])
			frames[at], sources[at] = f, rec
		} else {
			dropped = append(dropped, rec)
		}
	}
	return frames, dropped
}

func deeper(a, b ico.Frame) bool {
	if a.BitDepth != b.BitDepth {
		return a.BitDepth > b.BitDepth
	}
	return len(a.Data) > len(b.Data)
}

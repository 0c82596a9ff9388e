package icogen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"git.sr.ht/~jackmordaunt/icogen/ico"
)

// DefaultSides are generated when a request names no sizes.
var DefaultSides = []int{16, 24, 32, 48, 64, 128, 256}

// SizeSpec is one requested side length. Two specs are the same size when
// their side lengths match, whatever their flags.
type SizeSpec struct {
	SideLength int
	Selected   bool
	// Enabled is derived from the source: the side fits inside it.
	Enabled bool
}

// Equal compares by side length only.
func (s SizeSpec) Equal(other SizeSpec) bool {
	return s.SideLength == other.SideLength
}

func (s SizeSpec) String() string {
	return strconv.Itoa(s.SideLength)
}

// Sizes returns selected specs for sides.
func Sizes(sides ...int) []SizeSpec {
	specs := make([]SizeSpec, len(sides))
	for ii, side := range sides {
		specs[ii] = SizeSpec{SideLength: side, Selected: true}
	}
	return specs
}

// ParseSizes reads a comma separated list such as "16,32,48".
func ParseSizes(list string) ([]SizeSpec, error) {
	var sides []int
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		side, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("parsing size %q: %w", field, err)
		}
		if side < 1 || side > ico.MaxSide {
			return nil, fmt.Errorf("size %d outside 1..%d", side, ico.MaxSide)
		}
		sides = append(sides, side)
	}
	if len(sides) == 0 {
		return nil, fmt.Errorf("no sizes in %q", list)
	}
	return Sizes(sides...), nil
}

// Resolve drops repeated side lengths, keeping the first occurrence, and
// sets Enabled for sides no larger than minSide.
func Resolve(specs []SizeSpec, minSide int) []SizeSpec {
	var (
		out  = make([]SizeSpec, 0, len(specs))
		seen = make(map[int]struct{}, len(specs))
	)
	for _, s := range specs {
		if _, ok := seen[s.SideLength]; ok {
			continue
		}
		seen[s.SideLength] = struct{}{}
		s.Enabled = s.SideLength >= 1 && s.SideLength <= ico.MaxSide && s.SideLength <= minSide
		out = append(out, s)
	}
	return out
}

// plan splits resolved specs into the sides to generate, ascending, and the
// selected sides that cannot be generated from the source.
func plan(specs []SizeSpec, minSide int) (sides []int, skipped []*UnsupportedSizeError) {
	for _, s := range specs {
		if !s.Selected {
			continue
		}
		if !s.Enabled {
			skipped = append(skipped, &UnsupportedSizeError{SideLength: s.SideLength, Max: minSide})
			continue
		}
		sides = append(sides, s.SideLength)
	}
	sort.Ints(sides)
	return sides, skipped
}

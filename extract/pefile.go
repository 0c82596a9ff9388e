package extract

import (
	"fmt"
	"os"

	"git.sr.ht/~jackmordaunt/icogen/ico"
	"github.com/tc-hib/winres"
)

// peFile reads resources by parsing the module with winres. The file is
// read into memory on open, so no OS handle outlives OpenPEFile.
type peFile struct {
	rs *winres.ResourceSet
}

// OpenPEFile loads the resource table of a PE module on any platform.
func OpenPEFile(path string) (ResourceReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rs, err := winres.LoadFromEXE(f)
	if err != nil {
		return nil, &ico.DecodeError{Reason: fmt.Sprintf("reading resources of %s", path), Err: err}
	}
	return &peFile{rs: rs}, nil
}

func (p *peFile) GroupIconIDs() ([]ResourceID, error) {
	var ids []ResourceID
	p.rs.WalkType(winres.RT_GROUP_ICON, func(resID winres.Identifier, _ uint16, _ []byte) bool {
		id := fromIdentifier(resID)
		for _, seen := range ids {
			if seen.Equal(id) {
				return true
			}
		}
		ids = append(ids, id)
		return true
	})
	return ids, nil
}

// ResourceBytes returns the first language variant of the resource.
func (p *peFile) ResourceBytes(kind ResourceType, id ResourceID) ([]byte, error) {
	var (
		data  []byte
		found bool
	)
	p.rs.WalkType(winres.ID(kind), func(resID winres.Identifier, _ uint16, b []byte) bool {
		if fromIdentifier(resID).Equal(id) {
			data, found = b, true
			return false
		}
		return true
	})
	if !found {
		return nil, &NotFoundError{Type: kind, ID: id}
	}
	return data, nil
}

func (p *peFile) Close() error {
	p.rs = nil
	return nil
}

func fromIdentifier(id winres.Identifier) ResourceID {
	switch v := id.(type) {
	case winres.ID:
		return ID(uint16(v))
	case winres.Name:
		return Name(string(v))
	}
	return Name(fmt.Sprint(id))
}

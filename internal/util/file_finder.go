package util

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// Finder finds files by name.
type Finder struct {
	// Root folder to start search from.
	Root string
	// IsDir if we are looking for a directory.
	IsDir bool
	// Rel indicates to return a path relative to Root.
	Rel bool
}

// Find returns the shallowest file under Root matching one of names.
// Earlier names win over later ones at the same depth. Hidden directories
// are not searched.
//
// If the returned path is empty then no file was found.
func (f Finder) Find(names ...string) (string, error) {
	var (
		found = ""
		depth = -1
		rank  = len(names)
	)
	err := filepath.WalkDir(f.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != f.Root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if d.IsDir() != f.IsDir {
			return nil
		}
		for ii, name := range names {
			if d.Name() != name {
				continue
			}
			level := strings.Count(filepath.ToSlash(path), "/")
			if depth < 0 || level < depth || (level == depth && ii < rank) {
				found, depth, rank = path, level, ii
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking: %w", err)
	}
	if found == "" {
		return "", nil
	}
	if f.Rel {
		rel, err := filepath.Rel(f.Root, found)
		if err != nil {
			return "", fmt.Errorf("resolving relative path: %w", err)
		}
		return rel, nil
	}
	found, err = filepath.Abs(found)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return found, nil
}

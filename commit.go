package icogen

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"git.sr.ht/~jackmordaunt/icogen/internal/util"
)

// publication moves a job's staged files to their destinations as one
// unit. A file already at a destination is set aside next to it and put
// back if a later move fails, so a failed job leaves every previous output
// as it was.
type publication struct {
	job   string
	moves []move
	done  []move
}

type move struct {
	staged string
	dst    string
	backup string
}

func (p *publication) add(staged, dst string) {
	p.moves = append(p.moves, move{staged: staged, dst: dst})
}

// commit performs the moves in the order they were added.
func (p *publication) commit() error {
	for _, m := range p.moves {
		dir := filepath.Dir(m.dst)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &IOError{Op: "creating directory", Path: dir, Err: err}
		}
	}
	for _, m := range p.moves {
		if _, err := os.Lstat(m.dst); err == nil {
			m.backup = filepath.Join(filepath.Dir(m.dst), "."+filepath.Base(m.dst)+"-"+p.job+".bak")
			if err := os.Rename(m.dst, m.backup); err != nil {
				return p.abort(&IOError{Op: "setting aside", Path: m.dst, Err: err})
			}
		}
		p.done = append(p.done, m)
		if err := util.Replace(m.staged, m.dst); err != nil {
			return p.abort(&IOError{Op: "writing", Path: m.dst, Err: err})
		}
	}
	for _, m := range p.done {
		if m.backup != "" {
			os.Remove(m.backup)
		}
	}
	return nil
}

// abort undoes the completed moves, newest first, and returns cause joined
// with any failure to restore.
func (p *publication) abort(cause error) error {
	var errs util.MultiError
	errs.Add(cause)
	for ii := len(p.done) - 1; ii >= 0; ii-- {
		m := p.done[ii]
		if m.backup == "" {
			if err := os.Remove(m.dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs.Add(&IOError{Op: "removing", Path: m.dst, Err: err})
			}
			continue
		}
		if err := os.Rename(m.backup, m.dst); err != nil {
			errs.Add(&IOError{Op: "restoring", Path: m.dst, Err: err})
		}
	}
	p.done = nil
	if len(errs) == 1 {
		return cause
	}
	return errs
}

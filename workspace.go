package icogen

import (
	"context"
	"fmt"
	"image"
	"sync"

	"git.sr.ht/~jackmordaunt/icogen/history"
	"git.sr.ht/~jackmordaunt/icogen/raster"
)

// MaxCanvas bounds Workspace.Resize.
const MaxCanvas = 4096

// Workspace is an editing session over one source: the working raster can
// be swapped or resized, every change can be undone, and jobs run against
// whatever raster is current.
type Workspace struct {
	Generator *Generator
	History   *history.Log

	// op serialises edits; it is taken before the history and mu.
	op      sync.Mutex
	mu      sync.Mutex
	seq     int
	rasters map[string]*raster.Source
	current string
	layout  history.Size
}

// NewWorkspace returns an empty workspace keeping limit undo steps.
func NewWorkspace(g *Generator, limit int) *Workspace {
	return &Workspace{
		Generator: g,
		History:   history.New(limit),
		rasters:   make(map[string]*raster.Source),
	}
}

// Current returns the working raster and its layout size.
func (w *Workspace) Current() (*raster.Source, history.Size) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rasters[w.current], w.layout
}

// Load decodes path and makes it the working raster. Every load is a new
// raster, so reloading a changed file can be undone like any other swap.
func (w *Workspace) Load(path string) error {
	src, err := openSource(path, w.Generator.SVGSide)
	if err != nil {
		return err
	}
	w.op.Lock()
	defer w.op.Unlock()
	w.mu.Lock()
	prev := w.current
	id := w.store(src.Path, src)
	w.current = id
	w.layout = history.Size{Width: src.Width, Height: src.Height}
	w.mu.Unlock()
	if prev != "" {
		w.History.AddUndo(history.Swap(prev, id))
	}
	w.prune()
	return nil
}

// Resize replaces the working raster with its square intermediate scaled
// to side pixels, changing the layout size with it.
func (w *Workspace) Resize(side int) error {
	if side < 1 || side > MaxCanvas {
		return fmt.Errorf("resize to %d: outside 1..%d", side, MaxCanvas)
	}
	w.op.Lock()
	defer w.op.Unlock()
	src, _ := w.Current()
	if src == nil {
		return fmt.Errorf("no raster loaded")
	}
	scaled := w.Generator.Engine.Scale(raster.Square(src.Image), side)
	next := history.Size{Width: side, Height: side}
	w.mu.Lock()
	id := w.store(fmt.Sprintf("%s@%d", src.Path, side), &raster.Source{
		Path:   src.Path,
		Format: src.Format,
		Width:  side,
		Height: side,
		Image:  toNRGBA(scaled),
	})
	t := history.Resize(w.current, id, w.layout, next)
	w.current, w.layout = id, next
	w.mu.Unlock()
	w.History.AddUndo(t)
	w.prune()
	return nil
}

// Undo reverts the most recent change.
func (w *Workspace) Undo() error {
	w.op.Lock()
	defer w.op.Unlock()
	_, err := w.History.Undo(w.apply)
	return err
}

// Redo reapplies the most recently undone change.
func (w *Workspace) Redo() error {
	w.op.Lock()
	defer w.op.Unlock()
	_, err := w.History.Redo(w.apply)
	return err
}

// Len returns the number of rasters held.
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rasters)
}

// store keeps src under an identity no other raster has had. Callers hold
// w.mu.
func (w *Workspace) store(name string, src *raster.Source) string {
	w.seq++
	id := fmt.Sprintf("%s#%d", name, w.seq)
	w.rasters[id] = src
	return id
}

// prune drops rasters that neither the history nor the workspace refers to.
// Callers hold w.op.
func (w *Workspace) prune() {
	refs := w.History.Referenced()
	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.rasters {
		if id != w.current && !refs[id] {
			delete(w.rasters, id)
		}
	}
}

// apply moves the workspace to t.Next. The history calls it with its own
// lock held, so w.mu is never held while calling into the history.
func (w *Workspace) apply(t history.Transition) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	src, ok := w.rasters[t.Next]
	if !ok {
		return fmt.Errorf("raster %q no longer available", t.Next)
	}
	w.current = t.Next
	if t.NextSize != nil {
		w.layout = *t.NextSize
	} else {
		w.layout = history.Size{Width: src.Width, Height: src.Height}
	}
	return nil
}

// Generate runs req against the working raster.
func (w *Workspace) Generate(ctx context.Context, req Request) (Result, error) {
	src, _ := w.Current()
	if src == nil {
		return Result{State: Failed, Message: "no raster loaded"}, fmt.Errorf("no raster loaded")
	}
	req.Image = src
	if req.Source == "" {
		req.Source = src.Path
	}
	return w.Generator.Generate(ctx, req)
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	return raster.Square(img)
}

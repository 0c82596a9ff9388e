// Package history is a bounded undo/redo log of reversible raster
// transitions.
//
// Each Transition carries both sides of the change, so its inverse is
// computed from the value alone and the pipeline never has to be re-run to
// step backwards.
package history

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultLimit bounds each stack when New is given a non-positive limit.
const DefaultLimit = 50

var (
	// ErrNothingToUndo is returned by Undo on an empty undo stack.
	ErrNothingToUndo = errors.New("history: nothing to undo")
	// ErrNothingToRedo is returned by Redo on an empty redo stack.
	ErrNothingToRedo = errors.New("history: nothing to redo")
)

// Kind tags the variant of a Transition.
type Kind int

const (
	// RasterSwap replaces the working raster.
	RasterSwap Kind = iota
	// RasterResize replaces the working raster and the layout size with it.
	RasterResize
)

func (k Kind) String() string {
	switch k {
	case RasterSwap:
		return "raster-swap"
	case RasterResize:
		return "raster-resize"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Size is a layout size in pixels.
type Size struct {
	Width, Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Transition is one reversible change of state.
type Transition struct {
	Kind Kind
	// Prev and Next identify the raster before and after the change.
	Prev, Next string
	// PrevSize and NextSize are set only for RasterResize.
	PrevSize, NextSize *Size
}

// Swap records a raster replacement.
func Swap(prev, next string) Transition {
	return Transition{Kind: RasterSwap, Prev: prev, Next: next}
}

// Resize records a raster replacement that also changes the layout size.
func Resize(prev, next string, prevSize, nextSize Size) Transition {
	return Transition{
		Kind:     RasterResize,
		Prev:     prev,
		Next:     next,
		PrevSize: &prevSize,
		NextSize: &nextSize,
	}
}

// Inverse returns the transition that undoes t.
func (t Transition) Inverse() Transition {
	return Transition{
		Kind:     t.Kind,
		Prev:     t.Next,
		Next:     t.Prev,
		PrevSize: t.NextSize,
		NextSize: t.PrevSize,
	}
}

func (t Transition) String() string {
	if t.Kind == RasterResize && t.PrevSize != nil && t.NextSize != nil {
		return fmt.Sprintf("%s %s(%s) -> %s(%s)", t.Kind, t.Prev, t.PrevSize, t.Next, t.NextSize)
	}
	return fmt.Sprintf("%s %s -> %s", t.Kind, t.Prev, t.Next)
}

// Applier moves the caller's state to t.Next (and t.NextSize, if set).
type Applier func(t Transition) error

// Log holds the undo and redo stacks. The zero value is not usable; use New.
//
// The applier runs with the log locked and must not call back into it.
type Log struct {
	mu    sync.Mutex
	limit int
	undo  []Transition
	redo  []Transition
}

// New returns a log keeping at most limit entries per stack.
func New(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{limit: limit}
}

// AddUndo records a transition the caller has already applied and
// discards any pending redo entries.
func (l *Log) AddUndo(t Transition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undo = push(l.undo, t, l.limit)
	l.redo = nil
}

// Undo applies the inverse of the most recent transition and moves it to
// the redo stack. If apply fails the stacks are left unchanged.
func (l *Log) Undo(apply Applier) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.undo) == 0 {
		return Transition{}, ErrNothingToUndo
	}
	t := l.undo[len(l.undo)-1]
	if err := apply(t.Inverse()); err != nil {
		return Transition{}, fmt.Errorf("undoing %s: %w", t.Kind, err)
	}
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = push(l.redo, t, l.limit)
	return t, nil
}

// Redo re-applies the most recently undone transition and moves it back to
// the undo stack. If apply fails the stacks are left unchanged.
func (l *Log) Redo(apply Applier) (Transition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.redo) == 0 {
		return Transition{}, ErrNothingToRedo
	}
	t := l.redo[len(l.redo)-1]
	if err := apply(t); err != nil {
		return Transition{}, fmt.Errorf("redoing %s: %w", t.Kind, err)
	}
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = push(l.undo, t, l.limit)
	return t, nil
}

// Lens returns the depth of the undo and redo stacks.
func (l *Log) Lens() (undo, redo int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.undo), len(l.redo)
}

// CanUndo reports whether Undo has anything to do.
func (l *Log) CanUndo() bool {
	n, _ := l.Lens()
	return n > 0
}

// CanRedo reports whether Redo has anything to do.
func (l *Log) CanRedo() bool {
	_, n := l.Lens()
	return n > 0
}

// Referenced returns every raster identity named by a transition on
// either stack.
func (l *Log) Referenced() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	refs := make(map[string]bool, 2*(len(l.undo)+len(l.redo)))
	for _, stack := range [][]Transition{l.undo, l.redo} {
		for _, t := range stack {
			refs[t.Prev] = true
			refs[t.Next] = true
		}
	}
	return refs
}

// Clear empties both stacks.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undo, l.redo = nil, nil
}

// push appends t, dropping the oldest entry once the stack is full.
func push(stack []Transition, t Transition, limit int) []Transition {
	if len(stack) >= limit {
		copy(stack, stack[len(stack)-limit+1:])
		stack = stack[:limit-1]
	}
	return append(stack, t)
}

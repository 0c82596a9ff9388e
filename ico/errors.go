package ico

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFrames is returned when encoding an empty frame set.
	ErrNoFrames = errors.New("ico: no frames to encode")
	// ErrTooManyFrames is returned when a frame set exceeds MaxFrames.
	ErrTooManyFrames = errors.New("ico: too many frames")
)

// DecodeError reports malformed input: a bad header, a truncated directory
// or payload, or an undecodable image.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ico: decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ico: decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DuplicateSizeError is returned when two frames share a side length.
type DuplicateSizeError struct {
	SideLength int
}

func (e *DuplicateSizeError) Error() string {
	return fmt.Sprintf("ico: duplicate side length %d", e.SideLength)
}

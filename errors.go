package icogen

import (
	"errors"
	"fmt"
)

// ErrNoSizes is returned when none of the requested sizes can be generated.
var ErrNoSizes = errors.New("icogen: no selected size fits the source")

// ErrNoDestination is returned for a request without a container path.
var ErrNoDestination = errors.New("icogen: no destination")

// UnsupportedSizeError reports a side length larger than the source. It is
// recorded against the job and never fails it on its own.
type UnsupportedSizeError struct {
	SideLength int
	Max        int
}

func (e *UnsupportedSizeError) Error() string {
	return fmt.Sprintf("size %d exceeds source resolution %d", e.SideLength, e.Max)
}

// IOError reports a destination that could not be written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// AlreadyRunningError rejects a job for a source that already has one in
// flight.
type AlreadyRunningError struct {
	Source string
	JobID  string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("job %s already running for %s", e.JobID, e.Source)
}

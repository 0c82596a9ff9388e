package util

import (
	"fmt"
	"strings"
)

// MultiError combines a number of errors into a single error value.
type MultiError []error

// Add appends err if it is not nil.
func (me *MultiError) Add(err error) {
	if err != nil {
		*me = append(*me, err)
	}
}

func (me MultiError) IsEmpty() bool {
	return len(me) == 0
}

// ErrorOrNil returns nil when no errors were added, so that a MultiError
// can be returned as a plain error.
func (me MultiError) ErrorOrNil() error {
	if me.IsEmpty() {
		return nil
	}
	return me
}

// Unwrap exposes the errors to errors.Is and errors.As.
func (me MultiError) Unwrap() []error {
	return me
}

func (me MultiError) Error() string {
	if len(me) == 1 {
		return me[0].Error()
	}
	var b strings.Builder
	b.WriteString("[\n")
	for ii, err := range me {
		fmt.Fprintf(&b, "\t%d: %s\n", ii+1, err)
	}
	b.WriteString("]\n")
	return b.String()
}

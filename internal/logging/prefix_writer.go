package logging

import (
	"bytes"
	"io"
	"sync"
)

// PrefixWriter prefixes every complete line written through it. Partial
// lines are held until their newline arrives.
type PrefixWriter struct {
	mu     sync.Mutex
	prefix []byte
	writer io.Writer
	buffer bytes.Buffer
}

// NewPrefixWriter wraps w.
func NewPrefixWriter(prefix string, w io.Writer) *PrefixWriter {
	return &PrefixWriter{
		prefix: []byte(prefix),
		writer: w,
	}
}

func (pw *PrefixWriter) Write(p []byte) (int, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	n := len(p)
	pw.buffer.Write(p)
	for {
		idx := bytes.IndexByte(pw.buffer.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := pw.buffer.Next(idx + 1)
		if _, err := pw.writer.Write(append(append([]byte{}, pw.prefix...), line...)); err != nil {
			return 0, err
		}
	}
	return n, nil
}

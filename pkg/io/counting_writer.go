package io

import (
	"io"

	"go.uber.org/atomic"
)

// CountingWriter counts the bytes written through it. The count may be shared by several writers.
type CountingWriter struct {
	Delegate     io.Writer
	BytesWritten *atomic.Int64
}

func NewCountingWriter(w io.Writer) *CountingWriter {
	return &CountingWriter{Delegate: w, BytesWritten: atomic.NewInt64(0)}
}

func (w *CountingWriter) Write(p []byte) (int, error) {
	n, err := w.Delegate.Write(p)
	w.BytesWritten.Add(int64(n))
	return n, err
}

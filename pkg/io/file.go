package io

import (
	"io"
	"os"
	"path/filepath"
)

type File interface {
	Path() string
	WriteTo(io.Writer) (int64, error)
}

// RawFile is a generated file held in memory.
type RawFile struct {
	FPath   string
	Content []byte
}

func (r *RawFile) Path() string {
	return r.FPath
}

func (r *RawFile) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Content)
	return int64(n), err
}

// FileRef is a file on disk whose contents are only read once it is written out or uploaded.
type FileRef struct {
	FPath string
	// Root is the directory FPath is relative to when reading, FPath alone is the destination path.
	Root string
}

func (r *FileRef) Path() string {
	return r.FPath
}

func (r *FileRef) SourcePath() string {
	return filepath.Join(r.Root, r.FPath)
}

func (r *FileRef) WriteTo(w io.Writer) (int64, error) {
	f, err := os.Open(r.SourcePath())
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

package io

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputTo(t *testing.T) {
	dest := t.TempDir()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "definition.json"), []byte(`{"StartAt":"A"}`), 0644))

	files := []File{
		&RawFile{FPath: "itada.template.json", Content: []byte("{}")},
		&RawFile{FPath: "nested/dir/itada.graph.yaml", Content: []byte("resources: {}\n")},
		&FileRef{FPath: "definition.json", Root: src},
	}
	// existing files are replaced
	require.NoError(t, os.WriteFile(filepath.Join(dest, "itada.template.json"), []byte("stale and longer"), 0644))

	require.NoError(t, OutputTo(context.Background(), files, dest))

	for path, want := range map[string]string{
		"itada.template.json":         "{}",
		"nested/dir/itada.graph.yaml": "resources: {}\n",
		"definition.json":             `{"StartAt":"A"}`,
	} {
		got, err := os.ReadFile(filepath.Join(dest, path))
		if assert.NoError(t, err, path) {
			assert.Equal(t, want, string(got), path)
		}
	}
}

func TestOutputTo_CollectsErrors(t *testing.T) {
	dest := t.TempDir()
	files := []File{
		&FileRef{FPath: "missing-1.json", Root: t.TempDir()},
		&FileRef{FPath: "missing-2.json", Root: t.TempDir()},
		&RawFile{FPath: "ok.json", Content: []byte("{}")},
	}

	err := OutputTo(context.Background(), files, dest)
	assert.ErrorContains(t, err, "missing-1.json")
	assert.ErrorContains(t, err, "missing-2.json")
	assert.FileExists(t, filepath.Join(dest, "ok.json"))
}

func TestCountingWriter(t *testing.T) {
	buf := new(bytes.Buffer)
	w := NewCountingWriter(buf)
	_, _ = w.Write([]byte("hello "))
	_, _ = w.Write([]byte("world"))
	assert.EqualValues(t, 11, w.BytesWritten.Load())
	assert.Equal(t, "hello world", buf.String())
}

func TestOutputTo_Cancelled(t *testing.T) {
	dest := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := OutputTo(ctx, []File{&RawFile{FPath: "itada.template.json", Content: []byte("{}")}}, dest)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dest, "itada.template.json"))
}

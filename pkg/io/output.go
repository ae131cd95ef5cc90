package io

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alitto/pond"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const outputWorkers = 4

// OutputTo writes every file under dest, creating directories as needed and replacing existing files.
// All files are attempted, the returned error joins every failure. Files not yet started when ctx is done are
// skipped and the context error is returned.
func OutputTo(ctx context.Context, files []File, dest string) error {
	log := logging.GetLogger(ctx).Named("io")

	pool := pond.New(outputWorkers, len(files)+1, pond.Context(ctx))

	total := atomic.NewInt64(0)
	var errsMu sync.Mutex
	var errs error
	for _, f := range files {
		f := f
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			n, err := writeFile(f, dest)
			if err != nil {
				errsMu.Lock()
				errs = errors.Join(errs, err)
				errsMu.Unlock()
				return
			}
			total.Add(n)
			log.Debug("Wrote file", logging.FileField(filepath.Join(dest, f.Path())), logging.SizeField("size", n))
		})
	}
	pool.StopAndWait()

	if err := ctx.Err(); err != nil {
		return errors.Join(errs, fmt.Errorf("output to %s interrupted: %w", dest, err))
	}
	if errs == nil {
		log.Info("Wrote output",
			zap.Int("files", len(files)),
			zap.String("dir", dest),
			logging.SizeField("size", total.Load()),
		)
	}
	return errs
}

func writeFile(f File, dest string) (int64, error) {
	path := filepath.Join(dest, f.Path())
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("could not create directory for %s: %w", f.Path(), err)
	}
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("could not create %s: %w", f.Path(), err)
	}
	w := NewCountingWriter(out)
	_, err = f.WriteTo(w)
	err = errors.Join(err, out.Close())
	if err != nil {
		return w.BytesWritten.Load(), fmt.Errorf("could not write %s: %w", f.Path(), err)
	}
	return w.BytesWritten.Load(), nil
}

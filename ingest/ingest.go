// Package ingest drives the container pipeline: it scans a dense expression
// matrix, resolves gene identifiers, encodes and writes containers and exports
// the resulting catalog.
package ingest

import (
	"bufio"
	"io"
	"os"
	"runtime"

	"github.com/bsm/scgex"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// Logger is the logging interface used by the pipeline.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
}

// Options configure the pipeline.
type Options struct {
	// MinExpression is the minimum value kept by the encoder.
	// Default: scgex.DefaultMinExpression.
	MinExpression float64

	// MaxRecords is the maximum number of records per container.
	// Default: 2048.
	MaxRecords int

	// FilePattern names container files.
	// Default: "gex_%d.bin".
	FilePattern string

	// Concurrency limits the number of containers indexed in parallel.
	// Default: runtime.NumCPU().
	Concurrency int

	// Logger receives progress and warnings.
	// Default: no-op.
	Logger Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.MinExpression <= 0 {
		oo.MinExpression = scgex.DefaultMinExpression
	}
	if oo.Concurrency < 1 {
		oo.Concurrency = runtime.NumCPU()
	}
	if oo.Logger == nil {
		oo.Logger = zap.NewNop().Sugar()
	}
	return &oo
}

// --------------------------------------------------------------------

var gzipMagic = []byte{0x1f, 0x8b}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() (err error) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if e := r.closers[i].Close(); e != nil && err == nil {
			err = e
		}
	}
	return
}

// Open opens a plain or gzip compressed input file.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(f, 1<<16)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		_ = f.Close()
		return nil, err
	}
	if len(head) < len(gzipMagic) || head[0] != gzipMagic[0] || head[1] != gzipMagic[1] {
		return &readCloser{Reader: br, closers: []io.Closer{f}}, nil
	}

	zr, err := gzip.NewReader(br)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &readCloser{Reader: zr, closers: []io.Closer{f, zr}}, nil
}

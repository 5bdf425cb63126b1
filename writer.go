package scgex

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Block accumulates encoded records for a single container.
type Block struct {
	cellCount  uint32
	maxRecords int

	buf []byte // encoded records, header excluded
	n   int    // number of records in buf
}

// NewBlock returns an empty block holding at most maxRecords records. A
// maxRecords value < 1 means unlimited.
func NewBlock(cellCount uint32, maxRecords int) *Block {
	return &Block{cellCount: cellCount, maxRecords: maxRecords}
}

// Len returns the number of records in the block.
func (b *Block) Len() int { return b.n }

// Full returns true once the block reached its record limit.
func (b *Block) Full() bool { return b.maxRecords > 0 && b.n >= b.maxRecords }

// Append encodes and appends a record.
func (b *Block) Append(rec *Record) error {
	if b.Full() {
		return errBlockFull
	}

	mark := len(b.buf)
	buf, err := AppendRecord(b.buf, rec)
	if err != nil {
		b.buf = buf[:mark]
		return err
	}
	b.buf = buf
	b.n++
	return nil
}

// WriteTo writes the header followed by all records to w in a single Write call.
// It returns ErrEmptyBlock if the block contains no records.
func (b *Block) WriteTo(w io.Writer) (int64, error) {
	if b.n == 0 {
		return 0, ErrEmptyBlock
	}

	hdr := Header{Magic: Magic, Version: FormatVersion, CellCount: b.cellCount}
	p := make([]byte, 0, headerSize+len(b.buf))
	p = hdr.appendTo(p)
	p = append(p, b.buf...)

	n, err := w.Write(p)
	return int64(n), err
}

// Reset discards all records, retaining the allocated buffer.
func (b *Block) Reset() {
	b.buf = b.buf[:0]
	b.n = 0
}

// --------------------------------------------------------------------

// WriterOptions define writer specific options.
type WriterOptions struct {
	// MaxRecords is the maximum number of records per container file.
	// Default: 2048.
	MaxRecords int

	// FilePattern is the fmt pattern used to name container files, it receives the
	// 1-based block number.
	// Default: "gex_%d.bin".
	FilePattern string
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.MaxRecords < 1 {
		oo.MaxRecords = 2048
	}
	if oo.FilePattern == "" {
		oo.FilePattern = "gex_%d.bin"
	}
	return &oo
}

// Writer writes records into a directory as a series of container files, one per
// block. Blocks are numbered from 1.
type Writer struct {
	dir string
	o   *WriterOptions

	block  *Block
	num    int // number of the next block
	files  []string
	closed bool
}

// NewWriter creates a writer targeting dir, which is created if missing.
// The cellCount is stored in the header of every container.
func NewWriter(dir string, cellCount uint32, o *WriterOptions) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating container directory")
	}

	o = o.norm()
	return &Writer{
		dir:   dir,
		o:     o,
		block: NewBlock(cellCount, o.MaxRecords),
		num:   1,
	}, nil
}

// Append adds a record to the current block, flushing it to disk once it
// reaches the configured maximum.
func (w *Writer) Append(rec *Record) error {
	if w.closed {
		return errClosed
	}
	if err := w.block.Append(rec); err != nil {
		return err
	}
	if w.block.Full() {
		return w.Flush()
	}
	return nil
}

// Flush writes the current block to a new container file. It is a no-op when
// the current block has no records.
func (w *Writer) Flush() error {
	if w.closed {
		return errClosed
	}
	if w.block.Len() == 0 {
		return nil
	}

	name := filepath.Join(w.dir, fmt.Sprintf(w.o.FilePattern, w.num))
	if err := writeFileAtomic(name, w.block); err != nil {
		return errors.Wrapf(err, "writing block %d", w.num)
	}

	w.files = append(w.files, name)
	w.block.Reset()
	w.num++
	return nil
}

// Close flushes the final partial block and closes the writer.
func (w *Writer) Close() error {
	if w.closed {
		return errClosed
	}
	if err := w.Flush(); err != nil {
		return err
	}
	w.closed = true
	return nil
}

// Files returns the paths of all container files written so far, in block order.
func (w *Writer) Files() []string { return w.files }

// Pending returns the number of records in the current, unflushed block.
func (w *Writer) Pending() int { return w.block.Len() }

// writeFileAtomic writes the block to a temporary file and renames it into
// place.
func writeFileAtomic(name string, b *Block) error {
	f, err := ioutil.TempFile(filepath.Dir(name), "."+filepath.Base(name)+".")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := f.Chmod(0644); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := b.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), name)
}

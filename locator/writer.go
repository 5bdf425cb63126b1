package locator

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriterOptions define writer specific options.
type WriterOptions struct {
	// BlockSize is the minimum uncompressed size in bytes of each table block.
	// Default: 4KiB.
	BlockSize int

	// BlockRestartInterval is the number of ordinals between restart points
	// for delta encoding of ordinals.
	//
	// Default: 16.
	BlockRestartInterval int

	// The compression codec to use.
	// Default: SnappyCompression.
	Compression Compression
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.BlockSize < 1 {
		oo.BlockSize = 1 << 12
	}
	if oo.BlockRestartInterval < 1 {
		oo.BlockRestartInterval = 16
	}
	if !oo.Compression.isValid() {
		oo.Compression = SnappyCompression
	}

	return &oo
}

// Writer instances write a locator table. Locators must be appended in
// strictly increasing ordinal order.
type Writer struct {
	w io.Writer
	o *WriterOptions

	blk   blockBuilder
	index []blockInfo
	val   []byte // encoded locator

	offset int64  // bytes written so far
	last   uint64 // last appended ordinal
	count  int    // number of appended locators
	closed bool
}

// NewWriter wraps a writer and returns a Writer.
func NewWriter(w io.Writer, o *WriterOptions) *Writer {
	return &Writer{w: w, o: o.norm()}
}

// Append appends the locator of the gene with the given ordinal.
func (w *Writer) Append(ordinal uint32, loc *Locator) error {
	if w.closed {
		return errClosed
	}

	key := uint64(ordinal)
	if w.count != 0 && key <= w.last {
		return fmt.Errorf("locator: attempted an out-of-order append, %v must be > %v", key, w.last)
	}

	w.val = loc.appendTo(w.val[:0])
	if w.blk.size() != 0 && w.blk.size()+len(w.val)+2*binary.MaxVarintLen64 > w.o.BlockSize {
		if err := w.flushBlock(); err != nil {
			return err
		}
	}

	w.blk.add(key, w.val, w.o.BlockRestartInterval)
	w.last = key
	w.count++
	return nil
}

// Close writes the final block, the block index and the footer. It does not
// close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return errClosed
	}
	if err := w.flushBlock(); err != nil {
		return err
	}

	indexOffset := w.offset
	tail := appendBlockIndex(nil, w.index)
	tail = appendFooter(tail, indexOffset)
	if err := w.write(tail); err != nil {
		return err
	}

	w.closed = true
	return nil
}

func (w *Writer) flushBlock() error {
	if w.blk.size() == 0 {
		return nil
	}

	w.index = append(w.index, blockInfo{MaxKey: w.blk.last, Offset: w.offset})
	err := w.write(w.blk.finish(w.o.Compression))
	w.blk.reset()
	return err
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.offset += int64(n)
	return err
}

package scgex

import (
	"context"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// IndexEntry locates a single record inside a container.
type IndexEntry struct {
	GeneID     string
	GeneSymbol string
	Offset     int64  // position of the record's length prefix
	Size       uint32 // record length, excluding the prefix
}

// Reader instances can index and read records of a single container.
// Reader methods are safe for concurrent use.
type Reader struct {
	r    io.ReaderAt
	size int64
	hdr  Header
}

// NewReader opens a reader. It fails with a *FormatError if the header is
// invalid.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	if size < headerSize {
		return nil, formatErrorf(0, "header truncated to %d bytes", size)
	}

	tmp := make([]byte, headerSize)
	if _, err := r.ReadAt(tmp, 0); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	hdr, err := parseHeader(tmp)
	if err != nil {
		return nil, err
	}
	return &Reader{r: r, size: size, hdr: hdr}, nil
}

// Header returns the container header.
func (r *Reader) Header() Header { return r.hdr }

// CellCount returns the number of cells each record refers to.
func (r *Reader) CellCount() uint32 { return r.hdr.CellCount }

// Walk scans all records in order, calling fn with the location of each. Only
// the gene id and symbol are decoded; the value payload is skipped. Walk stops
// at the first error returned by fn.
func (r *Reader) Walk(fn func(IndexEntry) error) error {
	var lbuf [lengthPrefixSize]byte
	var names []byte

	for pos := int64(headerSize); pos < r.size; {
		if r.size-pos < lengthPrefixSize {
			return formatErrorf(pos, "truncated record length prefix")
		}
		if _, err := r.r.ReadAt(lbuf[:], pos); err != nil {
			return errors.Wrapf(err, "reading record length at %d", pos)
		}

		size := binary.LittleEndian.Uint32(lbuf[:])
		body := pos + lengthPrefixSize
		if size < minRecordSize {
			return formatErrorf(pos, "record length %d is too small", size)
		}
		if int64(size) > r.size-body {
			return formatErrorf(pos, "record length %d exceeds end of file", size)
		}

		// names are bounded by 2*(2+65535) bytes, or by the record itself
		n := int(size)
		if max := 2 * (2 + 0xffff); n > max {
			n = max
		}
		if cap(names) < n {
			names = make([]byte, n)
		}
		names = names[:n]
		if _, err := r.r.ReadAt(names, body); err != nil && err != io.EOF {
			return errors.Wrapf(err, "reading record at %d", pos)
		}

		id, sym, _, err := decodeNames(names, pos)
		if err != nil {
			return err
		}

		if err := fn(IndexEntry{
			GeneID:     id,
			GeneSymbol: sym,
			Offset:     pos,
			Size:       size,
		}); err != nil {
			return err
		}

		pos = body + int64(size)
	}
	return nil
}

// Index returns the locations of all records in order.
func (r *Reader) Index() ([]IndexEntry, error) {
	var entries []IndexEntry
	err := r.Walk(func(e IndexEntry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ReadRecord reads and fully decodes the record at offset, which must point to
// the record's length prefix, with size as returned by Index.
func (r *Reader) ReadRecord(offset int64, size uint32) (*Record, error) {
	if offset < headerSize || offset+lengthPrefixSize+int64(size) > r.size {
		return nil, formatErrorf(offset, "record of %d bytes out of bounds", size)
	}

	buf := make([]byte, lengthPrefixSize+int(size))
	if _, err := r.r.ReadAt(buf, offset); err != nil {
		return nil, errors.Wrapf(err, "reading record at %d", offset)
	}

	if stored := binary.LittleEndian.Uint32(buf); stored != size {
		return nil, formatErrorf(offset, "stored record length %d, expected %d", stored, size)
	}
	return decodeRecord(buf[lengthPrefixSize:], offset)
}

// --------------------------------------------------------------------

// File is a Reader backed by an open container file.
type File struct {
	*Reader
	f *os.File
}

// Open opens the container file at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r, err := NewReader(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &File{Reader: r, f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error { return f.f.Close() }

// ReadRecordAt is a shortcut which opens path, reads one record and closes the
// file again.
func ReadRecordAt(path string, offset int64, size uint32) (*Record, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.ReadRecord(offset, size)
}

// FileIndex is the result of indexing one container file.
type FileIndex struct {
	Path      string
	CellCount uint32
	Entries   []IndexEntry
	Err       error // set if the file could not be indexed
}

// IndexFiles indexes many containers, at most concurrency at a time. A failure
// on one file is reported in its FileIndex and does not affect the others.
// The returned slice matches the order of paths.
func IndexFiles(ctx context.Context, paths []string, concurrency int) []FileIndex {
	if concurrency < 1 {
		concurrency = 1
	}

	res := make([]FileIndex, len(paths))
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(concurrency)

	for i, path := range paths {
		i, path := i, path
		grp.Go(func() error {
			res[i] = indexFile(ctx, path)
			return nil
		})
	}
	_ = grp.Wait()

	return res
}

func indexFile(ctx context.Context, path string) FileIndex {
	fx := FileIndex{Path: path}
	if err := ctx.Err(); err != nil {
		fx.Err = err
		return fx
	}

	f, err := Open(path)
	if err != nil {
		fx.Err = errors.Wrapf(err, "opening %s", path)
		return fx
	}
	defer f.Close()

	fx.CellCount = f.CellCount()
	if fx.Entries, err = f.Index(); err != nil {
		fx.Err = errors.Wrapf(err, "indexing %s", path)
	}
	return fx
}

package locator

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Reader instances look up locators by gene ordinal.
type Reader struct {
	r io.ReaderAt

	index     []blockInfo
	maxOffset int64
}

// NewReader opens a reader.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	if size < 16 {
		return nil, errBadMagic
	}

	tmp := make([]byte, 16+binary.MaxVarintLen64)

	footerOffset := size - 16
	if _, err := r.ReadAt(tmp[:16], footerOffset); err != nil {
		return nil, err
	}
	if !bytes.Equal(tmp[8:16], magic) {
		return nil, errBadMagic
	}
	indexOffset := int64(binary.LittleEndian.Uint64(tmp[:8]))
	if indexOffset < 0 || indexOffset > footerOffset {
		return nil, errors.Errorf("locator: bad index offset %d", indexOffset)
	}

	var index []blockInfo
	var info blockInfo

	for pos := indexOffset; pos < footerOffset; {
		tmp = tmp[:2*binary.MaxVarintLen64]
		if x := footerOffset - pos; x < int64(len(tmp)) {
			tmp = tmp[:int(x)]
		}

		if _, err := r.ReadAt(tmp, pos); err != nil {
			return nil, err
		}

		u1, n1 := binary.Uvarint(tmp)
		if n1 <= 0 {
			return nil, errors.Errorf("locator: corrupt block index at %d", pos)
		}
		u2, n2 := binary.Uvarint(tmp[n1:])
		if n2 <= 0 {
			return nil, errors.Errorf("locator: corrupt block index at %d", pos)
		}
		pos += int64(n1 + n2)

		info.MaxKey += u1
		info.Offset += int64(u2)
		index = append(index, info)
	}

	return &Reader{
		r:         r,
		index:     index,
		maxOffset: indexOffset,
	}, nil
}

// NumBlocks returns the number of stored blocks.
func (r *Reader) NumBlocks() int {
	return len(r.index)
}

// Get retrieves the locator of the gene with the given ordinal.
// It may return an ErrNotFound error.
func (r *Reader) Get(ordinal uint32) (*Locator, error) {
	iter, err := r.Seek(ordinal)
	if err != nil {
		return nil, err
	}
	defer iter.Release()

	if !iter.Next() || iter.Ordinal() != ordinal {
		if err := iter.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return iter.Locator()
}

// Walk calls fn for every stored locator in ordinal order.
func (r *Reader) Walk(fn func(uint32, *Locator) error) error {
	iter, err := r.Seek(0)
	if err != nil {
		return err
	}
	defer iter.Release()

	for iter.Next() {
		loc, err := iter.Locator()
		if err != nil {
			return err
		}
		if err := fn(iter.Ordinal(), loc); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Seek returns an iterator positioned before the first ordinal >= the
// given one.
func (r *Reader) Seek(ordinal uint32) (*Iterator, error) {
	key := uint64(ordinal)
	bpos := sort.Search(len(r.index), func(i int) bool {
		return r.index[i].MaxKey >= key
	})

	b, err := r.block(bpos)
	if err != nil {
		return nil, err
	}

	s := b.seekSection(key)
	s.seek(key)
	return &Iterator{r: r, b: b, s: s}, nil
}

func (r *Reader) block(bpos int) (*blockReader, error) {
	if len(r.index) == 0 {
		return &blockReader{}, nil
	}
	if bpos < 0 {
		bpos = 0
	}
	if bpos >= len(r.index) {
		return &blockReader{bpos: len(r.index)}, nil
	}

	min := r.index[bpos].Offset
	max := r.maxOffset
	if next := bpos + 1; next < len(r.index) {
		max = r.index[next].Offset
	}
	if max-min < 1 {
		return nil, errors.Errorf("locator: empty block at %d", min)
	}

	raw := fetchBuffer(int(max - min))
	if _, err := r.r.ReadAt(raw, min); err != nil {
		releaseBuffer(raw)
		return nil, err
	}

	var block []byte
	switch cpos := len(raw) - 1; raw[cpos] {
	case blockNoCompression:
		block = raw[:cpos]
	case blockSnappyCompression:
		defer releaseBuffer(raw)

		sz, err := snappy.DecodedLen(raw[:cpos])
		if err != nil {
			return nil, err
		}

		plain := fetchBuffer(sz)
		if block, err = snappy.Decode(plain, raw[:cpos]); err != nil {
			releaseBuffer(plain)
			return nil, err
		}
	default:
		releaseBuffer(raw)
		return nil, errBadCompression
	}

	if len(block) < 4 {
		releaseBuffer(block)
		return nil, errors.Errorf("locator: truncated block at %d", min)
	}

	scnt := int(binary.LittleEndian.Uint32(block[len(block)-4:]))
	if scnt < 1 || scnt*4 > len(block) {
		releaseBuffer(block)
		return nil, errors.Errorf("locator: bad section count %d in block at %d", scnt, min)
	}

	return &blockReader{
		block:  block,
		bpos:   bpos,
		scnt:   scnt,
		maxKey: r.index[bpos].MaxKey,
	}, nil
}

// --------------------------------------------------------------------

type blockReader struct {
	block  []byte
	bpos   int // block position within the table
	scnt   int // number of sections
	maxKey uint64
}

func (b *blockReader) section(spos int) *sectionReader {
	if spos < 0 {
		spos = 0
	}
	if spos >= b.scnt {
		return &sectionReader{spos: b.scnt}
	}
	return &sectionReader{
		data: b.block[b.sectionOffset(spos):b.sectionOffset(spos+1)],
		spos: spos,
	}
}

func (b *blockReader) seekSection(key uint64) *sectionReader {
	if key > b.maxKey {
		return b.section(b.scnt)
	}

	spos := sort.Search(b.scnt, func(i int) bool {
		first, _ := binary.Uvarint(b.block[b.sectionOffset(i):])
		return first > key
	}) - 1
	return b.section(spos)
}

func (b *blockReader) release() { releaseBuffer(b.block) }

func (b *blockReader) sectionOffset(spos int) int {
	tail := len(b.block) - b.scnt*4
	switch {
	case spos < 1:
		return 0
	case spos >= b.scnt:
		return tail
	default:
		return int(binary.LittleEndian.Uint32(b.block[tail+(spos-1)*4:]))
	}
}

type sectionReader struct {
	data []byte
	spos int
	read int

	key uint64
	val []byte
}

func (s *sectionReader) more() bool { return s.read < len(s.data) }

// seek positions the cursor before the first key >= key.
func (s *sectionReader) seek(key uint64) {
	for s.more() {
		inc, n := binary.Uvarint(s.data[s.read:])
		if s.key+inc >= key {
			return
		}
		s.read += n
		s.key += inc

		if !s.skipValue() {
			return
		}
	}
}

func (s *sectionReader) next() bool {
	if !s.more() {
		return false
	}

	inc, n := binary.Uvarint(s.data[s.read:])
	s.read += n
	s.key += inc
	return s.skipValue()
}

func (s *sectionReader) skipValue() bool {
	if !s.more() {
		return false
	}

	vln, n := binary.Uvarint(s.data[s.read:])
	s.read += n
	end := s.read + int(vln)
	if n <= 0 || end > len(s.data) {
		s.read = len(s.data)
		return false
	}
	s.val = s.data[s.read:end]
	s.read = end
	return true
}

// --------------------------------------------------------------------

// Iterator iterates forward over locators across block and section
// boundaries.
type Iterator struct {
	r *Reader
	b *blockReader
	s *sectionReader

	err error
}

// Ordinal returns the gene ordinal of the current entry.
func (i *Iterator) Ordinal() uint32 { return uint32(i.s.key) }

// Locator decodes the current entry.
func (i *Iterator) Locator() (*Locator, error) { return decodeLocator(i.s.val) }

// Next advances the cursor to the next entry and returns true if successful.
func (i *Iterator) Next() bool {
	if i.err != nil {
		return false
	}

	if i.s.more() {
		return i.s.next()
	}

	if n := i.s.spos + 1; n < i.b.scnt {
		i.s = i.b.section(n)
		return i.s.next()
	}

	if n := i.b.bpos + 1; n < i.r.NumBlocks() {
		b, err := i.r.block(n)
		if err != nil {
			i.err = err
			return false
		}
		i.b.release()
		i.b = b
		i.s = b.section(0)
		return i.s.next()
	}

	return false
}

// Err exposes iterator errors, if any.
func (i *Iterator) Err() error {
	if i.err == errReleased {
		return nil
	}
	return i.err
}

// Release releases the iterator and frees up resources. The iterator must
// not be used after this method is called.
func (i *Iterator) Release() {
	if i.err != errReleased {
		i.b.release()
	}
	i.err = errReleased
}

// --------------------------------------------------------------------

// File is a Reader backed by an open table file.
type File struct {
	*Reader
	f *os.File
}

// Open opens a locator table file.
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
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return &File{Reader: r, f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}

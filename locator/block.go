package locator

import (
	"encoding/binary"

	"github.com/golang/snappy"
)

// blockBuilder accumulates the entries of a single block. Entries are grouped
// into sections; the first ordinal of a section is stored as is, all others
// as the delta to their predecessor.
type blockBuilder struct {
	buf      []byte
	sections []int // section start offsets within buf
	last     uint64
	n        int

	snp []byte
}

func (b *blockBuilder) size() int { return len(b.buf) }

func (b *blockBuilder) add(key uint64, val []byte, restartInterval int) {
	delta := key
	if b.n%restartInterval == 0 {
		b.sections = append(b.sections, len(b.buf))
	} else {
		delta -= b.last
	}

	b.buf = binary.AppendUvarint(b.buf, delta)
	b.buf = binary.AppendUvarint(b.buf, uint64(len(val)))
	b.buf = append(b.buf, val...)
	b.last = key
	b.n++
}

// finish appends the section trailer and returns the block, compressed when
// that saves at least a quarter of its size. The result is only valid until
// the next call to reset.
func (b *blockBuilder) finish(c Compression) []byte {
	for _, off := range b.sections[1:] {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(off))
	}
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(b.sections)))

	if c == SnappyCompression {
		b.snp = snappy.Encode(b.snp[:cap(b.snp)], b.buf)
		if len(b.snp) < len(b.buf)-len(b.buf)/4 {
			return append(b.snp, blockSnappyCompression)
		}
	}
	return append(b.buf, blockNoCompression)
}

func (b *blockBuilder) reset() {
	b.buf = b.buf[:0]
	b.sections = b.sections[:0]
	b.n = 0
}

// --------------------------------------------------------------------

// appendBlockIndex delta-encodes the block index.
func appendBlockIndex(dst []byte, index []blockInfo) []byte {
	var prev blockInfo
	for _, ent := range index {
		dst = binary.AppendUvarint(dst, ent.MaxKey-prev.MaxKey)
		dst = binary.AppendUvarint(dst, uint64(ent.Offset-prev.Offset))
		prev = ent
	}
	return dst
}

func appendFooter(dst []byte, indexOffset int64) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(indexOffset))
	return append(dst, magic...)
}

package locator

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var magic = []byte{103, 101, 120, 108, 111, 99, 1, 42}

const (
	blockNoCompression     = 0
	blockSnappyCompression = 1
)

// ErrNotFound is returned by the reader when an ordinal cannot be found.
var ErrNotFound = errors.New("locator: not found")

var (
	errClosed         = errors.New("locator: is closed")
	errBadMagic       = errors.New("locator: bad magic byte sequence")
	errBadCompression = errors.New("locator: bad compression codec")
	errBadValue       = errors.New("locator: malformed locator value")
	errReleased       = errors.New("locator: iterator was released")
)

type blockInfo struct {
	MaxKey uint64 // maximum ordinal in the block
	Offset int64  // block offset position
}

// --------------------------------------------------------------------

// Compression is the compression codec
type Compression byte

func (c Compression) isValid() bool {
	return c >= SnappyCompression && c <= unknownCompression
}

// Supported compression codecs
const (
	SnappyCompression Compression = iota
	NoCompression
	unknownCompression
)

// --------------------------------------------------------------------

// Locator addresses a single expression record within a set of containers.
type Locator struct {
	File       string // container file name, relative to the container directory
	Offset     int64  // position of the record's length prefix
	Size       uint32 // record length, excluding the prefix
	GeneID     string
	GeneSymbol string
}

func (l *Locator) appendTo(dst []byte) []byte {
	dst = appendString(dst, l.File)
	dst = binary.AppendUvarint(dst, uint64(l.Offset))
	dst = binary.AppendUvarint(dst, uint64(l.Size))
	dst = appendString(dst, l.GeneID)
	return appendString(dst, l.GeneSymbol)
}

func appendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func decodeLocator(p []byte) (*Locator, error) {
	var l Locator
	var ok bool

	if l.File, p, ok = readString(p); !ok {
		return nil, errBadValue
	}

	off, n := binary.Uvarint(p)
	if n <= 0 {
		return nil, errBadValue
	}
	p = p[n:]
	l.Offset = int64(off)

	size, n := binary.Uvarint(p)
	if n <= 0 || size > 1<<32-1 {
		return nil, errBadValue
	}
	p = p[n:]
	l.Size = uint32(size)

	if l.GeneID, p, ok = readString(p); !ok {
		return nil, errBadValue
	}
	if l.GeneSymbol, _, ok = readString(p); !ok {
		return nil, errBadValue
	}
	return &l, nil
}

func readString(p []byte) (string, []byte, bool) {
	sz, n := binary.Uvarint(p)
	if n <= 0 || uint64(len(p)-n) < sz {
		return "", p, false
	}
	p = p[n:]
	return string(p[:sz]), p[sz:], true
}

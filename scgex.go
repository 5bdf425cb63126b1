package scgex

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Magic is the constant stored in the first four bytes of every container.
const Magic uint32 = 42

// FormatVersion is the container layout version written by this package.
const FormatVersion uint32 = 1

// DefaultMinExpression is the default expression threshold applied by Encode.
const DefaultMinExpression = 1.0

const (
	headerSize       = 12
	lengthPrefixSize = 4

	// smallest possible record body: two empty strings and a zero count
	minRecordSize = 2 + 2 + 4

	// largest cell index that survives the float32 round trip exactly
	maxCellIndex = 1 << 24
)

// ErrEmptyBlock is returned when attempting to write a block without records.
var ErrEmptyBlock = errors.New("scgex: block has no records")

var (
	errBlockFull      = errors.New("scgex: block is full")
	errClosed         = errors.New("scgex: writer is closed")
	errFieldTooLong   = errors.New("scgex: gene field exceeds 65535 bytes")
	errCellIndexRange = errors.New("scgex: cell index not representable as float32")
)

// FormatError reports a container whose bytes do not follow the layout.
type FormatError struct {
	Offset int64  // byte position where the problem was detected
	Reason string // what was wrong
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("scgex: bad container at offset %d: %s", e.Offset, e.Reason)
}

func formatErrorf(offset int64, format string, args ...interface{}) error {
	return &FormatError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// IsFormatError returns true if err, or its cause, is a *FormatError.
func IsFormatError(err error) bool {
	_, ok := errors.Cause(err).(*FormatError)
	return ok
}

// Header is the fixed container header.
type Header struct {
	Magic     uint32
	Version   uint32
	CellCount uint32
}

func (h Header) appendTo(dst []byte) []byte {
	var tmp [headerSize]byte
	binary.LittleEndian.PutUint32(tmp[0:], h.Magic)
	binary.LittleEndian.PutUint32(tmp[4:], h.Version)
	binary.LittleEndian.PutUint32(tmp[8:], h.CellCount)
	return append(dst, tmp[:]...)
}

func parseHeader(p []byte) (Header, error) {
	if len(p) < headerSize {
		return Header{}, formatErrorf(0, "header truncated to %d bytes", len(p))
	}

	h := Header{
		Magic:     binary.LittleEndian.Uint32(p[0:]),
		Version:   binary.LittleEndian.Uint32(p[4:]),
		CellCount: binary.LittleEndian.Uint32(p[8:]),
	}
	if h.Magic != Magic {
		return h, formatErrorf(0, "bad magic %d", h.Magic)
	}
	if h.Version != FormatVersion {
		return h, formatErrorf(4, "unsupported format version %d", h.Version)
	}
	return h, nil
}

package scgex

import (
	"encoding/binary"
	"math"
)

// Entry is a single non-zero expression value.
type Entry struct {
	Cell  uint32  // index into the filtered cell set
	Value float32 // expression value
}

// Record is the sparse expression vector of one gene.
type Record struct {
	GeneID     string
	GeneSymbol string
	Entries    []Entry // in strictly increasing Cell order
}

// Size returns the record length as stored in its length prefix, i.e. the number
// of bytes following the prefix.
func (r *Record) Size() int {
	return recordSize(len(r.GeneID), len(r.GeneSymbol), len(r.Entries))
}

func recordSize(idLen, symLen, n int) int {
	return 2 + idLen + 2 + symLen + 4 + n*8
}

// AppendRecord appends the encoded record, including its length prefix, to dst.
func AppendRecord(dst []byte, rec *Record) ([]byte, error) {
	if len(rec.GeneID) > math.MaxUint16 || len(rec.GeneSymbol) > math.MaxUint16 {
		return dst, errFieldTooLong
	}

	var tmp [8]byte

	binary.LittleEndian.PutUint32(tmp[:], uint32(rec.Size()))
	dst = append(dst, tmp[:4]...)

	binary.LittleEndian.PutUint16(tmp[:], uint16(len(rec.GeneID)))
	dst = append(dst, tmp[:2]...)
	dst = append(dst, rec.GeneID...)

	binary.LittleEndian.PutUint16(tmp[:], uint16(len(rec.GeneSymbol)))
	dst = append(dst, tmp[:2]...)
	dst = append(dst, rec.GeneSymbol...)

	binary.LittleEndian.PutUint32(tmp[:], uint32(len(rec.Entries)))
	dst = append(dst, tmp[:4]...)

	for _, e := range rec.Entries {
		if e.Cell >= maxCellIndex {
			return dst, errCellIndexRange
		}
		binary.LittleEndian.PutUint32(tmp[0:], math.Float32bits(float32(e.Cell)))
		binary.LittleEndian.PutUint32(tmp[4:], math.Float32bits(e.Value))
		dst = append(dst, tmp[:8]...)
	}
	return dst, nil
}

// decodeNames parses the gene id and symbol from a record body and returns the
// number of bytes consumed. The offset is only used for error reporting.
func decodeNames(body []byte, offset int64) (id, sym string, n int, err error) {
	if len(body) < 2 {
		return "", "", 0, formatErrorf(offset, "record too short for gene id length")
	}
	idLen := int(binary.LittleEndian.Uint16(body))
	n = 2
	if len(body) < n+idLen+2 {
		return "", "", 0, formatErrorf(offset, "gene id of %d bytes overruns record", idLen)
	}
	id = string(body[n : n+idLen])
	n += idLen

	symLen := int(binary.LittleEndian.Uint16(body[n:]))
	n += 2
	if len(body) < n+symLen {
		return "", "", 0, formatErrorf(offset, "gene symbol of %d bytes overruns record", symLen)
	}
	sym = string(body[n : n+symLen])
	n += symLen

	return id, sym, n, nil
}

// decodeRecord fully decodes a record body (everything after the length prefix).
func decodeRecord(body []byte, offset int64) (*Record, error) {
	id, sym, n, err := decodeNames(body, offset)
	if err != nil {
		return nil, err
	}

	if len(body) < n+4 {
		return nil, formatErrorf(offset, "record too short for value count")
	}
	count := int(binary.LittleEndian.Uint32(body[n:]))
	n += 4

	if want := recordSize(len(id), len(sym), count); want != len(body) {
		return nil, formatErrorf(offset, "record length %d does not match computed length %d", len(body), want)
	}

	rec := &Record{
		GeneID:     id,
		GeneSymbol: sym,
		Entries:    make([]Entry, count),
	}
	for i := range rec.Entries {
		cell := math.Float32frombits(binary.LittleEndian.Uint32(body[n:]))
		rec.Entries[i] = Entry{
			Cell:  uint32(cell),
			Value: math.Float32frombits(binary.LittleEndian.Uint32(body[n+4:])),
		}
		n += 8
	}
	return rec, nil
}

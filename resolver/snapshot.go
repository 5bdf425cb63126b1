package resolver

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/colinmarc/cdb"
	"github.com/pkg/errors"
)

// Snapshot key layout:
//
//	"o"            -> organism
//	"n"            -> number of genes (uvarint)
//	"g:<ordinal>"  -> gene row (fields joined by \x1f, lists by \x1e)
//	"<t>:<spell>"  -> ordinal (4 bytes, LE) for tier t in {p,v,a}
const (
	fieldSep = "\x1f"
	listSep  = "\x1e"
)

var tierPrefix = [numTiers]string{"p:", "v:", "a:"}

var errBadSnapshot = errors.New("resolver: corrupt snapshot")

// WriteSnapshot persists an index as a constant database at path, so other
// processes can resolve identifiers without parsing the reference table.
func WriteSnapshot(path string, x *Index) error {
	w, err := cdb.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating snapshot")
	}

	if err := writeSnapshot(w, x); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func writeSnapshot(w *cdb.Writer, x *Index) error {
	if err := w.Put([]byte("o"), []byte(x.organism)); err != nil {
		return err
	}

	tmp := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(tmp, uint64(len(x.genes)))
	if err := w.Put([]byte("n"), tmp[:n]); err != nil {
		return err
	}

	for i, row := range x.rows {
		if err := w.Put(geneKey(uint32(i+1)), encodeRow(row)); err != nil {
			return err
		}
	}

	for t, m := range x.tiers {
		for spelling, id := range m {
			binary.LittleEndian.PutUint32(tmp, x.byID[id].Index)
			if err := w.Put([]byte(tierPrefix[t]+spelling), tmp[:4]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Snapshot resolves identifiers against a persisted index without loading it
// into memory.
type Snapshot struct {
	db *cdb.CDB
}

// OpenSnapshot opens a snapshot written by WriteSnapshot.
func OpenSnapshot(path string) (*Snapshot, error) {
	db, err := cdb.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening snapshot")
	}
	return &Snapshot{db: db}, nil
}

// Close closes the snapshot.
func (s *Snapshot) Close() error { return s.db.Close() }

// Organism returns the organism name the snapshot was built for.
func (s *Snapshot) Organism() (string, error) {
	v, err := s.db.Get([]byte("o"))
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Resolve behaves like Index.Resolve.
func (s *Snapshot) Resolve(raw string) (*Gene, bool, error) {
	tokens := Tokens(raw)
	for _, prefix := range tierPrefix {
		for _, tok := range tokens {
			v, err := s.db.Get([]byte(prefix + tok))
			if err != nil {
				return nil, false, err
			}
			if v == nil {
				continue
			}
			if len(v) != 4 {
				return nil, false, errBadSnapshot
			}

			gene, err := s.ByOrdinal(binary.LittleEndian.Uint32(v))
			if err != nil {
				return nil, false, err
			}
			return gene, true, nil
		}
	}
	return nil, false, nil
}

// ByOrdinal returns the gene with the given ordinal.
func (s *Snapshot) ByOrdinal(n uint32) (*Gene, error) {
	row, err := s.row(n)
	if err != nil {
		return nil, err
	}
	return &Gene{
		Index:   n,
		ID:      row.ID,
		Symbol:  row.Symbol,
		Ensembl: row.Ensembl,
		RefSeq:  strings.Join(row.RefSeq, ","),
		NCBI:    strings.Join(row.NCBI, ","),
	}, nil
}

// Load reconstructs the full in-memory index.
func (s *Snapshot) Load() (*Index, error) {
	organism, err := s.Organism()
	if err != nil {
		return nil, err
	}

	v, err := s.db.Get([]byte("n"))
	if err != nil {
		return nil, err
	}
	count, n := binary.Uvarint(v)
	if n <= 0 {
		return nil, errBadSnapshot
	}

	rows := make([]Row, 0, int(count))
	for i := uint64(1); i <= count; i++ {
		row, err := s.row(uint32(i))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return Build(organism, rows)
}

func (s *Snapshot) row(n uint32) (Row, error) {
	v, err := s.db.Get(geneKey(n))
	if err != nil {
		return Row{}, err
	}
	if v == nil {
		return Row{}, errors.Errorf("resolver: snapshot has no gene %d", n)
	}
	return decodeRow(string(v))
}

func geneKey(n uint32) []byte {
	return strconv.AppendUint([]byte("g:"), uint64(n), 10)
}

func encodeRow(row Row) []byte {
	return []byte(strings.Join([]string{
		row.ID,
		row.Symbol,
		row.Ensembl,
		strings.Join(row.RefSeq, listSep),
		strings.Join(row.NCBI, listSep),
		strings.Join(row.Previous, listSep),
		strings.Join(row.Aliases, listSep),
	}, fieldSep))
}

func decodeRow(s string) (Row, error) {
	ff := strings.Split(s, fieldSep)
	if len(ff) != 7 {
		return Row{}, errBadSnapshot
	}

	list := func(s string) []string {
		if s == "" {
			return nil
		}
		return strings.Split(s, listSep)
	}
	return Row{
		ID:       ff[0],
		Symbol:   ff[1],
		Ensembl:  ff[2],
		RefSeq:   list(ff[3]),
		NCBI:     list(ff[4]),
		Previous: list(ff[5]),
		Aliases:  list(ff[6]),
	}, nil
}

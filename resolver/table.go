package resolver

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Columns names the reference table columns. ID and Symbol are required, all
// other columns are optional.
type Columns struct {
	ID       string
	Symbol   string
	Ensembl  string
	RefSeq   string
	NCBI     string
	Previous string
	Aliases  string

	// ListSep separates multi-valued cells. Default: ",".
	ListSep string
}

// HumanColumns matches the HGNC custom download.
var HumanColumns = Columns{
	ID:       "HGNC ID",
	Symbol:   "Approved symbol",
	Ensembl:  "Ensembl gene ID",
	RefSeq:   "RefSeq IDs",
	NCBI:     "NCBI Gene ID",
	Previous: "Previous symbols",
	Aliases:  "Alias symbols",
}

// MouseColumns matches an MGI marker table exported with HGNC-style lists.
var MouseColumns = Columns{
	ID:       "MGI Accession ID",
	Symbol:   "Marker Symbol",
	Ensembl:  "Ensembl Gene ID",
	RefSeq:   "RefSeq IDs",
	NCBI:     "Entrez Gene ID",
	Previous: "Previous symbols",
	Aliases:  "Synonyms",
}

// ReadTable parses a tab-separated reference table with a header line.
func ReadTable(r io.Reader, cols Columns) ([]Row, error) {
	sep := cols.ListSep
	if sep == "" {
		sep = ","
	}

	c := csv.NewReader(r)
	c.Comma = '\t'
	c.LazyQuotes = true
	c.FieldsPerRecord = -1
	c.ReuseRecord = true

	header, err := c.Read()
	if err == io.EOF {
		return nil, errors.New("resolver: reference table is empty")
	} else if err != nil {
		return nil, errors.Wrap(err, "reading reference header")
	}

	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(name)] = i
	}

	lookup := func(name string, required bool) (int, error) {
		if name == "" && !required {
			return -1, nil
		}
		i, ok := pos[name]
		if !ok && required {
			return -1, errors.Errorf("resolver: reference table has no %q column", name)
		} else if !ok {
			return -1, nil
		}
		return i, nil
	}

	var idx [7]int
	for i, col := range []struct {
		name     string
		required bool
	}{
		{cols.ID, true},
		{cols.Symbol, true},
		{cols.Ensembl, false},
		{cols.RefSeq, false},
		{cols.NCBI, false},
		{cols.Previous, false},
		{cols.Aliases, false},
	} {
		if idx[i], err = lookup(col.name, col.required); err != nil {
			return nil, err
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := c.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "reading reference line %d", line)
		}

		field := func(i int) string {
			if i < 0 || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		list := func(i int) []string {
			if s := field(i); s != "" {
				return strings.Split(s, sep)
			}
			return nil
		}

		rows = append(rows, Row{
			ID:       field(idx[0]),
			Symbol:   field(idx[1]),
			Ensembl:  field(idx[2]),
			RefSeq:   list(idx[3]),
			NCBI:     list(idx[4]),
			Previous: list(idx[5]),
			Aliases:  list(idx[6]),
		})
	}
	return rows, nil
}

// LoadIndex reads a reference table and builds an index from it.
func LoadIndex(organism string, r io.Reader, cols Columns) (*Index, error) {
	rows, err := ReadTable(r, cols)
	if err != nil {
		return nil, err
	}
	return Build(organism, rows)
}

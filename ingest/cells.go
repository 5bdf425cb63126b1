package ingest

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"
)

const clusterColumn = "Cluster"

// ReadInUse returns the positions of the cells in the cell table that belong to
// one of the clusters listed in the cluster table. Both tables are
// tab-separated with a header row and must have a "Cluster" column.
func ReadInUse(cells, clusters io.Reader) ([]int, error) {
	keep := make(map[string]struct{})
	if err := readColumn(clusters, "cluster", func(_ int, v string) {
		keep[v] = struct{}{}
	}); err != nil {
		return nil, err
	}

	var inUse []int
	if err := readColumn(cells, "cell", func(i int, v string) {
		if _, ok := keep[v]; ok {
			inUse = append(inUse, i)
		}
	}); err != nil {
		return nil, err
	}
	return inUse, nil
}

func readColumn(r io.Reader, table string, fn func(int, string)) error {
	cr := newTSVReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return errors.Errorf("ingest: %s table is empty", table)
	} else if err != nil {
		return errors.Wrapf(err, "ingest: reading %s table", table)
	}

	col := -1
	for i, name := range header {
		if name == clusterColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return errors.Errorf("ingest: %s table has no %q column", table, clusterColumn)
	}

	for i := 0; ; i++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrapf(err, "ingest: reading %s table", table)
		}
		if col < len(rec) {
			fn(i, rec[col])
		}
	}
}

func newTSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

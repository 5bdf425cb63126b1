package scgex

// Gene names the identifiers written into a record.
type Gene struct {
	ID     string // Ensembl id, or the canonical id when no Ensembl id is known
	Symbol string
}

// Encode converts a dense expression vector into a sparse record. Values below
// minExpression are discarded. It returns false (dropped) when the vector sums to
// zero or when no value survives the threshold; dropped genes must not be written.
//
// The dense slice is not modified.
func Encode(gene Gene, dense []float64, minExpression float64) (*Record, bool) {
	var sum float64
	for _, v := range dense {
		sum += v
	}
	if sum == 0 {
		return nil, false
	}

	var entries []Entry
	for i, v := range dense {
		if !(v >= minExpression && v > 0) { // also rejects NaN
			continue
		}
		entries = append(entries, Entry{Cell: uint32(i), Value: float32(v)})
	}
	if len(entries) == 0 {
		return nil, false
	}

	return &Record{
		GeneID:     gene.ID,
		GeneSymbol: gene.Symbol,
		Entries:    entries,
	}, true
}

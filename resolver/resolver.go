package resolver

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Gene is a canonical gene record.
type Gene struct {
	Index   uint32 // 1-based, assigned in reference table order
	ID      string // organism-scoped canonical id, e.g. HGNC:5
	Symbol  string // current approved symbol
	Ensembl string // may be empty
	RefSeq  string // may be empty or comma-joined
	NCBI    string // may be empty
}

// RecordID returns the identifier written into expression records: the Ensembl
// id when known, the canonical id otherwise.
func (g *Gene) RecordID() string {
	if g.Ensembl != "" {
		return g.Ensembl
	}
	return g.ID
}

// Row is a single, parsed reference table row.
type Row struct {
	ID       string
	Symbol   string
	Ensembl  string
	RefSeq   []string
	NCBI     []string
	Previous []string
	Aliases  []string
}

// tier is one of the three lookup tables, in order of precedence.
type tier int

const (
	tierPrimary tier = iota
	tierPrevious
	tierAlias
	numTiers
)

// Index resolves arbitrary gene identifiers of one organism to canonical genes.
// An Index is immutable once built and safe for concurrent use.
type Index struct {
	organism string
	genes    []*Gene         // by ordinal-1
	rows     []Row           // normalised source rows, by ordinal-1
	byID     map[string]*Gene
	tiers    [numTiers]map[string]string   // spelling -> canonical id
	shared   [numTiers]map[string]struct{} // spellings claimed by more than one gene
}

// Build creates an index from reference rows. Ordinals are assigned from 1 in
// row order. Canonical ids must be present and unique. When a spelling is
// claimed by more than one gene within a tier, the first gene wins; canonical
// ids always win within the primary tier.
func Build(organism string, rows []Row) (*Index, error) {
	x := &Index{
		organism: organism,
		genes:    make([]*Gene, 0, len(rows)),
		rows:     make([]Row, 0, len(rows)),
		byID:     make(map[string]*Gene, len(rows)),
	}
	for i := range x.tiers {
		x.tiers[i] = make(map[string]string)
		x.shared[i] = make(map[string]struct{})
	}

	for i, row := range rows {
		row = normRow(row)
		if row.ID == "" {
			return nil, errors.Errorf("resolver: row %d has no canonical id", i+1)
		}
		if _, ok := x.byID[row.ID]; ok {
			return nil, errors.Errorf("resolver: duplicate canonical id %q in row %d", row.ID, i+1)
		}

		gene := &Gene{
			Index:   uint32(len(x.genes) + 1),
			ID:      row.ID,
			Symbol:  row.Symbol,
			Ensembl: row.Ensembl,
			RefSeq:  strings.Join(row.RefSeq, ","),
			NCBI:    strings.Join(row.NCBI, ","),
		}
		x.genes = append(x.genes, gene)
		x.rows = append(x.rows, row)
		x.byID[row.ID] = gene
		x.tiers[tierPrimary][row.ID] = row.ID
	}

	for _, row := range x.rows {
		x.add(tierPrimary, row.ID, row.Symbol, row.Ensembl)
		x.add(tierPrimary, row.ID, row.RefSeq...)
		x.add(tierPrimary, row.ID, row.NCBI...)
		x.add(tierPrevious, row.ID, row.Previous...)
		x.add(tierAlias, row.ID, row.Aliases...)
	}
	return x, nil
}

func (x *Index) add(t tier, id string, spellings ...string) {
	m := x.tiers[t]
	for _, s := range spellings {
		if s == "" {
			continue
		}
		if owner, ok := m[s]; !ok {
			m[s] = id
		} else if owner != id {
			x.shared[t][s] = struct{}{}
		}
	}
}

// Organism returns the organism name the index was built for.
func (x *Index) Organism() string { return x.organism }

// Len returns the number of canonical genes.
func (x *Index) Len() int { return len(x.genes) }

// Genes returns all genes in ordinal order. The result must not be modified.
func (x *Index) Genes() []*Gene { return x.genes }

// Gene returns the gene for a canonical id.
func (x *Index) Gene(id string) (*Gene, bool) {
	g, ok := x.byID[id]
	return g, ok
}

// ByOrdinal returns the gene with the given 1-based ordinal.
func (x *Index) ByOrdinal(n uint32) (*Gene, bool) {
	if n < 1 || int(n) > len(x.genes) {
		return nil, false
	}
	return x.genes[n-1], true
}

// Resolve maps a raw, possibly semicolon-joined, identifier to a canonical gene.
// Each lookup tier is tried against all tokens before moving on to the next one,
// so a primary match on any token beats a previous-symbol match on an earlier
// token. It returns false if the identifier is unknown.
func (x *Index) Resolve(raw string) (*Gene, bool) {
	gene, _, ok := x.lookup(raw)
	return gene, ok
}

// Ambiguous returns true if the spelling that resolves raw is claimed by more
// than one gene, in which case Resolve returns the first of them.
func (x *Index) Ambiguous(raw string) bool {
	_, shared, _ := x.lookup(raw)
	return shared
}

func (x *Index) lookup(raw string) (*Gene, bool, bool) {
	tokens := Tokens(raw)
	for t, m := range x.tiers {
		for _, tok := range tokens {
			if id, ok := m[tok]; ok {
				_, shared := x.shared[t][tok]
				return x.byID[id], shared, true
			}
		}
	}
	return nil, false, false
}

// Tokens splits a raw row identifier into its trimmed, non-empty candidates.
func Tokens(raw string) []string {
	parts := strings.Split(raw, ";")
	tokens := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			tokens = append(tokens, s)
		}
	}
	return tokens
}

// StripVersion removes an Ensembl version suffix, e.g. ENSG00000121410.12.
func StripVersion(id string) string {
	if i := strings.IndexByte(id, '.'); i > -1 {
		return id[:i]
	}
	return id
}

func normRow(row Row) Row {
	return Row{
		ID:       strings.TrimSpace(row.ID),
		Symbol:   strings.TrimSpace(row.Symbol),
		Ensembl:  StripVersion(strings.TrimSpace(row.Ensembl)),
		RefSeq:   normList(row.RefSeq),
		NCBI:     normList(row.NCBI),
		Previous: normList(row.Previous),
		Aliases:  normList(row.Aliases),
	}
}

func normList(vv []string) []string {
	var res []string
	for _, v := range vv {
		if v = strings.TrimSpace(v); v != "" {
			res = append(res, v)
		}
	}
	return res
}

// --------------------------------------------------------------------

// Registry holds one index per organism.
type Registry struct {
	indexes map[string]*Index
}

// NewRegistry creates a registry from the given indexes.
func NewRegistry(indexes ...*Index) (*Registry, error) {
	r := &Registry{indexes: make(map[string]*Index, len(indexes))}
	for _, x := range indexes {
		if err := r.Add(x); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers an index under its organism.
func (r *Registry) Add(x *Index) error {
	key := strings.ToLower(x.Organism())
	if _, ok := r.indexes[key]; ok {
		return errors.Errorf("resolver: organism %q already registered", x.Organism())
	}
	r.indexes[key] = x
	return nil
}

// Organisms returns the registered organism names, sorted.
func (r *Registry) Organisms() []string {
	names := make([]string, 0, len(r.indexes))
	for _, x := range r.indexes {
		names = append(names, x.Organism())
	}
	sort.Strings(names)
	return names
}

// Get returns the index for an organism; names are case-insensitive.
func (r *Registry) Get(organism string) (*Index, bool) {
	x, ok := r.indexes[strings.ToLower(organism)]
	return x, ok
}

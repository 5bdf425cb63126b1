package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/bsm/scgex"
	"github.com/bsm/scgex/locator"
	"github.com/bsm/scgex/resolver"
	"github.com/pkg/errors"
)

// Entry is a catalog row: the location of one record, keyed by the canonical
// gene it belongs to.
type Entry struct {
	Ordinal    uint32
	GeneID     string // as stored in the record
	GeneSymbol string
	File       string // container base name
	Offset     int64
	Size       uint32
}

// FileError reports a container which could not be indexed.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Err.Error() }

// Catalog indexes the given containers in parallel and maps every record back
// to its canonical gene. Ordinals known from a build (see Stats.Ordinals) are
// used as they are; other records are resolved from their gene id, and their
// symbol when the id is shared by several genes. Files that fail to index are
// reported and skipped, records that cannot be mapped are logged and skipped.
func (b *Builder) Catalog(ctx context.Context, files []string, known map[string][]uint32) ([]Entry, []FileError) {
	log := b.o.Logger

	var entries []Entry
	var failed []FileError

	for _, fx := range scgex.IndexFiles(ctx, files, b.o.Concurrency) {
		if fx.Err != nil {
			log.Warnf("skipping %s: %v", fx.Path, fx.Err)
			failed = append(failed, FileError{Path: fx.Path, Err: fx.Err})
			continue
		}

		name := filepath.Base(fx.Path)
		ordinals, ok := known[fx.Path]
		if ok && len(ordinals) != len(fx.Entries) {
			log.Warnf("%s: holds %d records, %d were written", name, len(fx.Entries), len(ordinals))
			ordinals = nil
		}

		for i, ie := range fx.Entries {
			var ordinal uint32
			if ordinals != nil {
				ordinal = ordinals[i]
			} else if gene, ok := b.resolveRecord(ie); ok {
				ordinal = gene.Index
			} else {
				log.Warnf("%s: record %s (%s) at %d cannot be mapped to a single gene", name, ie.GeneID, ie.GeneSymbol, ie.Offset)
				continue
			}

			entries = append(entries, Entry{
				Ordinal:    ordinal,
				GeneID:     ie.GeneID,
				GeneSymbol: ie.GeneSymbol,
				File:       name,
				Offset:     ie.Offset,
				Size:       ie.Size,
			})
		}
		log.Debugf("indexed %d records in %s", len(fx.Entries), name)
	}
	return entries, failed
}

func (b *Builder) resolveRecord(ie scgex.IndexEntry) (*resolver.Gene, bool) {
	gene, ok := b.idx.Resolve(ie.GeneID)
	if !ok || !b.idx.Ambiguous(ie.GeneID) {
		return gene, ok
	}

	// records carry the symbol of the gene they were written for
	if gene, ok = b.idx.Resolve(ie.GeneSymbol); ok && !b.idx.Ambiguous(ie.GeneSymbol) && gene.RecordID() == ie.GeneID {
		return gene, true
	}
	return nil, false
}

var catalogHeader = []string{"ordinal", "gene_id", "gene_symbol", "file", "offset", "size"}

// WriteCatalog writes entries as a tab-separated table with a header row.
func WriteCatalog(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(catalogHeader); err != nil {
		return err
	}

	row := make([]string, len(catalogHeader))
	for _, e := range entries {
		row[0] = strconv.FormatUint(uint64(e.Ordinal), 10)
		row[1] = e.GeneID
		row[2] = e.GeneSymbol
		row[3] = e.File
		row[4] = strconv.FormatInt(e.Offset, 10)
		row[5] = strconv.FormatUint(uint64(e.Size), 10)
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteLocators writes a locator table keyed by gene ordinal. When several
// records map to the same gene, the last one wins.
func WriteLocators(w io.Writer, entries []Entry, o *locator.WriterOptions) error {
	latest := make(map[uint32]int, len(entries))
	for i, e := range entries {
		latest[e.Ordinal] = i
	}

	ordinals := make([]uint32, 0, len(latest))
	for n := range latest {
		ordinals = append(ordinals, n)
	}
	sort.Slice(ordinals, func(i, j int) bool { return ordinals[i] < ordinals[j] })

	lw := locator.NewWriter(w, o)
	for _, n := range ordinals {
		e := entries[latest[n]]
		if err := lw.Append(n, &locator.Locator{
			File:       e.File,
			Offset:     e.Offset,
			Size:       e.Size,
			GeneID:     e.GeneID,
			GeneSymbol: e.GeneSymbol,
		}); err != nil {
			return errors.Wrapf(err, "ingest: writing locator for gene %d", n)
		}
	}
	return lw.Close()
}

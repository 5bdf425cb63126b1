package ingest

import (
	"context"
	"io"
	"strconv"

	"github.com/bsm/scgex"
	"github.com/bsm/scgex/resolver"
	"github.com/pkg/errors"
)

const progressInterval = 1000

// Stats summarise a build run.
type Stats struct {
	Files      []string // container files, in block order
	Rows       int      // matrix rows read
	Accepted   int      // records written
	Rejected   int      // rows with no resolvable identifier
	Dropped    int      // resolved rows without expression
	Collisions []resolver.Collision

	// Ordinals holds, per container file, the gene ordinal of every record in
	// file order.
	Ordinals map[string][]uint32
}

// Builder turns dense expression matrices into containers.
type Builder struct {
	idx *resolver.Index
	o   *Options
}

// NewBuilder inits a builder resolving identifiers through idx.
func NewBuilder(idx *resolver.Index, o *Options) *Builder {
	return &Builder{idx: idx, o: o.norm()}
}

// Build reads a tab-separated matrix with a header row, one gene per row and
// one cell per column after the identifier, and writes containers into dir.
// Only the matrix columns listed in inUse are kept and renumbered in inUse
// order; a nil inUse keeps all cells.
func (b *Builder) Build(ctx context.Context, matrix io.Reader, inUse []int, dir string) (*Stats, error) {
	log := b.o.Logger
	cr := newTSVReader(matrix)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("ingest: matrix is empty")
	} else if err != nil {
		return nil, errors.Wrap(err, "ingest: reading matrix header")
	}
	numCols := len(header)
	if numCols < 2 {
		return nil, errors.New("ingest: matrix has no cell columns")
	}

	if inUse == nil {
		inUse = make([]int, numCols-1)
		for i := range inUse {
			inUse[i] = i
		}
	}
	for _, c := range inUse {
		if c < 0 || c >= numCols-1 {
			return nil, errors.Errorf("ingest: cell %d out of range for %d matrix cells", c, numCols-1)
		}
	}

	w, err := scgex.NewWriter(dir, uint32(len(inUse)), &scgex.WriterOptions{
		MaxRecords:  b.o.MaxRecords,
		FilePattern: b.o.FilePattern,
	})
	if err != nil {
		return nil, err
	}
	log.Infof("building containers in %s for %d cells", dir, len(inUse))

	stats := &Stats{Ordinals: make(map[string][]uint32)}
	var pending []uint32
	collisions := resolver.NewCollisions()
	dense := make([]float64, len(inUse))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "ingest: reading matrix row %d", stats.Rows+1)
		}
		stats.Rows++

		if len(rec) != numCols {
			return nil, errors.Errorf("ingest: matrix row %d has %d columns, expected %d", stats.Rows, len(rec), numCols)
		}
		if stats.Rows%progressInterval == 0 {
			log.Debugf("processed %d rows", stats.Rows)
		}

		raw := rec[0]
		gene, ok := b.idx.Resolve(raw)
		if !ok {
			log.Debugf("reject, unknown gene %q", raw)
			stats.Rejected++
			continue
		}

		for i, c := range inUse {
			v, err := strconv.ParseFloat(rec[c+1], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "ingest: matrix row %d, cell %d", stats.Rows, c)
			}
			dense[i] = v
		}

		record, ok := scgex.Encode(scgex.Gene{ID: gene.RecordID(), Symbol: gene.Symbol}, dense, b.o.MinExpression)
		if !ok {
			stats.Dropped++
			continue
		}

		if col, ok := collisions.Observe(raw, gene); ok {
			log.Warnf("collision: %s", col)
		}

		numFiles := len(w.Files())
		if err := w.Append(record); err != nil {
			return nil, errors.Wrapf(err, "ingest: appending %s", gene.ID)
		}
		pending = append(pending, gene.Index)
		if files := w.Files(); len(files) > numFiles {
			pending = stats.flushed(log, files, pending)
		}
		stats.Accepted++
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	if len(pending) != 0 {
		stats.flushed(log, w.Files(), pending)
	}

	stats.Files = w.Files()
	stats.Collisions = collisions.All()
	log.Infof("read %d rows: %d accepted, %d rejected, %d dropped, %d collisions, %d files",
		stats.Rows, stats.Accepted, stats.Rejected, stats.Dropped, len(stats.Collisions), len(stats.Files))
	return stats, nil
}

// flushed assigns the ordinals of the records in the most recently written
// file and returns an empty pending list.
func (s *Stats) flushed(log Logger, files []string, ordinals []uint32) []uint32 {
	name := files[len(files)-1]
	s.Ordinals[name] = append([]uint32(nil), ordinals...)
	log.Infof("block %d with %d records written to %s", len(files), len(ordinals), name)
	return ordinals[:0]
}

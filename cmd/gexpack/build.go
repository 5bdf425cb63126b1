package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bsm/scgex"
	"github.com/bsm/scgex/ingest"
	"github.com/bsm/scgex/locator"
	"github.com/spf13/cobra"
)

const (
	catalogFile = "catalog.tsv"
	locatorFile = "genes.loc"
)

func newBuildCommand(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build containers, catalog and locator table from an expression matrix.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			matrix, _ := flags.GetString("matrix")
			cells, _ := flags.GetString("cells")
			clusters, _ := flags.GetString("clusters")
			out, _ := flags.GetString("out")
			minExp, _ := flags.GetFloat64("min-exp")
			maxRecords, _ := flags.GetInt("max-records")
			concurrency, _ := flags.GetInt("concurrency")

			if matrix == "" || out == "" {
				return fmt.Errorf("--matrix and --out are required")
			}
			if !(minExp > 0) {
				return fmt.Errorf("--min-exp must be positive")
			}

			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			idx, err := loadIndex(flags)
			if err != nil {
				return err
			}
			log.Infof("loaded %d %s genes", idx.Len(), idx.Organism())

			var inUse []int
			if cells != "" || clusters != "" {
				if inUse, err = readInUse(cells, clusters); err != nil {
					return err
				}
				log.Infof("%d cells in use", len(inUse))
			}

			rc, err := ingest.Open(matrix)
			if err != nil {
				return err
			}
			defer rc.Close()

			b := ingest.NewBuilder(idx, &ingest.Options{
				MinExpression: minExp,
				MaxRecords:    maxRecords,
				Concurrency:   concurrency,
				Logger:        log,
			})

			ctx := context.Background()
			stats, err := b.Build(ctx, rc, inUse, out)
			if err != nil {
				return err
			}

			entries, failed := b.Catalog(ctx, stats.Files, stats.Ordinals)
			if len(failed) != 0 {
				return failed[0]
			}
			if err := exportCatalog(out, entries); err != nil {
				return err
			}

			fmt.Fprintf(stdout, "%d rows, %d accepted, %d rejected, %d dropped, %d collisions, %d files\n",
				stats.Rows, stats.Accepted, stats.Rejected, stats.Dropped, len(stats.Collisions), len(stats.Files))
			return nil
		},
	}

	flags := cmd.Flags()
	addReferenceFlags(flags)
	flags.StringP("matrix", "m", "", "Dense expression matrix (TSV, optionally gzipped).")
	flags.String("cells", "", "Cell table with a Cluster column.")
	flags.String("clusters", "", "Cluster table listing the clusters to keep.")
	flags.StringP("out", "o", "", "Output directory.")
	flags.Float64("min-exp", scgex.DefaultMinExpression, "Minimum expression value to keep.")
	flags.Int("max-records", 2048, "Maximum number of records per container.")
	flags.Int("concurrency", 0, "Number of containers indexed in parallel. Default: number of CPUs.")
	return cmd
}

func readInUse(cells, clusters string) ([]int, error) {
	if cells == "" || clusters == "" {
		return nil, fmt.Errorf("--cells and --clusters must be given together")
	}

	cr, err := ingest.Open(cells)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	lr, err := ingest.Open(clusters)
	if err != nil {
		return nil, err
	}
	defer lr.Close()

	return ingest.ReadInUse(cr, lr)
}

// exportCatalog writes the catalog TSV and the locator table into dir.
func exportCatalog(dir string, entries []ingest.Entry) error {
	if err := createFile(filepath.Join(dir, catalogFile), func(w io.Writer) error {
		return ingest.WriteCatalog(w, entries)
	}); err != nil {
		return err
	}
	return createFile(filepath.Join(dir, locatorFile), func(w io.Writer) error {
		return ingest.WriteLocators(w, entries, &locator.WriterOptions{})
	})
}

func createFile(name string, fn func(io.Writer) error) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return err
	}
	return f.Close()
}

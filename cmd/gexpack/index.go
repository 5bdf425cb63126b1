package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bsm/scgex/ingest"
	"github.com/spf13/cobra"
)

func newIndexCommand(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [flags] DIR",
		Short: "Rebuild catalog and locator table from existing containers.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			concurrency, _ := flags.GetInt("concurrency")
			pattern, _ := flags.GetString("pattern")

			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			idx, err := loadIndex(flags)
			if err != nil {
				return err
			}

			files, err := containerFiles(args[0], pattern)
			if err != nil {
				return err
			}

			b := ingest.NewBuilder(idx, &ingest.Options{Concurrency: concurrency, Logger: log})
			entries, failed := b.Catalog(context.Background(), files, nil)
			if err := exportCatalog(args[0], entries); err != nil {
				return err
			}

			fmt.Fprintf(stdout, "%d records in %d files, %d failed\n", len(entries), len(files)-len(failed), len(failed))
			return nil
		},
	}

	flags := cmd.Flags()
	addReferenceFlags(flags)
	flags.String("pattern", "gex_*.bin", "Glob matching container files within DIR.")
	flags.Int("concurrency", 0, "Number of containers indexed in parallel. Default: number of CPUs.")
	return cmd
}

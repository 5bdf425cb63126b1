package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/bsm/scgex"
	"github.com/bsm/scgex/locator"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newQueryCommand(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [flags] DIR GENE...",
		Short: "Print the expression record of one or more genes.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]

			idx, err := loadIndex(cmd.Flags())
			if err != nil {
				return err
			}

			lf, err := locator.Open(filepath.Join(dir, locatorFile))
			if err != nil {
				return err
			}
			defer lf.Close()

			for _, raw := range args[1:] {
				gene, ok := idx.Resolve(raw)
				if !ok {
					fmt.Fprintf(stdout, "%s\tunknown gene\n", raw)
					continue
				}

				loc, err := lf.Get(gene.Index)
				if err == locator.ErrNotFound {
					fmt.Fprintf(stdout, "%s\t%s\tnot expressed\n", raw, gene.ID)
					continue
				} else if err != nil {
					return err
				}

				rec, err := scgex.ReadRecordAt(filepath.Join(dir, loc.File), loc.Offset, loc.Size)
				if err != nil {
					return errors.Wrapf(err, "reading %s", gene.ID)
				}

				fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\t%d cells\n", raw, gene.ID, rec.GeneID, rec.GeneSymbol, len(rec.Entries))
				for _, e := range rec.Entries {
					fmt.Fprintf(stdout, "\t%d\t%g\n", e.Cell, e.Value)
				}
			}
			return nil
		},
	}
	addReferenceFlags(cmd.Flags())
	return cmd
}

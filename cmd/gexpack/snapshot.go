package main

import (
	"fmt"
	"io"

	"github.com/bsm/scgex/resolver"
	"github.com/spf13/cobra"
)

func newSnapshotCommand(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot [flags] OUT",
		Short: "Write a resolver snapshot of a reference table.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex(cmd.Flags())
			if err != nil {
				return err
			}
			if err := resolver.WriteSnapshot(args[0], idx); err != nil {
				return err
			}

			fmt.Fprintf(stdout, "%d %s genes written to %s\n", idx.Len(), idx.Organism(), args[0])
			return nil
		},
	}
	addReferenceFlags(cmd.Flags())
	return cmd
}

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bsm/scgex/ingest"
	"github.com/bsm/scgex/resolver"
	"github.com/spf13/pflag"
)

func addReferenceFlags(flags *pflag.FlagSet) {
	flags.StringSliceP("reference", "r", nil, "Reference gene table (TSV, optionally gzipped) or resolver snapshot (.cdb), as PATH or ORGANISM=PATH. May be repeated.")
	flags.String("organism", "human", "Organism to resolve genes for; also the organism of references given without one.")
	flags.String("columns", "", "Reference table layout: hgnc or mgi. Default: derived from organism.")
}

func referenceColumns(name, organism string) (resolver.Columns, error) {
	if name == "" {
		name = "hgnc"
		if strings.EqualFold(organism, "mouse") {
			name = "mgi"
		}
	}

	switch strings.ToLower(name) {
	case "hgnc":
		return resolver.HumanColumns, nil
	case "mgi":
		return resolver.MouseColumns, nil
	}
	return resolver.Columns{}, fmt.Errorf("unknown reference table layout %q", name)
}

// splitReference splits ORGANISM=PATH; a prefix containing a path separator
// is part of the path.
func splitReference(ref, organism string) (string, string) {
	if i := strings.IndexByte(ref, '='); i > 0 && !strings.ContainsAny(ref[:i], `/\`) {
		return ref[:i], ref[i+1:]
	}
	return organism, ref
}

// loadRegistry loads every reference configured by the reference flags.
func loadRegistry(flags *pflag.FlagSet) (*resolver.Registry, error) {
	refs, _ := flags.GetStringSlice("reference")
	organism, _ := flags.GetString("organism")
	layout, _ := flags.GetString("columns")

	if len(refs) == 0 {
		return nil, fmt.Errorf("a reference is required")
	}

	reg, _ := resolver.NewRegistry()
	for _, ref := range refs {
		name, path := splitReference(ref, organism)

		idx, err := loadReference(name, path, layout)
		if err != nil {
			return nil, err
		}
		if err := reg.Add(idx); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func loadReference(organism, path, layout string) (*resolver.Index, error) {
	if filepath.Ext(path) == ".cdb" {
		snap, err := resolver.OpenSnapshot(path)
		if err != nil {
			return nil, err
		}
		defer snap.Close()

		return snap.Load()
	}

	cols, err := referenceColumns(layout, organism)
	if err != nil {
		return nil, err
	}

	rc, err := ingest.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return resolver.LoadIndex(organism, rc, cols)
}

// loadIndex returns the index of the selected organism. A single reference is
// used as it is unless --organism was given explicitly.
func loadIndex(flags *pflag.FlagSet) (*resolver.Index, error) {
	reg, err := loadRegistry(flags)
	if err != nil {
		return nil, err
	}

	organism, _ := flags.GetString("organism")
	if known := reg.Organisms(); len(known) == 1 && !isSet(flags, "organism") {
		organism = known[0]
	}

	idx, ok := reg.Get(organism)
	if !ok {
		return nil, fmt.Errorf("no reference for organism %q, have %s", organism, strings.Join(reg.Organisms(), ", "))
	}
	return idx, nil
}

// isSet returns true if a flag was given on the command line or through the
// environment or a config file.
func isSet(flags *pflag.FlagSet, name string) bool {
	f := flags.Lookup(name)
	return f != nil && (f.Changed || f.Value.String() != f.DefValue)
}

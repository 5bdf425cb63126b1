package ingest_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/bsm/scgex"
	"github.com/bsm/scgex/ingest"
	"github.com/bsm/scgex/resolver"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("Builder", func() {
	var dir string
	var logs *observer.ObservedLogs
	var subject *ingest.Builder

	BeforeEach(func() {
		var err error
		dir, err = ioutil.TempDir("", "scgex-ingest")
		Expect(err).NotTo(HaveOccurred())

		idx, err := seedIndex()
		Expect(err).NotTo(HaveOccurred())

		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		subject = ingest.NewBuilder(idx, &ingest.Options{
			MaxRecords: 2,
			Logger:     zap.New(core).Sugar(),
		})
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should build containers", func() {
		stats, err := subject.Build(ctx, strings.NewReader(seedMatrix), nil, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Rows).To(Equal(6))
		Expect(stats.Accepted).To(Equal(3))
		Expect(stats.Rejected).To(Equal(1))
		Expect(stats.Dropped).To(Equal(2))
		Expect(stats.Files).To(Equal([]string{
			filepath.Join(dir, "gex_1.bin"),
			filepath.Join(dir, "gex_2.bin"),
		}))

		f, err := scgex.Open(stats.Files[0])
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		Expect(f.CellCount()).To(Equal(uint32(4)))
		index, err := f.Index()
		Expect(err).NotTo(HaveOccurred())
		Expect(index).To(Equal([]scgex.IndexEntry{
			{GeneID: "ENSG00000121410", GeneSymbol: "A1BG", Offset: 12, Size: 43},
			{GeneID: "ENSG00000156006", GeneSymbol: "NAT2", Offset: 59, Size: 35},
		}))

		rec, err := f.ReadRecord(12, 43)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Entries).To(Equal([]scgex.Entry{{Cell: 1, Value: 2.5}, {Cell: 3, Value: 3}}))
	})

	It("should report collisions", func() {
		stats, err := subject.Build(ctx, strings.NewReader(seedMatrix), nil, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Collisions).To(HaveLen(1))
		Expect(stats.Collisions[0].Gene.ID).To(Equal("HGNC:5"))
		Expect(stats.Collisions[0].Second).To(Equal("NM_130786"))

		warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
		Expect(warnings).To(HaveLen(1))
		Expect(warnings[0].Message).To(HavePrefix("collision: HGNC:5 (A1BG)"))
		Expect(logs.FilterMessage("block 2 with 1 records written to " + filepath.Join(dir, "gex_2.bin")).Len()).To(Equal(1))
	})

	It("should not report collisions for dropped rows", func() {
		matrix := "gene\tc0\nA1BG\t0\nENSG00000121410\t5\n"
		stats, err := subject.Build(ctx, strings.NewReader(matrix), nil, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Accepted).To(Equal(1))
		Expect(stats.Dropped).To(Equal(1))
		Expect(stats.Collisions).To(BeEmpty())
		Expect(logs.FilterLevelExact(zapcore.WarnLevel).Len()).To(Equal(0))
	})

	It("should record ordinals per file", func() {
		stats, err := subject.Build(ctx, strings.NewReader(seedMatrix), nil, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Ordinals).To(Equal(map[string][]uint32{
			filepath.Join(dir, "gex_1.bin"): {1, 3},
			filepath.Join(dir, "gex_2.bin"): {1},
		}))
	})

	It("should keep cells in use", func() {
		stats, err := subject.Build(ctx, strings.NewReader(seedMatrix), []int{1, 3}, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Accepted).To(Equal(2))
		Expect(stats.Dropped).To(Equal(3))

		f, err := scgex.Open(stats.Files[0])
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()
		Expect(f.CellCount()).To(Equal(uint32(2)))

		index, err := f.Index()
		Expect(err).NotTo(HaveOccurred())
		Expect(index).To(HaveLen(2))

		rec, err := f.ReadRecord(index[0].Offset, index[0].Size)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Entries).To(Equal([]scgex.Entry{{Cell: 0, Value: 2.5}, {Cell: 1, Value: 3}}))
	})

	It("should reject bad input", func() {
		_, err := subject.Build(ctx, strings.NewReader(""), nil, dir)
		Expect(err).To(MatchError(`ingest: matrix is empty`))

		_, err = subject.Build(ctx, strings.NewReader("gene\n"), nil, dir)
		Expect(err).To(MatchError(`ingest: matrix has no cell columns`))

		_, err = subject.Build(ctx, strings.NewReader(seedMatrix), []int{4}, dir)
		Expect(err).To(MatchError(`ingest: cell 4 out of range for 4 matrix cells`))

		_, err = subject.Build(ctx, strings.NewReader("gene\tc0\tc1\nA1BG\t1\n"), nil, dir)
		Expect(err).To(MatchError(`ingest: matrix row 1 has 2 columns, expected 3`))

		_, err = subject.Build(ctx, strings.NewReader("gene\tc0\tc1\nA1BG\t1\tx\n"), nil, dir)
		Expect(err).To(MatchError(ContainSubstring(`ingest: matrix row 1, cell 1`)))
	})

	It("should stop when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := subject.Build(cctx, strings.NewReader(seedMatrix), nil, dir)
		Expect(err).To(Equal(context.Canceled))
	})

	Describe("Catalog", func() {
		var stats *ingest.Stats

		BeforeEach(func() {
			var err error
			stats, err = subject.Build(ctx, strings.NewReader(seedMatrix), nil, dir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should map records to genes", func() {
			entries, failed := subject.Catalog(ctx, stats.Files, stats.Ordinals)
			Expect(failed).To(BeEmpty())
			Expect(entries).To(Equal([]ingest.Entry{
				{Ordinal: 1, GeneID: "ENSG00000121410", GeneSymbol: "A1BG", File: "gex_1.bin", Offset: 12, Size: 43},
				{Ordinal: 3, GeneID: "ENSG00000156006", GeneSymbol: "NAT2", File: "gex_1.bin", Offset: 59, Size: 35},
				{Ordinal: 1, GeneID: "ENSG00000121410", GeneSymbol: "A1BG", File: "gex_2.bin", Offset: 12, Size: 35},
			}))
		})

		It("should isolate failing files", func() {
			missing := filepath.Join(dir, "gex_9.bin")
			entries, failed := subject.Catalog(ctx, append(stats.Files, missing), stats.Ordinals)
			Expect(entries).To(HaveLen(3))
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Path).To(Equal(missing))
			Expect(logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("skipping " + missing).Len()).To(Equal(1))
		})

		It("should skip records that do not resolve", func() {
			other, err := resolver.Build("human", []resolver.Row{{ID: "HGNC:7646", Symbol: "NAT2", Ensembl: "ENSG00000156006"}})
			Expect(err).NotTo(HaveOccurred())

			entries, failed := ingest.NewBuilder(other, nil).Catalog(ctx, stats.Files, nil)
			Expect(failed).To(BeEmpty())
			Expect(entries).To(Equal([]ingest.Entry{
				{Ordinal: 1, GeneID: "ENSG00000156006", GeneSymbol: "NAT2", File: "gex_1.bin", Offset: 59, Size: 35},
			}))
		})

		It("should resolve without known ordinals", func() {
			entries, failed := subject.Catalog(ctx, stats.Files, nil)
			Expect(failed).To(BeEmpty())
			Expect(entries).To(HaveLen(3))
			Expect(entries[1].Ordinal).To(Equal(uint32(3)))
		})

		It("should ignore known ordinals that do not match the file", func() {
			known := map[string][]uint32{stats.Files[0]: {4}}
			entries, failed := subject.Catalog(ctx, stats.Files, known)
			Expect(failed).To(BeEmpty())
			Expect(entries[0].Ordinal).To(Equal(uint32(1)))
			Expect(entries[1].Ordinal).To(Equal(uint32(3)))
		})
	})

	Describe("Catalog with shared Ensembl ids", func() {
		var shared *ingest.Builder

		BeforeEach(func() {
			idx, err := resolver.Build("mouse", []resolver.Row{
				{ID: "MGI:1", Symbol: "ONE", Ensembl: "ENSMUSG1"},
				{ID: "MGI:2", Symbol: "TWO", Ensembl: "ENSMUSG1"},
			})
			Expect(err).NotTo(HaveOccurred())

			var core zapcore.Core
			core, logs = observer.New(zapcore.DebugLevel)
			shared = ingest.NewBuilder(idx, &ingest.Options{Logger: zap.New(core).Sugar()})
		})

		expected := func() []ingest.Entry {
			return []ingest.Entry{
				{Ordinal: 2, GeneID: "ENSMUSG1", GeneSymbol: "TWO", File: "gex_1.bin", Offset: 12, Size: 27},
				{Ordinal: 1, GeneID: "ENSMUSG1", GeneSymbol: "ONE", File: "gex_1.bin", Offset: 43, Size: 27},
			}
		}

		It("should use the ordinals recorded by the build", func() {
			stats, err := shared.Build(ctx, strings.NewReader("gene\tc0\nTWO\t5\nONE\t3\n"), nil, dir)
			Expect(err).NotTo(HaveOccurred())

			entries, failed := shared.Catalog(ctx, stats.Files, stats.Ordinals)
			Expect(failed).To(BeEmpty())
			Expect(entries).To(Equal(expected()))
		})

		It("should disambiguate by symbol", func() {
			stats, err := shared.Build(ctx, strings.NewReader("gene\tc0\nTWO\t5\nONE\t3\n"), nil, dir)
			Expect(err).NotTo(HaveOccurred())

			entries, failed := shared.Catalog(ctx, stats.Files, nil)
			Expect(failed).To(BeEmpty())
			Expect(entries).To(Equal(expected()))
		})

		It("should skip records it cannot attribute", func() {
			w, err := scgex.NewWriter(dir, 1, nil)
			Expect(err).NotTo(HaveOccurred())
			rec, ok := scgex.Encode(scgex.Gene{ID: "ENSMUSG1", Symbol: "OTHER"}, []float64{5}, 0)
			Expect(ok).To(BeTrue())
			Expect(w.Append(rec)).To(Succeed())
			Expect(w.Close()).To(Succeed())

			entries, failed := shared.Catalog(ctx, w.Files(), nil)
			Expect(failed).To(BeEmpty())
			Expect(entries).To(BeEmpty())

			warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0].Message).To(ContainSubstring("record ENSMUSG1 (OTHER) at 12 cannot be mapped to a single gene"))
		})
	})
})

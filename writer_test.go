package scgex_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/bsm/scgex"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Block", func() {
	var subject *scgex.Block

	BeforeEach(func() {
		subject = scgex.NewBlock(100, 3)
	})

	It("should not write empty", func() {
		buf := new(bytes.Buffer)
		n, err := subject.WriteTo(buf)
		Expect(err).To(MatchError(scgex.ErrEmptyBlock))
		Expect(n).To(BeZero())
		Expect(buf.Len()).To(BeZero())
	})

	It("should write header and records", func() {
		Expect(subject.Append(seedRecord(0))).To(Succeed())
		Expect(subject.Append(seedRecord(1))).To(Succeed())
		Expect(subject.Len()).To(Equal(2))

		buf := new(bytes.Buffer)
		n, err := subject.WriteTo(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(buf.Len())))
		Expect(buf.Bytes()[:12]).To(Equal(rawHeader(42, 1, 100)))
		Expect(buf.Len()).To(Equal(12 + 4 + seedRecord(0).Size() + 4 + seedRecord(1).Size()))
	})

	It("should enforce limits", func() {
		for i := 0; i < 3; i++ {
			Expect(subject.Full()).To(BeFalse())
			Expect(subject.Append(seedRecord(i))).To(Succeed())
		}
		Expect(subject.Full()).To(BeTrue())
		Expect(subject.Append(seedRecord(3))).To(MatchError(`scgex: block is full`))
	})

	It("should not retain failed records", func() {
		Expect(subject.Append(seedRecord(0))).To(Succeed())
		Expect(subject.Append(&scgex.Record{Entries: []scgex.Entry{{Cell: 1 << 30}}})).NotTo(Succeed())
		Expect(subject.Len()).To(Equal(1))

		buf := new(bytes.Buffer)
		_, err := subject.WriteTo(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.Len()).To(Equal(12 + 4 + seedRecord(0).Size()))
	})

	It("should reset", func() {
		Expect(subject.Append(seedRecord(0))).To(Succeed())
		subject.Reset()
		Expect(subject.Len()).To(BeZero())
		Expect(subject.Full()).To(BeFalse())
	})
})

var _ = Describe("Writer", func() {
	var dir string
	var subject *scgex.Writer

	BeforeEach(func() {
		var err error
		dir, err = ioutil.TempDir("", "scgex-writer")
		Expect(err).NotTo(HaveOccurred())

		subject, err = scgex.NewWriter(filepath.Join(dir, "gex"), 100, &scgex.WriterOptions{MaxRecords: 4})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = subject.Close()
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should write nothing when empty", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(subject.Files()).To(BeEmpty())

		entries, err := ioutil.ReadDir(filepath.Join(dir, "gex"))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("should split records into blocks", func() {
		for i := 0; i < 10; i++ {
			Expect(subject.Append(seedRecord(i))).To(Succeed())
		}
		Expect(subject.Files()).To(HaveLen(2))
		Expect(subject.Pending()).To(Equal(2))

		Expect(subject.Close()).To(Succeed())
		Expect(subject.Files()).To(Equal([]string{
			filepath.Join(dir, "gex", "gex_1.bin"),
			filepath.Join(dir, "gex", "gex_2.bin"),
			filepath.Join(dir, "gex", "gex_3.bin"),
		}))

		entries, err := ioutil.ReadDir(filepath.Join(dir, "gex"))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(3))

		var counts []int
		for _, name := range subject.Files() {
			f, err := scgex.Open(name)
			Expect(err).NotTo(HaveOccurred())

			index, err := f.Index()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.CellCount()).To(Equal(uint32(100)))
			Expect(f.Close()).To(Succeed())
			counts = append(counts, len(index))
		}
		Expect(counts).To(Equal([]int{4, 4, 2}))
	})

	It("should keep record order across blocks", func() {
		for i := 0; i < 6; i++ {
			Expect(subject.Append(seedRecord(i))).To(Succeed())
		}
		Expect(subject.Close()).To(Succeed())

		var symbols []string
		for _, res := range scgex.IndexFiles(ctx, subject.Files(), 2) {
			Expect(res.Err).NotTo(HaveOccurred())
			for _, ent := range res.Entries {
				symbols = append(symbols, ent.GeneSymbol)
			}
		}
		Expect(symbols).To(Equal([]string{"SYM0", "SYM1", "SYM2", "SYM3", "SYM4", "SYM5"}))
	})

	It("should allow explicit flushes", func() {
		Expect(subject.Append(seedRecord(0))).To(Succeed())
		Expect(subject.Flush()).To(Succeed())
		Expect(subject.Flush()).To(Succeed())
		Expect(subject.Append(seedRecord(1))).To(Succeed())
		Expect(subject.Close()).To(Succeed())
		Expect(subject.Files()).To(HaveLen(2))
	})

	It("should prevent use after close", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(subject.Append(seedRecord(0))).To(MatchError(`scgex: writer is closed`))
		Expect(subject.Close()).To(MatchError(`scgex: writer is closed`))
	})

	It("should write readable files", func() {
		Expect(subject.Append(seedRecord(0))).To(Succeed())
		Expect(subject.Close()).To(Succeed())

		info, err := os.Stat(subject.Files()[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0644)))
	})
})

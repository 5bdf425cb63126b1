package ingest_test

import (
	"bytes"

	"github.com/bsm/scgex/ingest"
	"github.com/bsm/scgex/locator"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Catalog export", func() {
	entries := []ingest.Entry{
		{Ordinal: 1, GeneID: "ENSG00000121410", GeneSymbol: "A1BG", File: "gex_1.bin", Offset: 12, Size: 43},
		{Ordinal: 3, GeneID: "ENSG00000156006", GeneSymbol: "NAT2", File: "gex_1.bin", Offset: 59, Size: 35},
		{Ordinal: 1, GeneID: "ENSG00000121410", GeneSymbol: "A1BG", File: "gex_2.bin", Offset: 12, Size: 35},
	}

	It("should write TSV", func() {
		var buf bytes.Buffer
		Expect(ingest.WriteCatalog(&buf, entries)).To(Succeed())
		Expect(buf.String()).To(Equal("ordinal\tgene_id\tgene_symbol\tfile\toffset\tsize\n" +
			"1\tENSG00000121410\tA1BG\tgex_1.bin\t12\t43\n" +
			"3\tENSG00000156006\tNAT2\tgex_1.bin\t59\t35\n" +
			"1\tENSG00000121410\tA1BG\tgex_2.bin\t12\t35\n"))
	})

	It("should write locators", func() {
		var buf bytes.Buffer
		Expect(ingest.WriteLocators(&buf, entries, nil)).To(Succeed())

		r, err := locator.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		Expect(err).NotTo(HaveOccurred())

		Expect(r.Get(1)).To(Equal(&locator.Locator{
			File: "gex_2.bin", Offset: 12, Size: 35, GeneID: "ENSG00000121410", GeneSymbol: "A1BG",
		}))
		Expect(r.Get(3)).To(Equal(&locator.Locator{
			File: "gex_1.bin", Offset: 59, Size: 35, GeneID: "ENSG00000156006", GeneSymbol: "NAT2",
		}))
		_, err = r.Get(2)
		Expect(err).To(MatchError(locator.ErrNotFound))
	})
})

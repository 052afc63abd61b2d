package interchange_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zeonica-pnr/frontend"
	"github.com/sarchlab/zeonica-pnr/ioformat/interchange"
)

var _ = Describe("Reader", func() {
	It("walks a single-cell top module and reports it as top", func() {
		doc := &interchange.Document{
			Top: "top",
			Cells: map[string]interchange.CellNetlist{
				"top": {
					Name: "top",
					Insts: []interchange.CellInst{
						{Name: "u0", Type: "BUF", Ports: []interchange.PortInst{
							{Port: "I", IsSingleBit: true, Net: 1},
							{Port: "O", IsSingleBit: true, Net: 2},
						}},
					},
				},
			},
		}
		r := interchange.NewReader(doc)
		Expect(r.PostSynthesis()).To(BeTrue())

		seen := map[string]bool{}
		var topMod frontend.Module
		r.ForEachModule(func(name string, mod frontend.Module) {
			seen[name] = true
			if mod.IsTop() {
				topMod = mod
			}
		})
		Expect(seen).To(HaveKey("top"))
		Expect(topMod).NotTo(BeNil())

		cellCount := 0
		topMod.ForEachCell(func(instName string, cell frontend.CellInfo) {
			cellCount++
			Expect(cell.Type).To(Equal("BUF"))
			Expect(cell.PortConn).To(HaveKey("I"))
		})
		Expect(cellCount).To(Equal(1))
	})
})

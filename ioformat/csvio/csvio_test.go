package csvio_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zeonica-pnr/ioformat/csvio"
)

func validPadLine(name string) string {
	return strings.Join([]string{
		name, "A1", "LVCMOS", "8mA", "Fast", "0", "0",
		"False", "None", "None", "GND", "False", "Fast", "Low", "False",
	}, ",")
}

var _ = Describe("Read", func() {
	It("parses pad records and accepts a well-formed file", func() {
		csv := strings.Join([]string{
			"!PADS",
			validPadLine("IO_0"),
			validPadLine("IO_1"),
		}, "\n")

		c, err := csvio.Read(strings.NewReader(csv))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Pads).To(HaveLen(2))
		Expect(c.Pads[0].IOBName).To(Equal("IO_0"))
	})

	It("rejects an LVDS pad whose drive is not Undefined, at the exact line", func() {
		lines := []string{
			"!PADS",
			validPadLine("IO_0"),
			validPadLine("IO_1"),
			validPadLine("IO_2"),
			validPadLine("IO_3"),
			validPadLine("IO_4"),
			strings.Join([]string{
				"IO_5", "A2", "LVDS", "12mA", "Fast", "0", "0",
				"True", "None", "None", "GND", "False", "Fast", "Low", "False",
			}, ","),
		}
		csv := strings.Join(lines, "\n")

		_, err := csvio.Read(strings.NewReader(csv))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("line 7: LVDS requires drive = Undefined"))
	})

	It("rejects a Floating termination reference without differential = True", func() {
		lines := []string{
			"!PADS",
			strings.Join([]string{
				"IO_0", "A1", "LVCMOS", "8mA", "Fast", "0", "0",
				"False", "None", "None", "Floating", "False", "Fast", "Low", "False",
			}, ","),
		}
		_, err := csvio.Read(strings.NewReader(strings.Join(lines, "\n")))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("terminationReference = Floating requires differential = True"))
	})

	It("flags a pad referencing a bank that was never declared", func() {
		lines := []string{
			"!BANKS",
			"BANK1,3.3,",
			"!PADS",
			strings.Join([]string{
				"IO_0", "BANK2.A1", "LVCMOS", "8mA", "Fast", "0", "0",
				"False", "None", "None", "GND", "False", "Fast", "Low", "False",
			}, ","),
		}
		_, err := csvio.Read(strings.NewReader(strings.Join(lines, "\n")))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("undeclared bank"))
	})
})

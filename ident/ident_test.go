package ident_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zeonica-pnr/ident"
)

var _ = Describe("Table", func() {
	var t *ident.Table

	BeforeEach(func() {
		t = ident.NewTable()
	})

	It("returns None for the zero value", func() {
		Expect(ident.None).To(Equal(ident.ID(0)))
		Expect(t.StrOf(ident.None)).To(Equal(""))
	})

	It("is idempotent", func() {
		a := t.Intern("LUT4")
		b := t.Intern("LUT4")
		Expect(a).To(Equal(b))
		Expect(a).NotTo(Equal(ident.None))
	})

	It("is case sensitive", func() {
		a := t.Intern("clk")
		b := t.Intern("CLK")
		Expect(a).NotTo(Equal(b))
	})

	It("round-trips through StrOf", func() {
		id := t.Intern("carry_chain")
		Expect(t.StrOf(id)).To(Equal("carry_chain"))
	})

	It("assigns distinct monotonically increasing ids", func() {
		a := t.Intern("a")
		b := t.Intern("b")
		Expect(b).To(BeNumerically(">", a))
	})

	It("counts interned strings excluding the reserved slot", func() {
		t.Intern("a")
		t.Intern("b")
		t.Intern("a")
		Expect(t.Len()).To(Equal(2))
	})

	Describe("List", func() {
		It("compares equal paths", func() {
			l1 := ident.List{t.Intern("top"), t.Intern("adder")}
			l2 := ident.List{t.Intern("top"), t.Intern("adder")}
			Expect(l1.Equal(l2)).To(BeTrue())
		})

		It("renders dotted path names", func() {
			l := ident.List{t.Intern("top"), t.Intern("adder")}
			Expect(l.String(t)).To(Equal("top.adder"))
		})
	})
})

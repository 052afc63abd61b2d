package console_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/zeonica-pnr/console"
)

type fakeRuntime struct {
	evaluated []string
}

func (r *fakeRuntime) Eval(statement string) (string, bool) {
	r.evaluated = append(r.evaluated, statement)
	return "ok", false
}

func (r *fakeRuntime) Suggest(prefix string) []string {
	all := []string{"place", "pack", "route", "print"}
	var out []string
	for _, s := range all {
		if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
			out = append(out, s)
		}
	}
	return out
}

var _ = Describe("Console", func() {
	It("completes a plain single-line statement immediately", func() {
		c := console.New(&fakeRuntime{})
		r := c.Feed("print(1)")
		Expect(r.Complete).To(BeTrue())
		Expect(r.Statement).To(Equal("print(1)"))
	})

	It("accumulates lines until every open bracket closes", func() {
		c := console.New(&fakeRuntime{})
		r := c.Feed("foo(1,")
		Expect(r.Complete).To(BeFalse())
		r = c.Feed("2)")
		Expect(r.Complete).To(BeTrue())
		Expect(r.Statement).To(Equal("foo(1,\n2)"))
	})

	It("joins backslash-continued lines into one statement", func() {
		c := console.New(&fakeRuntime{})
		r := c.Feed("a = 1 + \\")
		Expect(r.Complete).To(BeFalse())
		r = c.Feed("2")
		Expect(r.Complete).To(BeTrue())
		Expect(r.Statement).To(Equal("a = 1 + 2"))
	})

	It("accumulates an indented block until a blank line closes it", func() {
		c := console.New(&fakeRuntime{})
		r := c.Feed("if x:")
		Expect(r.Complete).To(BeFalse())
		r = c.Feed("  y = 1")
		Expect(r.Complete).To(BeFalse())
		r = c.Feed("")
		Expect(r.Complete).To(BeTrue())
	})

	It("orders suggestions lexicographically", func() {
		c := console.New(&fakeRuntime{})
		Expect(c.Suggest("p")).To(Equal([]string{"pack", "place", "print"}))
	})
})

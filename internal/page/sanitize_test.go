package page_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chatconnect.app/assistant/internal/page"
)

var _ = Describe("SanitizeSelector", func() {
	DescribeTable("accepts CSS selectors",
		func(input, expected string) {
			got, err := page.SanitizeSelector(input)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(expected))
		},
		Entry("id", "#email", "#email"),
		Entry("class chain", "form.checkout .field", "form.checkout .field"),
		Entry("attribute", `input[name="first_name"]`, `input[name="first_name"]`),
		Entry("pseudo class", "ul > li:nth-child(2)", "ul > li:nth-child(2)"),
		Entry("attribute prefix match", `a[href^="/account"]`, `a[href^="/account"]`),
		Entry("surrounding whitespace trimmed", "  #submit  ", "#submit"),
	)

	DescribeTable("rejects dangerous or malformed selectors",
		func(input string) {
			_, err := page.SanitizeSelector(input)
			Expect(err).To(MatchError(page.ErrInvalidSelector))
		},
		Entry("empty", ""),
		Entry("blank", "   "),
		Entry("javascript url", `a[href="javascript:alert(1)"]`),
		Entry("javascript url mixed case", `a[href="JavaScript:alert(1)"]`),
		Entry("inline handler", `div[onclick="steal()"]`),
		Entry("inline handler with spaces", `img[onerror = "x"]`),
		Entry("script tag", "<script>alert(1)</script>"),
		Entry("braces", "div { color: red }"),
		Entry("backtick", "#a`b"),
		Entry("too long", strings.Repeat("a", 1001)),
	)
})

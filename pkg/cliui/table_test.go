package cliui

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Table", func() {
	It("aligns rows under upper-cased headers", func() {
		t := NewTable("model", "calls")
		t.AddRow("deepseek-chat", "12")
		t.AddRow("deepseek-reasoner", "3")

		lines := strings.Split(ansi.Strip(t.String()), "\n")
		Expect(lines).To(HaveLen(3))
		Expect(lines[0]).To(HavePrefix("MODEL"))
		Expect(strings.Index(lines[1], "12")).To(Equal(strings.Index(lines[2], "3")))
	})

	It("truncates wide cells", func() {
		t := NewTable("id")
		t.AddRow(strings.Repeat("x", 100))

		var buf bytes.Buffer
		t.Fprint(&buf)
		Expect(buf.String()).To(ContainSubstring("…"))
		Expect(buf.String()).NotTo(ContainSubstring(strings.Repeat("x", DefaultCellWidth+1)))
	})
})

var _ = Describe("Truncate", func() {
	It("leaves short strings alone", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("counts printable width, not escape bytes", func() {
		styled := "\x1b[1mbold\x1b[0m"
		Expect(Truncate(styled, 4)).To(Equal(styled))
	})

	It("appends an ellipsis within the width", func() {
		out := Truncate("abcdefghij", 5)
		Expect(ansi.StringWidth(out)).To(Equal(5))
		Expect(out).To(HaveSuffix("…"))
	})
})

var _ = Describe("FormatDuration", func() {
	It("formats sub-second durations in milliseconds", func() {
		Expect(FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("formats longer durations in seconds", func() {
		Expect(FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Mark", func() {
	It("distinguishes success from failure", func() {
		Expect(Mark(nil)).To(Equal(SuccessMark))
		Expect(Mark(errors.New("boom"))).To(Equal(FailMark))
	})
})

// Package storagetest holds the shared Ginkgo specs every usage record
// driver must pass.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/deepgate/pkg/storage"
)

// DriverContract registers specs against a fresh, empty driver produced by
// newDriver before each test. The driver is closed after each test.
func DriverContract(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	record := func(model string, offset time.Duration, prompt, completion int) *storage.Record {
		return &storage.Record{
			RequestID:        "req-" + model,
			Model:            model,
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
			FinishReason:     "stop",
			Outcome:          "completed",
			DurationMs:       42,
			CreatedAt:        base.Add(offset),
		}
	}

	Describe("Insert", func() {
		It("assigns an ID when none is set", func() {
			rec := record("deepseek-chat", 0, 1, 2)
			Expect(driver.Insert(ctx, rec)).To(Succeed())
			Expect(rec.ID).NotTo(BeEmpty())
		})

		It("keeps an explicit ID", func() {
			rec := record("deepseek-chat", 0, 1, 2)
			rec.ID = "fixed-id"
			Expect(driver.Insert(ctx, rec)).To(Succeed())

			recs, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
			Expect(recs[0].ID).To(Equal("fixed-id"))
		})

		It("rejects a nil record", func() {
			Expect(driver.Insert(ctx, nil)).To(MatchError(storage.ErrNilRecord))
		})

		It("rejects a record without a model", func() {
			Expect(driver.Insert(ctx, &storage.Record{})).To(MatchError(storage.ErrMissingModel))
		})

		It("round-trips every field", func() {
			rec := record("deepseek-reasoner", 0, 10, 20)
			rec.Streaming = true
			rec.CachedTokens = 4
			rec.FinishReason = "length"
			rec.Outcome = "upstream_failed"
			Expect(driver.Insert(ctx, rec)).To(Succeed())

			recs, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))

			got := recs[0]
			Expect(got.ID).To(Equal(rec.ID))
			Expect(got.RequestID).To(Equal("req-deepseek-reasoner"))
			Expect(got.Model).To(Equal("deepseek-reasoner"))
			Expect(got.Streaming).To(BeTrue())
			Expect(got.PromptTokens).To(Equal(10))
			Expect(got.CompletionTokens).To(Equal(20))
			Expect(got.TotalTokens).To(Equal(30))
			Expect(got.CachedTokens).To(Equal(4))
			Expect(got.FinishReason).To(Equal("length"))
			Expect(got.Outcome).To(Equal("upstream_failed"))
			Expect(got.DurationMs).To(Equal(int64(42)))
			Expect(got.CreatedAt).To(BeTemporally("~", base, time.Millisecond))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			Expect(driver.Insert(ctx, record("a", 1*time.Second, 1, 1))).To(Succeed())
			Expect(driver.Insert(ctx, record("b", 3*time.Second, 1, 1))).To(Succeed())
			Expect(driver.Insert(ctx, record("c", 2*time.Second, 1, 1))).To(Succeed())
		})

		It("returns records newest first", func() {
			recs, err := driver.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(3))
			Expect([]string{recs[0].Model, recs[1].Model, recs[2].Model}).To(Equal([]string{"b", "c", "a"}))
		})

		It("honours the limit", func() {
			recs, err := driver.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(2))
			Expect(recs[0].Model).To(Equal("b"))
			Expect(recs[1].Model).To(Equal("c"))
		})
	})

	Describe("Summary", func() {
		It("is empty for an empty store", func() {
			sum, err := driver.Summary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sum.Calls).To(BeZero())
			Expect(sum.TotalTokens).To(BeZero())
			Expect(sum.ByModel).To(BeEmpty())
		})

		It("aggregates totals and per-model usage", func() {
			Expect(driver.Insert(ctx, record("deepseek-chat", 0, 10, 5))).To(Succeed())
			Expect(driver.Insert(ctx, record("deepseek-chat", time.Second, 20, 5))).To(Succeed())
			Expect(driver.Insert(ctx, record("deepseek-reasoner", 2*time.Second, 3, 7))).To(Succeed())

			sum, err := driver.Summary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sum.Calls).To(Equal(int64(3)))
			Expect(sum.PromptTokens).To(Equal(int64(33)))
			Expect(sum.CompletionTokens).To(Equal(int64(17)))
			Expect(sum.TotalTokens).To(Equal(int64(50)))

			Expect(sum.ByModel).To(HaveLen(2))
			Expect(sum.ByModel["deepseek-chat"]).To(Equal(storage.ModelSummary{
				Calls: 2, PromptTokens: 30, CompletionTokens: 10, TotalTokens: 40,
			}))
			Expect(sum.ByModel["deepseek-reasoner"]).To(Equal(storage.ModelSummary{
				Calls: 1, PromptTokens: 3, CompletionTokens: 7, TotalTokens: 10,
			}))
		})
	})
}

package inmemory_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/vector"
	"github.com/papercomputeco/researcher/pkg/vector/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *inmemory.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver()
		Expect(driver.Add(ctx, []vector.Document{
			{ID: "a", Embedding: []float32{1, 0}},
			{ID: "b", Embedding: []float32{0, 1}},
			{ID: "c", Embedding: []float32{0.6, 0.8}},
			{ID: "d", Embedding: []float32{1, 0}},
		})).To(Succeed())
	})

	Describe("Query", func() {
		It("ranks by dot product, highest first", func() {
			results, err := driver.Query(ctx, []float32{0, 1}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("b"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
			Expect(results[1].ID).To(Equal("c"))
			Expect(results[1].Score).To(BeNumerically("~", 0.8, 1e-6))
		})

		It("keeps insertion order for ties", func() {
			results, err := driver.Query(ctx, []float32{1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].ID).To(Equal("a"))
			Expect(results[1].ID).To(Equal("d"))
		})

		It("returns everything when topK exceeds the store", func() {
			results, err := driver.Query(ctx, []float32{1, 0}, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))
		})

		It("returns an empty result for an empty store", func() {
			results, err := inmemory.NewDriver().Query(ctx, []float32{1, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("rejects queries with the wrong dimensions", func() {
			_, err := driver.Query(ctx, []float32{1, 0, 0}, 5)
			Expect(errors.Is(err, vector.ErrDimensions)).To(BeTrue())
		})
	})

	Describe("Add", func() {
		It("replaces existing documents in place", func() {
			Expect(driver.Add(ctx, []vector.Document{{ID: "a", Embedding: []float32{0, 1}}})).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(4))

			results, err := driver.Query(ctx, []float32{0, 1}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect([]string{results[0].ID, results[1].ID}).To(Equal([]string{"a", "b"}))
		})

		It("rejects documents with mismatched dimensions", func() {
			err := driver.Add(ctx, []vector.Document{{ID: "x", Embedding: []float32{1}}})
			Expect(errors.Is(err, vector.ErrDimensions)).To(BeTrue())
		})
	})

	Describe("Get and Delete", func() {
		It("returns documents in the requested order and skips unknown IDs", func() {
			docs, err := driver.Get(ctx, []string{"c", "missing", "a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
			Expect(docs[0].ID).To(Equal("c"))
			Expect(docs[1].ID).To(Equal("a"))
		})

		It("deletes documents", func() {
			Expect(driver.Delete(ctx, []string{"a", "c"})).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))

			docs, err := driver.Get(ctx, []string{"b", "d"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
		})
	})

	It("computes dot products over the shared length", func() {
		Expect(inmemory.Dot([]float32{1, 2, 3}, []float32{4, 5})).To(BeNumerically("==", 14))
	})
})

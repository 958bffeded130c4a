package testutils

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/storage"
)

// NewTestChunk builds a chunk at position i of document doc.
func NewTestChunk(doc string, i, position int) storage.Chunk {
	return storage.Chunk{
		ID:                    doc + "_" + string(rune('0'+i)),
		Position:              position,
		DocID:                 doc,
		OriginalUUID:          "uuid-" + doc,
		ChunkID:               doc + "_chunk_" + string(rune('0'+i)),
		OriginalIndex:         i,
		OriginalContent:       "content " + doc,
		ContextualizedContent: "context " + doc,
	}
}

// DescribeStorageDriver registers the behaviour every storage.Driver must
// have. newDriver is called before each spec and the driver is closed after.
func DescribeStorageDriver(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
			driver = nil
		}
	})

	Describe("chunks", func() {
		BeforeEach(func() {
			Expect(driver.PutChunks(ctx, []storage.Chunk{
				NewTestChunk("doc_2", 0, 2),
				NewTestChunk("doc_1", 0, 0),
				NewTestChunk("doc_1", 1, 1),
			})).To(Succeed())
		})

		It("counts chunks", func() {
			n, err := driver.CountChunks(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
		})

		It("lists chunks by position", func() {
			chunks, err := driver.ListChunks(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(3))
			Expect(chunks[0].ID).To(Equal("doc_1_0"))
			Expect(chunks[1].ID).To(Equal("doc_1_1"))
			Expect(chunks[2].ID).To(Equal("doc_2_0"))
			Expect(chunks[1]).To(Equal(NewTestChunk("doc_1", 1, 1)))
		})

		It("gets chunks in the requested order", func() {
			chunks, err := driver.GetChunks(ctx, []string{"doc_2_0", "missing", "doc_1_0"})
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks).To(HaveLen(2))
			Expect(chunks[0].ID).To(Equal("doc_2_0"))
			Expect(chunks[1].ID).To(Equal("doc_1_0"))
		})

		It("upserts chunks by ID", func() {
			updated := NewTestChunk("doc_1", 0, 0)
			updated.ContextualizedContent = "new context"
			Expect(driver.PutChunks(ctx, []storage.Chunk{updated})).To(Succeed())

			n, err := driver.CountChunks(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))

			chunks, err := driver.GetChunks(ctx, []string{"doc_1_0"})
			Expect(err).NotTo(HaveOccurred())
			Expect(chunks[0].ContextualizedContent).To(Equal("new context"))
		})

		It("accepts an empty batch", func() {
			Expect(driver.PutChunks(ctx, nil)).To(Succeed())
		})
	})

	Describe("query embeddings", func() {
		It("returns ErrNotFound for unknown keys", func() {
			_, err := driver.GetQueryEmbedding(ctx, "missing")
			var notFound storage.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("stores and replaces embeddings", func() {
			Expect(driver.PutQueryEmbedding(ctx, "q", []float32{0.5, 0.25})).To(Succeed())
			Expect(driver.PutQueryEmbedding(ctx, "q", []float32{1, 2})).To(Succeed())

			emb, err := driver.GetQueryEmbedding(ctx, "q")
			Expect(err).NotTo(HaveOccurred())
			Expect(emb).To(Equal([]float32{1, 2}))
		})
	})

	Describe("settings", func() {
		It("returns ErrNotFound before any settings are stored", func() {
			_, err := driver.GetSettings(ctx)
			var notFound storage.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("round-trips settings", func() {
			want := &storage.Settings{Model: "gpt-4o", EmbeddingModel: "text-embedding-3-small", MaxTokens: 1000}
			Expect(driver.PutSettings(ctx, want)).To(Succeed())

			want.Temperature = 0.5
			Expect(driver.PutSettings(ctx, want)).To(Succeed())

			got, err := driver.GetSettings(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		})
	})

	It("resets everything", func() {
		Expect(driver.PutChunks(ctx, []storage.Chunk{NewTestChunk("doc_1", 0, 0)})).To(Succeed())
		Expect(driver.PutQueryEmbedding(ctx, "q", []float32{1})).To(Succeed())
		Expect(driver.PutSettings(ctx, &storage.Settings{Model: "m"})).To(Succeed())

		Expect(driver.Reset(ctx)).To(Succeed())

		n, err := driver.CountChunks(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
		_, err = driver.GetQueryEmbedding(ctx, "q")
		Expect(err).To(HaveOccurred())
		_, err = driver.GetSettings(ctx)
		Expect(err).To(HaveOccurred())
	})
}

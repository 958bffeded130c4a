package sqlitevec_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/logger"
	"github.com/papercomputeco/researcher/pkg/vector"
	"github.com/papercomputeco/researcher/pkg/vector/sqlitevec"
)

var _ = Describe("Driver", func() {
	var log *slog.Logger

	BeforeEach(func() {
		log = logger.Nop()
	})

	Describe("NewDriver", func() {
		It("should return an error when DBPath is empty", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ""}, log)
			Expect(err).To(MatchError(ContainSubstring("database path is required")))
		})

		It("should error when dimension not specified", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, log)
			Expect(err).To(HaveOccurred())
		})

		It("should create a driver with an in-memory database", func() {
			driver, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4}, log)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Close()).To(Succeed())
		})
	})

	Describe("with documents", func() {
		var (
			ctx    context.Context
			driver *sqlitevec.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			var err error
			driver, err = sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 3}, log)
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Add(ctx, []vector.Document{
				{ID: "north", Embedding: []float32{0, 1, 0}},
				{ID: "east", Embedding: []float32{1, 0, 0}},
				{ID: "northeast", Embedding: []float32{0.7071, 0.7071, 0}},
			})).To(Succeed())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("should do nothing when given empty docs", func() {
			Expect(driver.Add(ctx, []vector.Document{})).To(Succeed())
		})

		It("ranks by cosine similarity", func() {
			results, err := driver.Query(ctx, []float32{0, 2, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("north"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-4))
			Expect(results[1].ID).To(Equal("northeast"))
			Expect(results[1].Score).To(BeNumerically("~", 0.7071, 1e-3))
		})

		It("updates existing documents", func() {
			Expect(driver.Add(ctx, []vector.Document{{ID: "east", Embedding: []float32{0, 1, 0}}})).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(3))

			docs, err := driver.Get(ctx, []string{"east"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Embedding).To(Equal([]float32{0, 1, 0}))
		})

		It("gets documents in the requested order", func() {
			docs, err := driver.Get(ctx, []string{"northeast", "missing", "north"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(2))
			Expect(docs[0].ID).To(Equal("northeast"))
			Expect(docs[1].ID).To(Equal("north"))
		})

		It("deletes documents", func() {
			Expect(driver.Delete(ctx, []string{"north", "east"})).To(Succeed())

			count, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))

			results, err := driver.Query(ctx, []float32{0, 1, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("northeast"))
		})

		It("rejects embeddings with the wrong dimensions", func() {
			err := driver.Add(ctx, []vector.Document{{ID: "bad", Embedding: []float32{1}}})
			Expect(errors.Is(err, vector.ErrDimensions)).To(BeTrue())

			_, err = driver.Query(ctx, []float32{1, 0}, 1)
			Expect(errors.Is(err, vector.ErrDimensions)).To(BeTrue())
		})
	})

	It("persists documents across reopen", func() {
		path := filepath.Join(GinkgoT().TempDir(), "vectors.db")
		driver, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: path, Dimensions: 2}, log)
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.Add(context.Background(), []vector.Document{{ID: "a", Embedding: []float32{1, 0}}})).To(Succeed())
		Expect(driver.Close()).To(Succeed())

		driver, err = sqlitevec.NewDriver(sqlitevec.Config{DBPath: path, Dimensions: 2}, log)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		count, err := driver.Count(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})
})

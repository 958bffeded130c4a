package file_test

import (
	"context"
	"fmt"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/tracing"
	"github.com/papercomputeco/researcher/pkg/tracing/file"
)

var _ = Describe("Exporter", func() {
	var path string

	BeforeEach(func() {
		path = file.Path(GinkgoT().TempDir(), "proj")
	})

	It("places traces under a per-project file", func() {
		Expect(path).To(HaveSuffix(filepath.Join("traces", "proj.jsonl")))
		Expect(file.Path("/x", "")).To(Equal(filepath.Join("/x", "traces", "default.jsonl")))
	})

	It("appends runs that read back in order", func() {
		e, err := file.NewExporter(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(e.Export(context.Background(), []*tracing.Run{
			{ID: "r1", Name: "first", RunType: tracing.RunTypeLLM, Outputs: map[string]any{"text": "hi"}},
			{ID: "r2", Name: "second", RunType: tracing.RunTypeRetriever},
		})).To(Succeed())
		Expect(e.Close()).To(Succeed())

		runs, err := file.ReadRuns(path, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(2))
		Expect(runs[0].Name).To(Equal("first"))
		Expect(runs[0].Outputs).To(HaveKeyWithValue("text", "hi"))
		Expect(runs[1].RunType).To(Equal(tracing.RunTypeRetriever))
	})

	It("keeps only the most recent runs when limited", func() {
		e, err := file.NewExporter(path)
		Expect(err).NotTo(HaveOccurred())
		for i := range 5 {
			Expect(e.Export(context.Background(), []*tracing.Run{{ID: fmt.Sprintf("r%d", i)}})).To(Succeed())
		}
		Expect(e.Close()).To(Succeed())

		runs, err := file.ReadRuns(path, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(2))
		Expect(runs[0].ID).To(Equal("r3"))
		Expect(runs[1].ID).To(Equal("r4"))
	})

	It("appends across reopen", func() {
		for _, id := range []string{"a", "b"} {
			e, err := file.NewExporter(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Export(context.Background(), []*tracing.Run{{ID: id}})).To(Succeed())
			Expect(e.Close()).To(Succeed())
		}
		runs, err := file.ReadRuns(path, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(2))
	})

	It("returns no runs for a missing file", func() {
		runs, err := file.ReadRuns(filepath.Join(GinkgoT().TempDir(), "nope.jsonl"), 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(BeEmpty())
	})
})

package preprocess_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/dataset"
	"github.com/papercomputeco/researcher/pkg/logger"
	"github.com/papercomputeco/researcher/pkg/preprocess"
)

func writeFile(path, content string) {
	Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
	Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
}

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("reads every supported format in lexical order", func() {
		writeFile(filepath.Join(dir, "b.md"), "# Notes\n\nMarkdown body.")
		writeFile(filepath.Join(dir, "a.txt"), "Plain text.")
		writeFile(filepath.Join(dir, "c.json"), `[{"title":"T1","text":"one"},{"content":"two"}]`)
		writeFile(filepath.Join(dir, "d.yaml"), "title: Y\ncontent: yaml body\n")
		writeFile(filepath.Join(dir, "e.jsonl"), "{\"text\":\"l1\"}\n\n{\"text\":\"l2\"}\n")
		writeFile(filepath.Join(dir, "ignored.csv"), "a,b")

		sources, err := preprocess.Load(dir)
		Expect(err).NotTo(HaveOccurred())

		texts := make([]string, len(sources))
		for i, s := range sources {
			texts[i] = s.Text
		}
		Expect(texts).To(Equal([]string{
			"Plain text.",
			"# Notes\n\nMarkdown body.",
			"T1\n\none",
			"two",
			"Y\n\nyaml body",
			"l1",
			"l2",
		}))
		Expect(sources[3].Index).To(Equal(1))
	})

	It("skips hidden directories", func() {
		writeFile(filepath.Join(dir, ".git", "x.txt"), "hidden")
		writeFile(filepath.Join(dir, "sub", "y.txt"), "visible")

		sources, err := preprocess.Load(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(HaveLen(1))
		Expect(sources[0].Text).To(Equal("visible"))
	})

	It("skips hidden files and excluded paths", func() {
		writeFile(filepath.Join(dir, "a.txt"), "kept")
		writeFile(filepath.Join(dir, ".dataset-123.jsonl"), `{"content":"temp"}`)
		writeFile(filepath.Join(dir, "my_data", "processed_documents.jsonl"), `{"content":"output"}`)

		sources, err := preprocess.Load(dir, filepath.Join(dir, "my_data", "processed_documents.jsonl"))
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(HaveLen(1))
		Expect(sources[0].Text).To(Equal("kept"))
	})

	It("reports the file of a malformed record", func() {
		writeFile(filepath.Join(dir, "bad.jsonl"), "{\"text\":\"ok\"}\nnot json\n")

		_, err := preprocess.Load(dir)
		Expect(err).To(MatchError(ContainSubstring("bad.jsonl")))
		Expect(err).To(MatchError(ContainSubstring("line 2")))
	})

	It("accepts a single file", func() {
		path := filepath.Join(dir, "one.txt")
		writeFile(path, "solo")

		sources, err := preprocess.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(sources).To(HaveLen(1))
	})
})

var _ = Describe("Preprocessor", func() {
	var (
		dir    string
		output string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		output = filepath.Join(GinkgoT().TempDir(), "out", "docs.jsonl")
	})

	It("requires an input", func() {
		_, err := preprocess.New(preprocess.Options{}, logger.Nop())
		Expect(err).To(HaveOccurred())
	})

	It("numbers documents and chunks and drops empty ones", func() {
		writeFile(filepath.Join(dir, "a.txt"), "first doc")
		writeFile(filepath.Join(dir, "b.txt"), "   ")
		writeFile(filepath.Join(dir, "c.txt"), "second para one\n\nsecond para two")

		p, err := preprocess.New(preprocess.Options{Input: dir, Output: output, ChunkSize: 20, ChunkOverlap: 0}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		docs, err := p.Documents(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(2))
		Expect(docs[0].DocID).To(Equal("doc_1"))
		Expect(docs[1].DocID).To(Equal("doc_2"))
		Expect(docs[1].Chunks).To(HaveLen(2))
		Expect(docs[1].Chunks[1].ChunkID).To(Equal("doc_2_chunk_1"))
		Expect(docs[1].Chunks[1].OriginalIndex).To(Equal(1))
		Expect(docs[1].Chunks[1].Content).To(Equal("second para two"))
	})

	It("derives stable original ids", func() {
		writeFile(filepath.Join(dir, "a.txt"), "doc")
		p, err := preprocess.New(preprocess.Options{Input: dir, Output: output}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		first, err := p.Documents(context.Background())
		Expect(err).NotTo(HaveOccurred())
		second, err := p.Documents(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(first[0].OriginalUUID).To(Equal(second[0].OriginalUUID))
		Expect(first[0].OriginalUUID).To(Equal(preprocess.OriginalUUID(filepath.Join(dir, "a.txt"), 0)))
		Expect(preprocess.OriginalUUID("x", 0)).NotTo(Equal(preprocess.OriginalUUID("x", 1)))
	})

	It("honours the document limit", func() {
		writeFile(filepath.Join(dir, "a.txt"), "a")
		writeFile(filepath.Join(dir, "b.txt"), "b")
		writeFile(filepath.Join(dir, "c.txt"), "c")

		p, err := preprocess.New(preprocess.Options{Input: dir, Output: output, Limit: 2}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		docs, err := p.Documents(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(2))
	})

	It("writes a dataset that reads back", func() {
		writeFile(filepath.Join(dir, "a.md"), "hello world")

		p, err := preprocess.New(preprocess.Options{Input: dir, Output: output}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		written, err := p.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		read, err := dataset.ReadFile(output, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(read).To(Equal(written))
	})

	It("does not read back a dataset written inside the input", func() {
		writeFile(filepath.Join(dir, "a.txt"), "only doc")
		inside := filepath.Join(dir, "my_data", "processed_documents.jsonl")

		p, err := preprocess.New(preprocess.Options{Input: dir, Output: inside}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		first, err := p.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		second, err := p.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(first).To(HaveLen(1))
		Expect(second).To(Equal(first))
	})

	It("settles when the dataset is written inside the watched input", func() {
		writeFile(filepath.Join(dir, "a.txt"), "only doc")
		inside := filepath.Join(dir, "my_data", "processed_documents.jsonl")

		p, err := preprocess.New(preprocess.Options{Input: dir, Output: inside}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- p.Watch(ctx, 50*time.Millisecond) }()
		DeferCleanup(func() {
			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		})

		modTime := func() time.Time {
			info, err := os.Stat(inside)
			if err != nil {
				return time.Time{}
			}
			return info.ModTime()
		}
		Eventually(modTime, 5*time.Second, 20*time.Millisecond).ShouldNot(BeZero())

		written := modTime()
		Consistently(modTime, 500*time.Millisecond, 50*time.Millisecond).Should(Equal(written))

		docs, err := dataset.ReadFile(inside, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(docs).To(HaveLen(1))
	})

	It("re-runs when an input file changes", func() {
		writeFile(filepath.Join(dir, "a.txt"), "before")

		p, err := preprocess.New(preprocess.Options{Input: dir, Output: output}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- p.Watch(ctx, 50*time.Millisecond) }()
		DeferCleanup(func() {
			cancel()
			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
		})

		readContent := func() string {
			docs, err := dataset.ReadFile(output, 0)
			if err != nil || len(docs) == 0 {
				return ""
			}
			return docs[0].Content
		}
		Eventually(readContent, 5*time.Second, 20*time.Millisecond).Should(Equal("before"))

		writeFile(filepath.Join(dir, "a.txt"), "after")
		Eventually(readContent, 5*time.Second, 20*time.Millisecond).Should(Equal("after"))
	})
})

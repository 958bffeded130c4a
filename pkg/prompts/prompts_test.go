package prompts_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/prompts"
)

var _ = Describe("Prompts", func() {
	Describe("Default", func() {
		It("carries the situate system prompt", func() {
			Expect(prompts.Default().Situate.System).To(Equal(
				"You will be given a document and a chunk from that document. Your task is " +
					"to provide a short succinct context to situate this chunk within the " +
					"overall document for the purposes of improving search retrieval of the " +
					"chunk. Answer only with the succinct context and nothing else."))
		})

		It("renders the situate user prompt", func() {
			out, err := prompts.Default().Situate.Render(prompts.SituateData{Document: "the doc", Chunk: "the chunk"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Document:\nthe doc\n\nChunk to situate:\nthe chunk"))
		})

		It("renders numbered excerpts in the answer prompt", func() {
			out, err := prompts.Default().Answer.Render(prompts.AnswerData{
				Question: "What thaws?",
				Excerpts: []prompts.Excerpt{
					{N: 1, Source: "doc_1", Content: "Permafrost thaws."},
					{N: 2, Source: "doc_2", Content: "Ice melts."},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("[1] (doc_1)\nPermafrost thaws."))
			Expect(out).To(ContainSubstring("[2] (doc_2)\nIce melts."))
			Expect(out).To(HaveSuffix("Question: What thaws?"))
		})

		It("says when no excerpts were found", func() {
			out, err := prompts.Default().Answer.Render(prompts.AnswerData{Question: "Anything?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("No excerpts were found"))
			Expect(out).NotTo(ContainSubstring("Excerpts:"))
		})
	})

	Describe("Load", func() {
		It("overrides only the templates present in the file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "prompts.yaml")
			Expect(os.WriteFile(path, []byte("answer:\n  system: Be terse.\n"), 0o600)).To(Succeed())

			set, err := prompts.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Answer.System).To(Equal("Be terse."))
			Expect(set.Answer.User).To(Equal(prompts.Default().Answer.User))
			Expect(set.Situate.System).To(Equal(prompts.Default().Situate.System))
		})

		It("rejects templates that do not parse", func() {
			_, err := prompts.Parse([]byte("situate:\n  user: \"{{ .Document\"\nanswer:\n  user: ok\n"), nil)
			Expect(err).To(MatchError(ContainSubstring("situate")))
		})
	})
})

package askcmder_test

import (
	"bytes"

	"github.com/spf13/cobra"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	askcmder "github.com/papercomputeco/researcher/cmd/researcher/ask"
	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/pricing"
	"github.com/papercomputeco/researcher/pkg/rag"
	"github.com/papercomputeco/researcher/pkg/research"
	"github.com/papercomputeco/researcher/pkg/storage"
)

var _ = Describe("NewAskCmd", func() {
	It("requires a question", func() {
		cmd := askcmder.NewAskCmd()
		cmd.SetArgs([]string{})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		Expect(cmd.Execute()).To(HaveOccurred())
	})

	It("registers the query and output flags", func() {
		cmd := askcmder.NewAskCmd()
		for _, name := range []string{"model", "top-k", "provider", "no-stream", "json", "trace"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})
})

var _ = Describe("NewRootRunE", func() {
	It("adds the ask flags to root and shows help without arguments", func() {
		root := &cobra.Command{Use: "researcher"}
		root.RunE = askcmder.NewRootRunE(root)
		Expect(root.Flags().Lookup("no-stream")).NotTo(BeNil())

		out := &bytes.Buffer{}
		root.SetOut(out)
		root.SetArgs([]string{})
		Expect(root.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Usage:"))
	})
})

var _ = Describe("PrintSources", func() {
	It("lists each source and a usage line", func() {
		answer := &research.Answer{
			Model: "gpt-4o",
			Sources: []research.Source{{
				N: 1,
				Result: rag.Result{
					Chunk:      storage.Chunk{DocID: "doc_1", ChunkID: "doc_1_chunk_0"},
					Similarity: 0.8765,
				},
			}},
			Usage: &llm.Usage{PromptTokens: 1200, CompletionTokens: 80},
			Cost:  pricing.Cost{Total: 0.0038},
		}

		buf := &bytes.Buffer{}
		askcmder.PrintSources(buf, answer)

		text := buf.String()
		Expect(text).To(ContainSubstring("Sources"))
		Expect(text).To(ContainSubstring("[1]"))
		Expect(text).To(ContainSubstring("doc_1/doc_1_chunk_0"))
		Expect(text).To(ContainSubstring("similarity: 0.8765"))
		Expect(text).To(ContainSubstring("1200 in / 80 out tokens"))
		Expect(text).To(ContainSubstring("$0.0038"))
	})

	It("omits the source list and cost when there are none", func() {
		buf := &bytes.Buffer{}
		askcmder.PrintSources(buf, &research.Answer{Model: "llama3.2"})
		Expect(buf.String()).NotTo(ContainSubstring("Sources"))
		Expect(buf.String()).NotTo(ContainSubstring("$"))
		Expect(buf.String()).To(ContainSubstring("llama3.2"))
	})
})

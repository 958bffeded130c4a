package mcp_test

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	researchermcp "github.com/papercomputeco/researcher/api/mcp"
	"github.com/papercomputeco/researcher/api/search"
	"github.com/papercomputeco/researcher/pkg/logger"
	"github.com/papercomputeco/researcher/pkg/rag"
	"github.com/papercomputeco/researcher/pkg/research"
	"github.com/papercomputeco/researcher/pkg/storage"
)

type fakeSearcher struct {
	results []rag.Result
	err     error
	topKs   []int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, k int) ([]rag.Result, error) {
	f.topKs = append(f.topKs, k)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeAsker struct {
	err  error
	opts research.AskOptions
}

func (f *fakeAsker) Ask(_ context.Context, question string, opts research.AskOptions) (*research.Answer, error) {
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &research.Answer{
		Question: question,
		Text:     "Permafrost is frozen ground [1].",
		Model:    "gpt-4o",
		Sources: []research.Source{{
			N: 1,
			Result: rag.Result{
				Chunk:      storage.Chunk{DocID: "doc_1", ChunkID: "doc_1_chunk_0"},
				Similarity: 0.9,
			},
		}},
	}, nil
}

func textOf(res *mcp.CallToolResult) string {
	Expect(res.Content).To(HaveLen(1))
	text, ok := res.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("Server", func() {
	var (
		ctx      context.Context
		searcher *fakeSearcher
		asker    *fakeAsker
		session  *mcp.ClientSession
	)

	connect := func(cfg researchermcp.Config) *mcp.ClientSession {
		server, err := researchermcp.NewServer(cfg)
		Expect(err).NotTo(HaveOccurred())

		serverTransport, clientTransport := mcp.NewInMemoryTransports()
		_, err = server.MCPServer().Connect(ctx, serverTransport, nil)
		Expect(err).NotTo(HaveOccurred())

		client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0.0.0"}, nil)
		cs, err := client.Connect(ctx, clientTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(cs.Close)
		return cs
	}

	BeforeEach(func() {
		ctx = context.Background()
		searcher = &fakeSearcher{results: []rag.Result{
			{Chunk: storage.Chunk{DocID: "doc_1", ChunkID: "doc_1_chunk_0", OriginalContent: "Permafrost is frozen ground.", ContextualizedContent: "about permafrost"}, Similarity: 0.9},
			{Chunk: storage.Chunk{DocID: "doc_2", ChunkID: "doc_2_chunk_3", OriginalContent: "Oceans absorb heat."}, Similarity: 0.4},
		}}
		asker = &fakeAsker{}
	})

	Describe("NewServer", func() {
		It("requires a searcher", func() {
			_, err := researchermcp.NewServer(researchermcp.Config{Logger: logger.Nop()})
			Expect(err).To(MatchError("searcher is required"))
		})

		It("requires a logger", func() {
			_, err := researchermcp.NewServer(researchermcp.Config{Searcher: searcher})
			Expect(err).To(MatchError("logger is required"))
		})

		It("exposes an HTTP handler", func() {
			server, err := researchermcp.NewServer(researchermcp.Config{Searcher: searcher, Logger: logger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools", func() {
		It("lists only search without an asker", func() {
			session = connect(researchermcp.Config{Searcher: searcher, TopK: 5, Logger: logger.Nop()})
			res, err := session.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Tools).To(HaveLen(1))
			Expect(res.Tools[0].Name).To(Equal("search"))
		})

		It("lists search and ask with an asker", func() {
			session = connect(researchermcp.Config{Searcher: searcher, Asker: asker, TopK: 5, Logger: logger.Nop()})
			res, err := session.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			names := []string{}
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("search", "ask"))
		})
	})

	Describe("search", func() {
		BeforeEach(func() {
			session = connect(researchermcp.Config{Searcher: searcher, Asker: asker, TopK: 5, Logger: logger.Nop()})
		})

		It("returns ranked results as JSON text", func() {
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "search",
				Arguments: map[string]any{"query": "permafrost"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var out search.Output
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Query).To(Equal("permafrost"))
			Expect(out.Count).To(Equal(2))
			Expect(out.Results[0].Rank).To(Equal(1))
			Expect(out.Results[0].Content).To(Equal("Permafrost is frozen ground."))
			Expect(out.Results[0].Context).To(Equal("about permafrost"))
			Expect(out.Results[1].ChunkID).To(Equal("doc_2_chunk_3"))
		})

		It("uses the configured top_k unless one is given", func() {
			_, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "search",
				Arguments: map[string]any{"query": "q"},
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "search",
				Arguments: map[string]any{"query": "q", "top_k": 2},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(searcher.topKs).To(Equal([]int{5, 2}))
		})

		It("reports an empty index as a tool error", func() {
			searcher.err = rag.ErrNoData
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "search",
				Arguments: map[string]any{"query": "q"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(HavePrefix("Nothing is indexed yet"))
		})

		It("reports search failures as a tool error", func() {
			searcher.err = errors.New("vector store down")
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "search",
				Arguments: map[string]any{"query": "q"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(Equal("Failed to search: vector store down"))
		})
	})

	Describe("ask", func() {
		BeforeEach(func() {
			session = connect(researchermcp.Config{Searcher: searcher, Asker: asker, TopK: 5, Logger: logger.Nop()})
		})

		It("returns the answer with its sources", func() {
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"question": "What is permafrost?", "top_k": 3},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(asker.opts.TopK).To(Equal(3))

			var out researchermcp.AskOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Question).To(Equal("What is permafrost?"))
			Expect(out.Answer).To(Equal("Permafrost is frozen ground [1]."))
			Expect(out.Model).To(Equal("gpt-4o"))
			Expect(out.Sources).To(Equal([]researchermcp.AskSource{
				{N: 1, DocID: "doc_1", ChunkID: "doc_1_chunk_0", Similarity: 0.9},
			}))
		})

		It("reports failures as a tool error", func() {
			asker.err = research.ErrEmptyQuestion
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      "ask",
				Arguments: map[string]any{"question": " "},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(Equal("Failed to answer: " + research.ErrEmptyQuestion.Error()))
		})
	})
})

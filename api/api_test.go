package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apisearch "github.com/papercomputeco/researcher/api/search"
	"github.com/papercomputeco/researcher/pkg/dataset"
	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/logger"
	"github.com/papercomputeco/researcher/pkg/rag"
	"github.com/papercomputeco/researcher/pkg/research"
	storageinmemory "github.com/papercomputeco/researcher/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/researcher/pkg/utils/test"
	vectorinmemory "github.com/papercomputeco/researcher/pkg/vector/inmemory"
)

func decode[T any](resp *http.Response) T {
	var out T
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, &out)).To(Succeed(), string(body))
	return out
}

var _ = Describe("Server", func() {
	var (
		ctx      context.Context
		server   *Server
		db       *rag.DB
		prov     *testutils.MockProvider
		embedder *testutils.MockEmbedder
	)

	load := func() {
		_, err := db.LoadData(ctx, []dataset.Document{{
			DocID:        "doc_1",
			OriginalUUID: "uuid-1",
			Content:      "Permafrost is frozen ground. Thaw releases methane.",
			Chunks: []dataset.Chunk{
				{ChunkID: "doc_1_chunk_0", OriginalIndex: 0, Content: "Permafrost is frozen ground."},
				{ChunkID: "doc_1_chunk_1", OriginalIndex: 1, Content: "Thaw releases methane."},
			},
		}}, rag.LoadOptions{})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
		prov = testutils.NewMockProvider()
		embedder = testutils.NewMockEmbedder()

		var err error
		db, err = rag.New(ctx, rag.Config{
			Provider: prov,
			Embedder: embedder,
			Vectors:  vectorinmemory.NewDriver(),
			Store:    storageinmemory.NewDriver(),
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		researcher, err := research.New(research.Config{
			Retriever: db,
			Provider:  prov,
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{ListenAddr: ":0", TopK: 5}, db, researcher, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires an index, an asker and a logger", func() {
			_, err := NewServer(Config{}, nil, nil, logger.Nop())
			Expect(err).To(MatchError("index is required"))
		})
	})

	Describe("GET /ping", func() {
		It("answers pong", func() {
			resp, err := server.app.Test(httptestRequest(http.MethodGet, "/ping", ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[string](resp)).To(Equal("pong"))
		})
	})

	Describe("GET /v1/stats", func() {
		It("reports counts and settings", func() {
			load()
			resp, err := server.app.Test(httptestRequest(http.MethodGet, "/v1/stats", ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			stats := decode[rag.Stats](resp)
			Expect(stats.Chunks).To(Equal(2))
			Expect(stats.Vectors).To(Equal(2))
			Expect(stats.Settings.Model).To(Equal("gpt-4o"))
		})
	})

	Describe("GET /v1/search", func() {
		It("returns 400 without a query", func() {
			resp, err := server.app.Test(httptestRequest(http.MethodGet, "/v1/search", ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(decode[llm.ErrorResponse](resp).Error).To(Equal("query parameter is required"))
		})

		It("returns 400 for a bad top_k", func() {
			for _, topK := range []string{"abc", "0", "-3"} {
				resp, err := server.app.Test(httptestRequest(http.MethodGet, "/v1/search?query=ice&top_k="+topK, ""))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest), topK)
			}
		})

		It("returns 503 before anything is indexed", func() {
			resp, err := server.app.Test(httptestRequest(http.MethodGet, "/v1/search?query=ice", ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
			Expect(decode[llm.ErrorResponse](resp).Error).To(Equal(rag.ErrNoData.Error()))
		})

		It("returns ranked chunks", func() {
			load()
			resp, err := server.app.Test(httptestRequest(http.MethodGet, "/v1/search?query=methane&top_k=1", ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[apisearch.Output](resp)
			Expect(out.Query).To(Equal("methane"))
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].Rank).To(Equal(1))
			Expect(out.Results[0].DocID).To(Equal("doc_1"))
			Expect(out.Results[0].Context).To(HavePrefix("context for: "))
		})
	})

	Describe("POST /v1/ask", func() {
		It("returns 400 for a malformed body", func() {
			resp, err := server.app.Test(httptestRequest(http.MethodPost, "/v1/ask", "{"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 for an empty question", func() {
			resp, err := server.app.Test(httptestRequest(http.MethodPost, "/v1/ask", `{"question":"  "}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(decode[llm.ErrorResponse](resp).Error).To(Equal(research.ErrEmptyQuestion.Error()))
		})

		It("answers with sources", func() {
			load()
			resp, err := server.app.Test(httptestRequest(http.MethodPost, "/v1/ask", `{"question":"What is permafrost?","top_k":2}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			answer := decode[research.Answer](resp)
			Expect(answer.Question).To(Equal("What is permafrost?"))
			Expect(answer.Text).To(ContainSubstring("Question: What is permafrost?"))
			Expect(answer.Sources).To(HaveLen(2))
			Expect(answer.Model).To(Equal("gpt-4o"))
		})

		It("returns 502 when the provider fails", func() {
			prov.Respond = func(*llm.ChatRequest) (*llm.ChatResponse, error) {
				return nil, &llm.APIError{Provider: "mock", StatusCode: 500, Message: "overloaded"}
			}
			resp, err := server.app.Test(httptestRequest(http.MethodPost, "/v1/ask", `{"question":"q"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		})
	})

	Describe("/mcp", func() {
		It("is mounted by default", func() {
			req := httptestRequest(http.MethodPost, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
			req.Header.Set("Accept", "application/json, text/event-stream")
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).NotTo(Equal(fiber.StatusNotFound))
		})

		It("can be disabled", func() {
			s, err := NewServer(Config{DisableMCP: true}, db, &research.Researcher{}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			resp, err := s.app.Test(httptestRequest(http.MethodPost, "/mcp", "{}"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})
})

func httptestRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, target, r)
	Expect(err).NotTo(HaveOccurred())
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/embeddings"
	"github.com/papercomputeco/researcher/pkg/embeddings/openai"
)

var _ = Describe("Embedder", func() {
	var (
		server   *httptest.Server
		status   int
		received map[string]any
		embedder *openai.Embedder
	)

	BeforeEach(func() {
		status = http.StatusOK
		received = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/embeddings"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			if status != http.StatusOK {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"invalid_request_error"}}`))
				return
			}

			// Deliberately reversed to check index placement.
			_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
				{"object":"embedding","index":1,"embedding":[0.5,0.5]},
				{"object":"embedding","index":0,"embedding":[1,0]}
			],"usage":{"prompt_tokens":4,"total_tokens":4}}`))
		}))

		var err error
		embedder, err = openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:     "sk-test",
			BaseURL:    server.URL + "/v1",
			Dimensions: 2,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("places embeddings by index", func() {
		out, err := embedder.EmbedBatch(context.Background(), []string{"first", "second"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([][]float32{{1, 0}, {0.5, 0.5}}))
		Expect(received["model"]).To(Equal(openai.DefaultEmbeddingModel))
		Expect(received["dimensions"]).To(BeNumerically("==", 2))
		Expect(received["input"]).To(Equal([]any{"first", "second"}))
	})

	It("wraps API errors", func() {
		status = http.StatusUnauthorized
		_, err := embedder.EmbedBatch(context.Background(), []string{"a", "b"})
		Expect(errors.Is(err, embeddings.ErrEmbedding)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("invalid key"))
	})

	It("skips the request for empty input", func() {
		out, err := embedder.EmbedBatch(context.Background(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(BeEmpty())
		Expect(received).To(BeNil())
	})
})

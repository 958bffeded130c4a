package openai_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/llm/provider/openai"
)

var _ = Describe("OpenAI Provider", func() {
	var (
		server   *httptest.Server
		lastBody map[string]any
		handler  http.HandlerFunc
		p        *openai.Provider
	)

	BeforeEach(func() {
		lastBody = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer sk-test"))

			body, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &lastBody)).To(Succeed())

			handler(w, r)
		}))
		p = openai.New(openai.Config{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
	})

	AfterEach(func() {
		server.Close()
	})

	request := func() *llm.ChatRequest {
		return &llm.ChatRequest{
			Model:       "gpt-4o",
			System:      "situate the chunk",
			Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, "Document: ...")},
			MaxTokens:   llm.IntPtr(1000),
			Temperature: llm.Float64Ptr(0),
		}
	}

	It("reports its name", func() {
		Expect(p.Name()).To(Equal("openai"))
		Expect(openai.New(openai.Config{Azure: true, BaseURL: "https://x.openai.azure.com"}).Name()).To(Equal("azure"))
	})

	Describe("Chat", func() {
		It("sends the system prompt first and maps cached tokens", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{
					"id": "chatcmpl-1",
					"object": "chat.completion",
					"created": 1700000000,
					"model": "gpt-4o-2024-08-06",
					"choices": [{"index": 0, "message": {"role": "assistant", "content": "Section on revenue."}, "finish_reason": "stop"}],
					"usage": {"prompt_tokens": 2000, "completion_tokens": 12, "total_tokens": 2012,
						"prompt_tokens_details": {"cached_tokens": 1536}}
				}`)
			}

			resp, err := p.Chat(ctx(), request())
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text()).To(Equal("Section on revenue."))
			Expect(resp.Model).To(Equal("gpt-4o-2024-08-06"))
			Expect(resp.StopReason).To(Equal("stop"))
			Expect(resp.Usage.PromptTokens).To(Equal(2000))
			Expect(resp.Usage.CacheReadInputTokens).To(Equal(1536))
			Expect(resp.Usage.UncachedPromptTokens()).To(Equal(464))

			messages := lastBody["messages"].([]any)
			Expect(messages).To(HaveLen(2))
			Expect(messages[0].(map[string]any)["role"]).To(Equal("system"))
			Expect(messages[1].(map[string]any)["content"]).To(Equal("Document: ..."))
			Expect(lastBody["max_tokens"]).To(BeNumerically("==", 1000))
			Expect(lastBody).To(HaveKey("temperature"))
		})

		It("converts API errors", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"error": {"message": "Rate limit reached", "type": "requests"}}`)
			}

			_, err := p.Chat(ctx(), request())
			Expect(err).To(HaveOccurred())

			var apiErr *llm.APIError
			Expect(err).To(BeAssignableToTypeOf(apiErr))
			Expect(llm.IsRetryable(err)).To(BeTrue())
		})

		It("returns ErrNoChoices for an empty answer", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"id": "x", "model": "gpt-4o", "choices": []}`)
			}

			_, err := p.Chat(ctx(), request())
			Expect(err).To(MatchError(llm.ErrNoChoices))
		})

		It("rejects requests without messages", func() {
			_, err := p.Chat(ctx(), &llm.ChatRequest{Model: "gpt-4o"})
			Expect(err).To(MatchError(llm.ErrEmptyPrompt))
		})
	})

	Describe("ChatStream", func() {
		It("streams deltas and returns the aggregated response", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				events := []string{
					`{"id":"c","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"}}]}`,
					`{"id":"c","model":"gpt-4o","choices":[{"index":0,"delta":{"content":" world"},"finish_reason":"stop"}]}`,
					`{"id":"c","model":"gpt-4o","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`,
				}
				for _, ev := range events {
					fmt.Fprintf(w, "data: %s\n\n", ev)
				}
				fmt.Fprint(w, "data: [DONE]\n\n")
			}

			var parts []string
			var sawDone bool
			resp, err := p.ChatStream(ctx(), request(), func(chunk *llm.StreamChunk) error {
				if chunk.Done {
					sawDone = true
					return nil
				}
				parts = append(parts, chunk.Message.GetText())
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(parts).To(Equal([]string{"Hello", " world"}))
			Expect(sawDone).To(BeTrue())
			Expect(resp.Text()).To(Equal("Hello world"))
			Expect(resp.StopReason).To(Equal("stop"))
			Expect(resp.Usage.TotalTokens).To(Equal(12))
			Expect(lastBody["stream"]).To(BeTrue())
			Expect(strings.Contains(fmt.Sprint(lastBody["stream_options"]), "include_usage")).To(BeTrue())
		})
	})
})

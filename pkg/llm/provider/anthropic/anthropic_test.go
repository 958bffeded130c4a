package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/llm/provider/anthropic"
)

var _ = Describe("Anthropic Provider", func() {
	var (
		server   *httptest.Server
		lastBody map[string]any
		handler  http.HandlerFunc
		p        *anthropic.Provider
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			Expect(r.Header.Get("x-api-key")).To(Equal("sk-ant-test"))
			Expect(r.Header.Get("anthropic-version")).To(Equal("2023-06-01"))

			body, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &lastBody)).To(Succeed())

			handler(w, r)
		}))
		p = anthropic.New(anthropic.Config{APIKey: "sk-ant-test", BaseURL: server.URL})
	})

	AfterEach(func() {
		server.Close()
	})

	request := func() *llm.ChatRequest {
		return &llm.ChatRequest{
			Model:  "claude-3-5-haiku-20241022",
			System: "be brief",
			Messages: []llm.Message{
				llm.NewTextMessage(llm.RoleSystem, "cite sources"),
				llm.NewTextMessage(llm.RoleUser, "hello"),
			},
			Temperature: llm.Float64Ptr(0),
		}
	}

	Describe("Chat", func() {
		It("folds system messages and maps cache usage", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{
					"id": "msg_1", "type": "message", "role": "assistant",
					"model": "claude-3-5-haiku-20241022",
					"content": [{"type": "text", "text": "Hi there"}],
					"stop_reason": "end_turn",
					"usage": {"input_tokens": 20, "output_tokens": 5,
						"cache_creation_input_tokens": 100, "cache_read_input_tokens": 300}
				}`)
			}

			resp, err := p.Chat(context.Background(), request())
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text()).To(Equal("Hi there"))
			Expect(resp.StopReason).To(Equal("end_turn"))
			Expect(resp.Usage.PromptTokens).To(Equal(420))
			Expect(resp.Usage.UncachedPromptTokens()).To(Equal(20))
			Expect(resp.Usage.CacheReadInputTokens).To(Equal(300))
			Expect(resp.Usage.CacheCreationInputTokens).To(Equal(100))
			Expect(resp.Usage.TotalTokens).To(Equal(425))

			Expect(lastBody["system"]).To(Equal("be brief\n\ncite sources"))
			Expect(lastBody["max_tokens"]).To(BeNumerically("==", 1024))
			Expect(lastBody["temperature"]).To(BeNumerically("==", 0))
			Expect(lastBody["messages"]).To(HaveLen(1))
		})

		It("returns an APIError for failures", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(529)
				fmt.Fprint(w, `{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`)
			}

			_, err := p.Chat(context.Background(), request())
			var apiErr *llm.APIError
			Expect(err).To(BeAssignableToTypeOf(apiErr))
			Expect(err.Error()).To(ContainSubstring("Overloaded"))
		})
	})

	Describe("ChatStream", func() {
		It("parses SSE events into chunks", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "event: message_start\n"+
					`data: {"type":"message_start","message":{"id":"msg_1","model":"claude-3-5-haiku-20241022","usage":{"input_tokens":12,"output_tokens":1,"cache_read_input_tokens":8}}}`+"\n\n"+
					"event: content_block_delta\n"+
					`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`+"\n\n"+
					"event: ping\ndata: {\"type\":\"ping\"}\n\n"+
					"event: content_block_delta\n"+
					`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" there"}}`+"\n\n"+
					"event: message_delta\n"+
					`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":4}}`+"\n\n"+
					"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
			}

			var parts []string
			resp, err := p.ChatStream(context.Background(), request(), func(chunk *llm.StreamChunk) error {
				if !chunk.Done {
					parts = append(parts, chunk.Message.GetText())
				}
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(parts).To(Equal([]string{"Hello", " there"}))
			Expect(resp.Text()).To(Equal("Hello there"))
			Expect(resp.StopReason).To(Equal("end_turn"))
			Expect(resp.Usage.CompletionTokens).To(Equal(4))
			Expect(resp.Usage.PromptTokens).To(Equal(20))
			Expect(lastBody["stream"]).To(BeTrue())
		})

		It("fails when the stream is cut short", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "event: content_block_delta\n"+
					`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hel"}}`+"\n\n")
			}

			_, err := p.ChatStream(context.Background(), request(), func(*llm.StreamChunk) error { return nil })
			Expect(err).To(MatchError(ContainSubstring("ended before message_stop")))
		})

		It("surfaces error events", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "event: error\n"+
					`data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`+"\n\n")
			}

			_, err := p.ChatStream(context.Background(), request(), func(*llm.StreamChunk) error { return nil })
			Expect(err).To(MatchError(ContainSubstring("Overloaded")))
			Expect(llm.IsRetryable(err)).To(BeTrue())
		})
	})
})

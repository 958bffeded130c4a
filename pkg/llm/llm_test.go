package llm_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/llm"
)

var _ = Describe("Usage", func() {
	It("excludes cached tokens from the uncached prompt count", func() {
		u := &llm.Usage{PromptTokens: 1000, CacheReadInputTokens: 800, CacheCreationInputTokens: 150}
		Expect(u.UncachedPromptTokens()).To(Equal(50))
	})

	It("never reports a negative uncached count", func() {
		u := &llm.Usage{PromptTokens: 10, CacheReadInputTokens: 20}
		Expect(u.UncachedPromptTokens()).To(Equal(0))
	})

	It("is nil-safe", func() {
		var u *llm.Usage
		Expect(u.UncachedPromptTokens()).To(Equal(0))
		u.Add(&llm.Usage{PromptTokens: 1})
	})

	It("accumulates usage", func() {
		total := &llm.Usage{}
		total.Add(&llm.Usage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12, CacheReadInputTokens: 4})
		total.Add(&llm.Usage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6})
		total.Add(nil)
		Expect(*total).To(Equal(llm.Usage{PromptTokens: 15, CompletionTokens: 3, TotalTokens: 18, CacheReadInputTokens: 4}))
	})
})

var _ = Describe("Message", func() {
	It("concatenates text blocks", func() {
		m := llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: "text", Text: "Hello, "},
			{Type: "image"},
			{Type: "text", Text: "world"},
		}}
		Expect(m.GetText()).To(Equal("Hello, world"))
	})

	It("returns empty text for a nil response", func() {
		var resp *llm.ChatResponse
		Expect(resp.Text()).To(BeEmpty())
	})
})

var _ = Describe("APIError", func() {
	DescribeTable("Retryable",
		func(status int, want bool) {
			err := fmt.Errorf("wrapped: %w", &llm.APIError{Provider: "openai", StatusCode: status})
			Expect(llm.IsRetryable(err)).To(Equal(want))
		},
		Entry("rate limited", 429, true),
		Entry("server error", 500, true),
		Entry("overloaded gateway", 503, true),
		Entry("client closed", 499, true),
		Entry("bad request", 400, false),
		Entry("unauthorized", 401, false),
	)

	It("is not retryable for plain errors", func() {
		Expect(llm.IsRetryable(fmt.Errorf("boom"))).To(BeFalse())
	})
})

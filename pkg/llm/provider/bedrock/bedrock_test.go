package bedrock_test

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/llm/provider/bedrock"
)

type fakeInvoker struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

type throttled struct{}

func (throttled) Error() string       { return "ThrottlingException: slow down" }
func (throttled) HTTPStatusCode() int { return 429 }

var _ = Describe("Bedrock Provider", func() {
	var (
		fake *fakeInvoker
		p    *bedrock.Provider
		req  *llm.ChatRequest
	)

	BeforeEach(func() {
		fake = &fakeInvoker{
			body: `{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"context"}],
				"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":2,"cache_read_input_tokens":90}}`,
		}
		var err error
		p, err = bedrock.New(context.Background(), bedrock.Config{Client: fake})
		Expect(err).NotTo(HaveOccurred())

		req = &llm.ChatRequest{
			Model:    "anthropic.claude-3-haiku-20240307-v1:0",
			System:   "situate",
			Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "chunk")},
		}
	})

	It("sends an Anthropic body with the bedrock version", func() {
		resp, err := p.Chat(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Text()).To(Equal("context"))
		Expect(resp.Model).To(Equal(req.Model))
		Expect(resp.Usage.PromptTokens).To(Equal(100))
		Expect(resp.Usage.CacheReadInputTokens).To(Equal(90))

		Expect(*fake.input.ModelId).To(Equal(req.Model))
		var body map[string]any
		Expect(json.Unmarshal(fake.input.Body, &body)).To(Succeed())
		Expect(body["anthropic_version"]).To(Equal("bedrock-2023-05-31"))
		Expect(body["system"]).To(Equal("situate"))
		Expect(body).NotTo(HaveKey("model"))
	})

	It("delivers a streamed response as a single chunk", func() {
		var chunks []*llm.StreamChunk
		_, err := p.ChatStream(context.Background(), req, func(c *llm.StreamChunk) error {
			chunks = append(chunks, c)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(chunks).To(HaveLen(2))
		Expect(chunks[0].Message.GetText()).To(Equal("context"))
		Expect(chunks[1].Done).To(BeTrue())
	})

	It("maps HTTP status errors to retryable API errors", func() {
		fake.err = throttled{}
		_, err := p.Chat(context.Background(), req)
		Expect(llm.IsRetryable(err)).To(BeTrue())
	})

	It("wraps other errors", func() {
		fake.err = errors.New("no credentials")
		_, err := p.Chat(context.Background(), req)
		Expect(err).To(MatchError(ContainSubstring("no credentials")))
		Expect(llm.IsRetryable(err)).To(BeFalse())
	})
})

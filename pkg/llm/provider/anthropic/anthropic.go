// Package anthropic implements the chat provider for Anthropic's Messages
// API, including prompt caching usage and SSE streaming.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/sse"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 1024

	// streamTailSize bounds the raw stream bytes kept for error reports.
	streamTailSize = 2048
)

// Config configures the Anthropic provider.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Provider is a chat client for the Anthropic Messages API.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// New creates an Anthropic provider.
func New(cfg Config) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (p *Provider) Name() string {
	return "anthropic"
}

func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := p.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return ParseResponse(body)
}

func (p *Provider) ChatStream(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) (*llm.ChatResponse, error) {
	resp, err := p.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	tail := &tailBuffer{max: streamTailSize}
	reader := sse.NewTeeReader(resp.Body, tail)

	var (
		text    strings.Builder
		final   = &llm.ChatResponse{Model: req.Model, CreatedAt: time.Now()}
		usage   = &anthropicUsage{}
		stopped bool
	)

	for {
		ev, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}
		if ev == nil {
			break
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
			return nil, fmt.Errorf("decode %s event: %w", ev.Type, err)
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				final.Model = event.Message.Model
				if event.Message.Usage != nil {
					*usage = *event.Message.Usage
				}
			}

		case "content_block_delta":
			if event.Delta == nil || event.Delta.Text == "" {
				continue
			}
			text.WriteString(event.Delta.Text)
			if err := fn(llm.NewTextChunk(final.Model, event.Delta.Text)); err != nil {
				return nil, err
			}

		case "message_delta":
			if event.Delta != nil && event.Delta.StopReason != "" {
				final.StopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}

		case "message_stop":
			stopped = true

		case "error":
			msg := ev.Data
			if event.Error != nil {
				msg = event.Error.Message
			}
			return nil, &llm.APIError{Provider: p.Name(), StatusCode: http.StatusServiceUnavailable, Message: msg}
		}
	}

	if !stopped {
		return nil, fmt.Errorf("anthropic stream ended before message_stop: %q", tail.String())
	}

	final.Message = llm.NewTextMessage(llm.RoleAssistant, text.String())
	final.Usage = convertUsage(usage)

	if err := fn(&llm.StreamChunk{
		Model:      final.Model,
		CreatedAt:  time.Now(),
		Done:       true,
		StopReason: final.StopReason,
		Usage:      final.Usage,
	}); err != nil {
		return nil, err
	}

	return final, nil
}

func (p *Provider) post(ctx context.Context, req *llm.ChatRequest, stream bool) (*http.Response, error) {
	body, err := buildRequest(req, stream)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		msg := string(raw)
		var errResp anthropicErrorResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != nil {
			msg = errResp.Error.Message
		}
		return nil, &llm.APIError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: msg}
	}

	return resp, nil
}

// buildRequest converts a ChatRequest into the Messages API body. System
// messages inside Messages are folded into the top-level system prompt.
func buildRequest(req *llm.ChatRequest, stream bool) (*anthropicRequest, error) {
	if len(req.Messages) == 0 {
		return nil, llm.ErrEmptyPrompt
	}

	system := req.System
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.GetText()
			continue
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.GetText()})
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return &anthropicRequest{
		Model:       req.Model,
		Messages:    messages,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      stream,
	}, nil
}

// ParseResponse converts a Messages API response body. Bedrock returns the
// same shape from InvokeModel.
func ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	content := make([]llm.ContentBlock, 0, len(resp.Content))
	for _, block := range resp.Content {
		if block.Type == "text" {
			content = append(content, llm.ContentBlock{Type: "text", Text: block.Text})
		}
	}
	if len(content) == 0 {
		return nil, llm.ErrNoChoices
	}

	return &llm.ChatResponse{
		Model: resp.Model,
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: content,
		},
		StopReason: resp.StopReason,
		Usage:      convertUsage(resp.Usage),
		CreatedAt:  time.Now(),
	}, nil
}

// convertUsage folds the cache counters back into PromptTokens; Anthropic
// reports input_tokens without them.
func convertUsage(u *anthropicUsage) *llm.Usage {
	if u == nil {
		return nil
	}
	prompt := u.InputTokens + u.CacheReadInputTokens + u.CacheCreationInputTokens
	return &llm.Usage{
		PromptTokens:             prompt,
		CompletionTokens:         u.OutputTokens,
		TotalTokens:              prompt + u.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}


// Package bedrock implements the chat provider for Anthropic models hosted on
// AWS Bedrock. Credentials come from the default AWS chain.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/llm/provider/anthropic"
)

const (
	bedrockAnthropicVersion = "bedrock-2023-05-31"
	defaultMaxTokens        = 1024
)

// Invoker is the subset of the bedrockruntime client used by the provider.
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config configures the Bedrock provider.
type Config struct {
	Region string

	// Client overrides the AWS client, mainly for tests.
	Client Invoker
}

// Provider is a chat client for Bedrock InvokeModel.
type Provider struct {
	client Invoker
}

// New creates a Bedrock provider. When no Client is configured the default
// AWS config is loaded for the given region.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Client != nil {
		return &Provider{client: cfg.Client}, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Provider{client: bedrockruntime.NewFromConfig(awsCfg)}, nil
}

func (p *Provider) Name() string {
	return "bedrock"
}

func (p *Provider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, convertError(err)
	}

	resp, err := anthropic.ParseResponse(out.Body)
	if err != nil {
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return resp, nil
}

// ChatStream performs a regular invocation and delivers the result as a
// single chunk followed by the final Done chunk.
func (p *Provider) ChatStream(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) (*llm.ChatResponse, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := fn(llm.NewTextChunk(resp.Model, resp.Text())); err != nil {
		return nil, err
	}
	if err := fn(&llm.StreamChunk{
		Model:      resp.Model,
		CreatedAt:  resp.CreatedAt,
		Done:       true,
		StopReason: resp.StopReason,
		Usage:      resp.Usage,
	}); err != nil {
		return nil, err
	}
	return resp, nil
}

func buildRequest(req *llm.ChatRequest) ([]byte, error) {
	if len(req.Messages) == 0 {
		return nil, llm.ErrEmptyPrompt
	}

	system := req.System
	messages := make([]invokeMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.GetText()
			continue
		}
		messages = append(messages, invokeMessage{Role: m.Role, Content: m.GetText()})
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		Messages:         messages,
		System:           system,
		MaxTokens:        maxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		Stop:             req.Stop,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return body, nil
}

// statusCoder matches smithy response errors without importing smithy.
type statusCoder interface {
	HTTPStatusCode() int
}

func convertError(err error) error {
	var sc statusCoder
	if errors.As(err, &sc) {
		return &llm.APIError{Provider: "bedrock", StatusCode: sc.HTTPStatusCode(), Message: err.Error()}
	}
	return fmt.Errorf("bedrock invoke: %w", err)
}

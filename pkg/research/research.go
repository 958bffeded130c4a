// Package research answers questions from the contextual vector database.
// Each question retrieves the most similar chunks, numbers them as excerpts
// in the answer prompt and asks the model to answer with citations.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/researcher/pkg/llm"
	"github.com/papercomputeco/researcher/pkg/llm/provider"
	"github.com/papercomputeco/researcher/pkg/pricing"
	"github.com/papercomputeco/researcher/pkg/prompts"
	"github.com/papercomputeco/researcher/pkg/rag"
	"github.com/papercomputeco/researcher/pkg/tracing"
)

// ErrEmptyQuestion is returned by Ask for blank questions.
var ErrEmptyQuestion = errors.New("question is empty")

// Retriever finds the chunks most similar to a query. *rag.DB implements it.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]rag.Result, error)
}

// Config wires a Researcher.
type Config struct {
	Retriever Retriever
	Provider  provider.Provider

	// Tracer may be nil.
	Tracer *tracing.Tracer
	Logger *slog.Logger

	// Prompts defaults to prompts.Default().
	Prompts *prompts.Set

	// Pricing defaults to pricing.DefaultPricing().
	Pricing pricing.Table

	Model       string
	Temperature float64
	MaxTokens   int
	TopK        int
}

// Researcher answers questions.
type Researcher struct {
	retriever Retriever
	provider  provider.Provider
	tracer    *tracing.Tracer
	logger    *slog.Logger
	prompts   *prompts.Set
	pricing   pricing.Table

	model       string
	temperature float64
	maxTokens   int
	topK        int
}

// New builds a Researcher.
func New(cfg Config) (*Researcher, error) {
	if cfg.Retriever == nil || cfg.Provider == nil {
		return nil, errors.New("research: retriever and provider are required")
	}

	r := &Researcher{
		retriever:   cfg.Retriever,
		provider:    cfg.Provider,
		tracer:      cfg.Tracer,
		logger:      cfg.Logger,
		prompts:     cfg.Prompts,
		pricing:     cfg.Pricing,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		topK:        cfg.TopK,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.prompts == nil {
		r.prompts = prompts.Default()
	}
	if r.pricing == nil {
		r.pricing = pricing.DefaultPricing()
	}
	if r.model == "" {
		r.model = rag.DefaultModel
	}
	if r.maxTokens <= 0 {
		r.maxTokens = rag.DefaultMaxTokens
	}
	if r.topK <= 0 {
		r.topK = rag.DefaultTopK
	}
	return r, nil
}

// AskOptions tunes a single Ask.
type AskOptions struct {
	// TopK overrides the number of excerpts retrieved.
	TopK int

	// Model overrides the answering model.
	Model string

	// OnToken streams the answer as it is generated. Returning an error
	// aborts the answer.
	OnToken func(text string) error

	// History holds earlier turns of a conversation, oldest first.
	History []llm.Message
}

// Source is a retrieved chunk cited in an answer as [N].
type Source struct {
	N int `json:"n"`
	rag.Result
}

// Label names the source in prompts and listings.
func (s Source) Label() string {
	return s.Chunk.DocID + "/" + s.Chunk.ChunkID
}

// Answer is the result of Ask.
type Answer struct {
	Question string     `json:"question"`
	Text     string     `json:"answer"`
	Sources  []Source   `json:"sources"`
	Model    string     `json:"model"`
	Usage    *llm.Usage `json:"usage,omitempty"`

	// Cost is zero when the model has no known pricing.
	Cost pricing.Cost `json:"cost"`
}

// Ask retrieves excerpts for question and asks the model to answer from
// them. When nothing has been indexed yet the model is still asked and the
// prompt says no excerpts were found.
func (r *Researcher) Ask(ctx context.Context, question string, opts AskOptions) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	var answer *Answer
	err := tracing.Op(ctx, r.tracer, "ask", tracing.RunTypeChain, map[string]any{
		"question": question,
	}, func(ctx context.Context, run *tracing.Run) error {
		var err error
		answer, err = r.ask(ctx, question, opts)
		if err == nil {
			run.SetOutput("answer", answer.Text)
			run.SetOutput("sources", len(answer.Sources))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return answer, nil
}

func (r *Researcher) ask(ctx context.Context, question string, opts AskOptions) (*Answer, error) {
	k := opts.TopK
	if k <= 0 {
		k = r.topK
	}
	model := opts.Model
	if model == "" {
		model = r.model
	}

	results, err := r.retriever.Search(ctx, question, k)
	switch {
	case errors.Is(err, rag.ErrNoData):
		r.logger.Warn("no indexed data, answering without excerpts")
		results = nil
	case err != nil:
		return nil, fmt.Errorf("retrieving excerpts: %w", err)
	}

	sources := make([]Source, len(results))
	excerpts := make([]prompts.Excerpt, len(results))
	for i, res := range results {
		sources[i] = Source{N: i + 1, Result: res}
		excerpts[i] = prompts.Excerpt{
			N:          i + 1,
			Source:     sources[i].Label(),
			Content:    res.Chunk.OriginalContent,
			Similarity: res.Similarity,
		}
	}

	user, err := r.prompts.Answer.Render(prompts.AnswerData{Question: question, Excerpts: excerpts})
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(opts.History)+1)
	messages = append(messages, opts.History...)
	messages = append(messages, llm.NewTextMessage(llm.RoleUser, user))

	req := &llm.ChatRequest{
		Model:       model,
		System:      r.prompts.Answer.System,
		Messages:    messages,
		MaxTokens:   llm.IntPtr(r.maxTokens),
		Temperature: llm.Float64Ptr(r.temperature),
	}

	resp, err := r.generate(ctx, req, opts.OnToken)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		Question: question,
		Text:     resp.Text(),
		Sources:  sources,
		Model:    model,
		Usage:    resp.Usage,
	}
	if resp.Model != "" {
		answer.Model = resp.Model
	}
	if cost, ok := r.pricing.CostForUsage(answer.Model, resp.Usage); ok {
		answer.Cost = cost
	} else {
		r.logger.Debug("no pricing for model", "model", answer.Model)
	}
	return answer, nil
}

// generate calls the model as a traced llm run, streaming when onToken is
// set.
func (r *Researcher) generate(ctx context.Context, req *llm.ChatRequest, onToken func(string) error) (*llm.ChatResponse, error) {
	ctx, run := r.tracer.Start(ctx, "generate_answer", tracing.RunTypeLLM, map[string]any{
		"model":    req.Model,
		"system":   req.System,
		"messages": req.Messages,
	})
	run.SetMetadata("provider", r.provider.Name())
	run.SetMetadata("stream", onToken != nil)

	var (
		resp *llm.ChatResponse
		err  error
	)
	if onToken != nil {
		resp, err = r.provider.ChatStream(ctx, req, func(chunk *llm.StreamChunk) error {
			if text := chunk.Message.GetText(); text != "" {
				return onToken(text)
			}
			return nil
		})
	} else {
		resp, err = r.provider.Chat(ctx, req)
	}
	if err != nil {
		r.logger.Error("error generating answer", "error", err)
		run.End(nil, err)
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	run.End(map[string]any{"content": resp.Text(), "usage": resp.Usage}, nil)
	return resp, nil
}

// Package pricing holds per-million-token model prices and computes the
// cost of a completion from its usage.
package pricing

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/papercomputeco/researcher/pkg/llm"
)

// Pricing is the USD price per million tokens of each kind.
type Pricing struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheRead  float64 `json:"cache_read,omitempty"`
	CacheWrite float64 `json:"cache_write,omitempty"`
}

// Table maps a normalized model name to its pricing.
type Table map[string]Pricing

// Cost is the price of one or more completions in USD.
type Cost struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
	Total  float64 `json:"total"`
}

// Add accumulates other into c.
func (c *Cost) Add(other Cost) {
	c.Input += other.Input
	c.Output += other.Output
	c.Total += other.Total
}

func DefaultPricing() Table {
	return Table{
		"claude-opus-4.6":   {Input: 5.00, Output: 25.00, CacheRead: 0.50, CacheWrite: 6.25},
		"claude-opus-4.5":   {Input: 5.00, Output: 25.00, CacheRead: 0.50, CacheWrite: 6.25},
		"claude-opus-4.1":   {Input: 15.00, Output: 75.00, CacheRead: 1.50, CacheWrite: 18.75},
		"claude-opus-4":     {Input: 15.00, Output: 75.00, CacheRead: 1.50, CacheWrite: 18.75},
		"claude-sonnet-4.5": {Input: 3.00, Output: 15.00, CacheRead: 0.30, CacheWrite: 3.75},
		"claude-sonnet-4":   {Input: 3.00, Output: 15.00, CacheRead: 0.30, CacheWrite: 3.75},
		"claude-sonnet-3.7": {Input: 3.00, Output: 15.00, CacheRead: 0.30, CacheWrite: 3.75},
		"claude-haiku-4.5":  {Input: 1.00, Output: 5.00, CacheRead: 0.10, CacheWrite: 1.25},
		"claude-3.5-sonnet": {Input: 3.00, Output: 15.00, CacheRead: 0.30, CacheWrite: 3.75},
		"claude-3.5-haiku":  {Input: 0.80, Output: 4.00, CacheRead: 0.08, CacheWrite: 1.00},
		"claude-3-haiku":    {Input: 0.25, Output: 1.25, CacheRead: 0.03, CacheWrite: 0.30},
		"claude-3-opus":     {Input: 15.00, Output: 75.00, CacheRead: 1.50, CacheWrite: 18.75},
		"gpt-4o":            {Input: 2.50, Output: 10.00, CacheRead: 1.25, CacheWrite: 2.50},
		"gpt-4o-mini":       {Input: 0.15, Output: 0.60, CacheRead: 0.075, CacheWrite: 0.15},
		"gpt-4.1":           {Input: 2.00, Output: 8.00, CacheRead: 0.50, CacheWrite: 2.00},
		"gpt-4.1-mini":      {Input: 0.40, Output: 1.60, CacheRead: 0.10, CacheWrite: 0.40},
		"gpt-4.1-nano":      {Input: 0.10, Output: 0.40, CacheRead: 0.025, CacheWrite: 0.10},
		"o3":                {Input: 2.00, Output: 8.00, CacheRead: 0.50, CacheWrite: 2.00},
		"o3-mini":           {Input: 1.10, Output: 4.40, CacheRead: 0.55, CacheWrite: 1.10},
		"o4-mini":           {Input: 1.10, Output: 4.40, CacheRead: 0.275, CacheWrite: 1.10},
		"o1":                {Input: 15.00, Output: 60.00, CacheRead: 7.50, CacheWrite: 15.00},
		"deepseek-r1":       {Input: 0.55, Output: 2.19, CacheRead: 0.14},

		"text-embedding-3-small": {Input: 0.02},
		"text-embedding-3-large": {Input: 0.13},
	}
}

// LoadPricing returns the default table with the JSON overrides at path
// applied. An empty path returns the defaults.
func LoadPricing(path string) (Table, error) {
	pricing := DefaultPricing()
	if path == "" {
		return pricing, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	var overrides map[string]Pricing
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse pricing file: %w", err)
	}

	maps.Copy(pricing, overrides)

	return pricing, nil
}

// ForModel looks model up by its normalized name, then verbatim.
func (t Table) ForModel(model string) (Pricing, bool) {
	price, ok := t[NormalizeModel(model)]
	if ok {
		return price, true
	}
	price, ok = t[model]
	return price, ok
}

// CostForUsage prices usage for model. Unknown models and nil usage cost
// nothing and report false.
func (t Table) CostForUsage(model string, usage *llm.Usage) (Cost, bool) {
	price, ok := t.ForModel(model)
	if !ok || usage == nil {
		return Cost{}, false
	}
	return CostForTokensWithCache(price,
		int64(usage.PromptTokens),
		int64(usage.CompletionTokens),
		int64(usage.CacheCreationInputTokens),
		int64(usage.CacheReadInputTokens),
	), true
}

// CostForTokens calculates cost using base input/output pricing.
func CostForTokens(pricing Pricing, inputTokens, outputTokens int64) Cost {
	input := perMillion(inputTokens, pricing.Input)
	output := perMillion(outputTokens, pricing.Output)
	return Cost{Input: input, Output: output, Total: input + output}
}

// CostForTokensWithCache prices the uncached part of inputTokens at the
// input rate and each cache counter at its own rate.
func CostForTokensWithCache(pricing Pricing, inputTokens, outputTokens, cacheCreation, cacheRead int64) Cost {
	if cacheCreation == 0 && cacheRead == 0 {
		return CostForTokens(pricing, inputTokens, outputTokens)
	}

	baseInput := max(inputTokens-cacheCreation-cacheRead, 0)

	input := perMillion(baseInput, pricing.Input)
	input += perMillion(cacheCreation, pricing.CacheWrite)
	input += perMillion(cacheRead, pricing.CacheRead)
	output := perMillion(outputTokens, pricing.Output)
	return Cost{Input: input, Output: output, Total: input + output}
}

func perMillion(tokens int64, rate float64) float64 {
	return float64(tokens) / 1_000_000.0 * rate
}

// NormalizeModel lowercases model and strips provider prefixes, date
// suffixes and dashed version numbers so that dated and routed names share
// one table entry.
func NormalizeModel(model string) string {
	normalized := strings.ToLower(strings.TrimSpace(model))
	if normalized == "" {
		return normalized
	}

	// "openai/gpt-4o", "azure/gpt-4o"
	if idx := strings.LastIndex(normalized, "/"); idx != -1 {
		normalized = normalized[idx+1:]
	}

	// Bedrock ids: "anthropic.claude-3-5-sonnet-20240620-v1:0"
	normalized = strings.TrimPrefix(normalized, "anthropic.")
	if idx := strings.Index(normalized, "-v1:"); idx != -1 {
		normalized = normalized[:idx]
	}

	// Ollama tags: "llama3:8b"
	if idx := strings.Index(normalized, ":"); idx != -1 {
		normalized = normalized[:idx]
	}

	// Anthropic-style date suffix: -YYYYMMDD
	if idx := strings.LastIndex(normalized, "-"); idx != -1 {
		suffix := normalized[idx+1:]
		if len(suffix) == 8 && isDigits(suffix) {
			normalized = normalized[:idx]
		}
	}

	normalized = stripOpenAIDateSuffix(normalized)

	for _, v := range []string{"4-6", "4-5", "4-1", "3-7", "3-5"} {
		normalized = strings.ReplaceAll(normalized, "-"+v, "-"+strings.Replace(v, "-", ".", 1))
	}
	return normalized
}

// stripOpenAIDateSuffix removes a trailing -YYYY-MM-DD date suffix from a model name.
func stripOpenAIDateSuffix(model string) string {
	if len(model) < 12 {
		return model
	}

	suffix := model[len(model)-11:]
	if suffix[0] != '-' {
		return model
	}
	date := suffix[1:]
	if isDigits(date[0:4]) && date[4] == '-' && isDigits(date[5:7]) && date[7] == '-' && isDigits(date[8:10]) {
		return model[:len(model)-11]
	}
	return model
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

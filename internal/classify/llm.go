package classify

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LLMClassifier asks any langchaingo chat model for a JSON categorization.
type LLMClassifier struct {
	model llms.Model
	opts  []llms.CallOption
}

func NewLLMClassifier(model llms.Model, opts ...llms.CallOption) *LLMClassifier {
	return &LLMClassifier{model: model, opts: opts}
}

func (c *LLMClassifier) Classify(ctx context.Context, items, sections []Candidate) ([]Assignment, error) {
	if c == nil || c.model == nil {
		return nil, ErrNotConfigured
	}
	prompt, err := BuildPrompt(items, sections)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	opts := append([]llms.CallOption{llms.WithJSONMode(), llms.WithTemperature(0)}, c.opts...)
	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return ParseAssignments(resp.Choices[0].Content)
}

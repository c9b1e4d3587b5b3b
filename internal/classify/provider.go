package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// New builds the classifier for opts.Provider. An empty provider or "none"
// yields a nil Classifier.
func New(ctx context.Context, opts Options) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "none":
		return nil, nil
	case "openai":
		o := []openai.Option{openai.WithToken(opts.APIKey)}
		if opts.BaseURL != "" {
			o = append(o, openai.WithBaseURL(opts.BaseURL))
		}
		if opts.Model != "" {
			o = append(o, openai.WithModel(opts.Model))
		}
		llm, err := openai.New(o...)
		if err != nil {
			return nil, fmt.Errorf("create openai classifier: %w", err)
		}
		return NewLLMClassifier(llm), nil
	case "anthropic":
		o := []anthropic.Option{anthropic.WithToken(opts.APIKey)}
		if opts.BaseURL != "" {
			o = append(o, anthropic.WithBaseURL(opts.BaseURL))
		}
		if opts.Model != "" {
			o = append(o, anthropic.WithModel(opts.Model))
		}
		llm, err := anthropic.New(o...)
		if err != nil {
			return nil, fmt.Errorf("create anthropic classifier: %w", err)
		}
		return NewLLMClassifier(llm), nil
	case "gemini":
		return NewGeminiClassifier(ctx, opts.APIKey, opts.Model, opts.BaseURL)
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", opts.Provider)
	}
}

package classify

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClassifier uses the Gemini API with a response schema so the reply
// is constrained to the categorization shape.
type GeminiClassifier struct {
	models contentGenerator
	model  string
}

func NewGeminiClassifier(ctx context.Context, apiKey, model, baseURL string) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiClassifier(client.Models, model), nil
}

func newGeminiClassifier(models contentGenerator, model string) *GeminiClassifier {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiClassifier{models: models, model: model}
}

func assignmentSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"categorized": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"item_id":    {Type: genai.TypeInteger},
						"section_id": {Type: genai.TypeInteger},
					},
					Required: []string{"item_id", "section_id"},
				},
			},
		},
		Required: []string{"categorized"},
	}
}

func (g *GeminiClassifier) Classify(ctx context.Context, items, sections []Candidate) ([]Assignment, error) {
	if g == nil || g.models == nil {
		return nil, ErrNotConfigured
	}
	prompt, err := BuildPrompt(items, sections)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    assignmentSchema(),
			Temperature:       genai.Ptr[float32](0),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	return ParseAssignments(resp.Text())
}

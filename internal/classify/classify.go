// Package classify proposes item to section assignments by asking a
// language model to categorize item names.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformedResponse wraps any classifier output that does not match the response schema.
	ErrMalformedResponse = errors.New("malformed classifier response")
	ErrNotConfigured     = errors.New("classifier not configured")
)

// Candidate is the {id, name} view of an item or section sent to the model.
type Candidate struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Assignment is a proposed placement. It is not guaranteed to reference a
// real item or section.
type Assignment struct {
	ItemID    int64 `json:"item_id"`
	SectionID int64 `json:"section_id"`
}

type Classifier interface {
	Classify(ctx context.Context, items, sections []Candidate) ([]Assignment, error)
}

const systemPrompt = `You are a helpful store manager assistant. You receive a JSON object with the
shopping list items that have no section yet and the sections of one store.
Place each item into the section where a shopper would find it.
Each item can be in at most one section. If an item doesn't belong in any of
the sections, leave it out. Reply with JSON only, shaped as
{"categorized":[{"item_id":<item id>,"section_id":<section id>}]}.`

type promptPayload struct {
	Items    []Candidate `json:"items"`
	Sections []Candidate `json:"sections"`
}

// BuildPrompt serializes the candidate sets as the user message.
func BuildPrompt(items, sections []Candidate) (string, error) {
	if items == nil {
		items = []Candidate{}
	}
	if sections == nil {
		sections = []Candidate{}
	}
	b, err := json.Marshal(promptPayload{Items: items, Sections: sections})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseAssignments validates a raw model reply against
// {"categorized":[{"item_id":int,"section_id":int}]}.
func ParseAssignments(raw string) ([]Assignment, error) {
	raw = stripCodeFence(raw)
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrMalformedResponse)
	}
	list := gjson.Get(raw, "categorized")
	if !list.Exists() {
		return nil, fmt.Errorf("%w: missing categorized", ErrMalformedResponse)
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: categorized is not an array", ErrMalformedResponse)
	}
	entries := list.Array()
	out := make([]Assignment, 0, len(entries))
	for i, entry := range entries {
		itemID, err := integerField(entry, "item_id")
		if err != nil {
			return nil, fmt.Errorf("%w: categorized[%d]: %v", ErrMalformedResponse, i, err)
		}
		sectionID, err := integerField(entry, "section_id")
		if err != nil {
			return nil, fmt.Errorf("%w: categorized[%d]: %v", ErrMalformedResponse, i, err)
		}
		out = append(out, Assignment{ItemID: itemID, SectionID: sectionID})
	}
	return out, nil
}

func integerField(entry gjson.Result, name string) (int64, error) {
	if !entry.IsObject() {
		return 0, fmt.Errorf("entry is not an object")
	}
	v := entry.Get(name)
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%s is not a number", name)
	}
	if v.Num != float64(v.Int()) {
		return 0, fmt.Errorf("%s is not an integer", name)
	}
	return v.Int(), nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

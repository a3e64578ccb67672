package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiTranslator struct {
	client *genai.Client
	model  string
}

func NewGeminiTranslator(ctx context.Context, apiKey, model string) (*GeminiTranslator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiTranslator{client: client, model: model}, nil
}

func (t *GeminiTranslator) Translate(ctx context.Context, instruction, text string) (string, error) {
	// SystemInstruction is model state; build a model per call.
	model := t.client.GenerativeModel(t.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(instruction)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return firstText(resp)
}

func (t *GeminiTranslator) Close() error {
	return t.client.Close()
}

// firstText joins the text parts of the first candidate.
func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyCompletion
	}
	return b.String(), nil
}

package translate

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAITranslator struct {
	client *openai.Client
	model  string
}

// NewOpenAITranslator creates a chat-completions translator. baseURL may point
// at any OpenAI-compatible endpoint; empty means the public API.
func NewOpenAITranslator(apiKey, model, baseURL string) *OpenAITranslator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAITranslator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (t *OpenAITranslator) Translate(ctx context.Context, instruction, text string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

func (t *OpenAITranslator) Close() error {
	return nil
}

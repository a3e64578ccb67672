package translate

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/catalog-sync/internal/config"
)

var ErrEmptyCompletion = errors.New("language model returned no completion")

// Translator sends text with a system instruction to a language model and
// returns the model's answer.
type Translator interface {
	Translate(ctx context.Context, instruction, text string) (string, error)
	Close() error
}

// New builds the translator for the configured provider.
func New(ctx context.Context, cfg config.TranslatorConfig) (Translator, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAITranslator(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	case config.ProviderGemini:
		return NewGeminiTranslator(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: got %q", config.ErrInvalidProvider, cfg.Provider)
	}
}

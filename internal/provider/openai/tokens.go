package openai

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// TokenCounter считает токены промпта энкодером модели.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter выбирает энкодер по модели, для неизвестных моделей берет cl100k_base.
func NewTokenCounter(model string) (*TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer for model %q: %w", model, err)
		}
	}
	return &TokenCounter{enc: enc}, nil
}

func (c *TokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

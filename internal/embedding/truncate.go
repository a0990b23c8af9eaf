package embedding

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Truncator cuts text to a token budget before it is sent to a remote model.
type Truncator struct {
	codec     tokenizer.Codec
	maxTokens int
}

// NewTruncator creates a truncator using the cl100k_base encoding.
func NewTruncator(maxTokens int) (*Truncator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Truncator{codec: codec, maxTokens: maxTokens}, nil
}

// Truncate returns text unchanged when it fits the budget, otherwise the
// decoded prefix of its first maxTokens tokens.
func (t *Truncator) Truncate(text string) (string, error) {
	if t.maxTokens <= 0 {
		return text, nil
	}
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return "", fmt.Errorf("tokenize: %w", err)
	}
	if len(ids) <= t.maxTokens {
		return text, nil
	}
	return t.codec.Decode(ids[:t.maxTokens])
}

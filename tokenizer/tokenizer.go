// Package tokenizer adapts external tokenizers to the token-id batch
// contract consumed by the encoding pipeline. The tokenizer configuration
// itself is opaque to this module and assumed correct.
package tokenizer

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/hupe1980/staticembed/internal/conv"
)

// Encoder turns raw texts into ordered token-id sequences, one output
// per input text, order-preserving.
type Encoder interface {
	EncodeBatch(texts []string) ([][]uint32, error)
	Close() error
}

// HuggingFace wraps a tokenizer loaded from a HuggingFace tokenizer.json
// file. It applies whatever special-token handling the loaded
// configuration specifies, nothing more.
type HuggingFace struct {
	tk *tokenizer.Tokenizer
}

var _ Encoder = (*HuggingFace)(nil)

// Open loads the tokenizer configuration at path.
func Open(path string) (*HuggingFace, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	return &HuggingFace{tk: tk}, nil
}

// EncodeBatch implements Encoder.
func (h *HuggingFace) EncodeBatch(texts []string) ([][]uint32, error) {
	if len(texts) == 0 {
		return [][]uint32{}, nil
	}

	inputs := make([]tokenizer.EncodeInput, len(texts))
	for i, text := range texts {
		inputs[i] = tokenizer.NewSingleEncodeInput(tokenizer.NewInputSequence(text))
	}

	encodings, err := h.tk.EncodeBatch(inputs, true)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	if len(encodings) != len(texts) {
		return nil, fmt.Errorf("tokenizer: got %d encodings for %d texts", len(encodings), len(texts))
	}

	out := make([][]uint32, len(encodings))
	for i := range encodings {
		ids := make([]uint32, len(encodings[i].Ids))
		for j, id := range encodings[i].Ids {
			u, err := conv.IntToUint32(id)
			if err != nil {
				return nil, fmt.Errorf("tokenizer: %w", err)
			}
			ids[j] = u
		}
		out[i] = ids
	}
	return out, nil
}

// Close implements Encoder. The loaded tokenizer holds no OS resources.
func (h *HuggingFace) Close() error { return nil }

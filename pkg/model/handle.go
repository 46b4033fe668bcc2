// Package model owns the pretrained translation model: constructing it once
// per process through a backend, and sharing the resulting handle.
package model

import (
	"context"
	"io"
	"time"
)

// Encoding is tokenized model input.
type Encoding struct {
	InputIDs      [][]int `json:"input_ids"`
	AttentionMask [][]int `json:"attention_mask"`
}

// GenerateOptions constrains generation.
type GenerateOptions struct {
	// ForcedBOSTokenID fixes the first generated token (the target language tag).
	ForcedBOSTokenID int `json:"forced_bos_token_id"`
	// MaxLength caps the generated sequence length in tokens.
	MaxLength int `json:"max_length"`
	// NumBeams is the beam search width.
	NumBeams int `json:"num_beams"`
}

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	// Encode tokenizes text as the given source language tag, padding and
	// truncating to maxLength tokens.
	Encode(ctx context.Context, text, srcLang string, maxLength int) (Encoding, error)
	// LangCodeToID returns the token id of a language tag such as "es_XX".
	LangCodeToID(ctx context.Context, langTag string) (int, error)
	// Decode turns generated sequences back into text.
	Decode(ctx context.Context, sequences [][]int, skipSpecialTokens bool) ([]string, error)
}

// Model generates output token sequences.
type Model interface {
	Generate(ctx context.Context, enc Encoding, opts GenerateOptions) ([][]int, error)
}

// Pinger is implemented by models that live in another process and can be
// checked for liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handle pairs a loaded model with its tokenizer. A Handle is never mutated
// after construction and is shared read-only by all callers.
type Handle struct {
	Artifact  string
	Backend   string
	LoadedAt  time.Time
	Model     Model
	Tokenizer Tokenizer

	closer io.Closer
}

// NewHandle assembles a handle. closer may be nil.
func NewHandle(artifact, backend string, model Model, tokenizer Tokenizer, closer io.Closer) *Handle {
	return &Handle{
		Artifact:  artifact,
		Backend:   backend,
		LoadedAt:  time.Now(),
		Model:     model,
		Tokenizer: tokenizer,
		closer:    closer,
	}
}

// Ping checks that the backend behind the handle still answers. Models that
// do not implement Pinger are always considered alive.
func (h *Handle) Ping(ctx context.Context) error {
	if p, ok := h.Model.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases backend resources held by the handle.
func (h *Handle) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

// Loader constructs a model handle from an artifact identifier, caching
// downloaded weights under cacheDir.
type Loader interface {
	Load(ctx context.Context, artifact, cacheDir string) (*Handle, error)
	// Name identifies the backend in logs and metrics.
	Name() string
}

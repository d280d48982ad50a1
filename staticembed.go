// Package staticembed provides static sentence-embedding inference:
// text is tokenized, the precomputed per-token vectors are looked up in a
// memory-mapped safetensors table, and the rows are mean-pooled into a
// fixed-length sentence embedding. No neural forward pass is involved,
// which makes encoding cheap enough for memory-constrained targets.
//
// # Quick Start
//
//	model, err := staticembed.Load("model.safetensors", "tokenizer.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	vecs, err := model.Encode(ctx, []string{"hello world", "hallo welt"}, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	score, err := model.Similarity(vecs[0], vecs[1])
//
// Encode output order always equals input order, independent of the
// worker count.
package staticembed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hupe1980/staticembed/distance"
	"github.com/hupe1980/staticembed/encoder"
	"github.com/hupe1980/staticembed/tensorstore"
	"github.com/hupe1980/staticembed/tokenizer"
)

// StaticModel composes a tokenizer adapter with a read-only embedding
// table. It is immutable after Load and safe for concurrent use until
// Close.
type StaticModel struct {
	store   *tensorstore.Store
	tok     tokenizer.Encoder
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// Load opens the embedding table at tensorPath and the tokenizer
// configuration at tokenizerPath. A failure is tagged with the sub-load
// that failed via *LoadError; no partially initialized model is ever
// returned.
func Load(tensorPath, tokenizerPath string, optFns ...Option) (*StaticModel, error) {
	o := applyOptions(optFns)
	start := time.Now()

	store, err := tensorstore.Open(tensorPath)
	if err != nil {
		lerr := &LoadError{Stage: LoadStageTensor, cause: err}
		o.metrics.RecordLoad(time.Since(start), lerr)
		o.logger.LogLoad(context.Background(), tensorPath, tokenizerPath, 0, 0, lerr)
		return nil, lerr
	}

	tok := o.tokenizer
	if tok == nil {
		tok, err = tokenizer.Open(tokenizerPath)
		if err != nil {
			store.Close()
			lerr := &LoadError{Stage: LoadStageTokenizer, cause: err}
			o.metrics.RecordLoad(time.Since(start), lerr)
			o.logger.LogLoad(context.Background(), tensorPath, tokenizerPath, 0, 0, lerr)
			return nil, lerr
		}
	}

	m := &StaticModel{
		store:   store,
		tok:     tok,
		logger:  o.logger,
		metrics: o.metrics,
	}

	o.metrics.RecordLoad(time.Since(start), nil)
	o.logger.LogLoad(context.Background(), tensorPath, tokenizerPath, store.Dimension(), store.VocabSize(), nil)

	return m, nil
}

// Encode tokenizes texts and pools each token sequence into a sentence
// embedding using up to workers goroutines. Output order equals input
// order. The call fails atomically: any per-text failure (for example a
// text that tokenizes to zero ids) aborts the whole batch.
func (m *StaticModel) Encode(ctx context.Context, texts []string, workers int) ([][]float32, error) {
	if m.closed.Load() {
		return nil, ErrModelClosed
	}
	if workers < 1 {
		return nil, ErrInvalidWorkerCount
	}

	start := time.Now()
	out, err := m.encode(ctx, texts, workers)
	m.metrics.RecordEncode(len(texts), workers, time.Since(start), err)
	m.logger.LogEncode(ctx, len(texts), workers, err)
	return out, err
}

func (m *StaticModel) encode(ctx context.Context, texts []string, workers int) ([][]float32, error) {
	seqs, err := m.tok.EncodeBatch(texts)
	if err != nil {
		return nil, err
	}
	if len(seqs) != len(texts) {
		return nil, fmt.Errorf("staticembed: tokenizer returned %d sequences for %d texts", len(seqs), len(texts))
	}

	return encoder.EncodeBatch(ctx, seqs, m.store, workers)
}

// EncodeOne encodes a single text.
func (m *StaticModel) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	out, err := m.Encode(ctx, []string{text}, 1)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Similarity returns the cosine similarity of two embeddings produced by
// this or any model with the same dimensionality.
func (m *StaticModel) Similarity(a, b []float32) (float32, error) {
	return Similarity(a, b)
}

// Similarity returns the cosine similarity of two equal-length vectors.
// Vectors of different lengths fail with *ErrDimensionMismatch. A zero
// vector has similarity 0 to everything.
func Similarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}
	return distance.Cosine(a, b), nil
}

// Dimension returns the length of embeddings produced by this model.
func (m *StaticModel) Dimension() int { return m.store.Dimension() }

// VocabSize returns the number of token ids the embedding table covers.
func (m *StaticModel) VocabSize() int { return m.store.VocabSize() }

// Close releases the mapped table and the tokenizer. It is idempotent.
// Embeddings already returned remain valid; borrowed table rows do not.
func (m *StaticModel) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return errors.Join(m.store.Close(), m.tok.Close())
}

// Package encoder fans batches of token sequences out across a bounded
// worker pool and gathers mean-pooled sentence embeddings.
package encoder

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/staticembed/pooling"
)

// ErrInvalidWorkerCount is returned when the worker count is not positive.
var ErrInvalidWorkerCount = errors.New("encoder: worker count must be positive")

// SequenceError reports which batch index failed. Batch encoding is
// atomic: when any sequence fails, no results are returned.
//
// The original underlying error can be accessed via errors.Unwrap.
type SequenceError struct {
	Index int
	cause error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("encoder: sequence %d: %v", e.Index, e.cause)
}

func (e *SequenceError) Unwrap() error { return e.cause }

// RowSource is the read contract the encoder needs from a tensor store.
// Implementations must be safe for concurrent readers.
type RowSource interface {
	// Row returns the borrowed embedding row for a token id.
	Row(id uint32) ([]float32, error)
}

// EncodeBatch pools every token sequence into a sentence embedding using
// up to workers goroutines. Output order equals input order regardless of
// worker count: the result slice is pre-allocated and every worker writes
// only the indices of its own partition, so no locking or reordering is
// involved.
//
// The call fails atomically: the first per-sequence error (for example an
// empty sequence, or a token id beyond the vocabulary) aborts the batch
// and is reported as a *SequenceError.
func EncodeBatch(ctx context.Context, seqs [][]uint32, src RowSource, workers int) ([][]float32, error) {
	if workers < 1 {
		return nil, ErrInvalidWorkerCount
	}
	if len(seqs) == 0 {
		return [][]float32{}, nil
	}
	if workers > len(seqs) {
		workers = len(seqs)
	}

	out := make([][]float32, len(seqs))

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := partition(len(seqs), workers, w)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				vec, err := encodeOne(seqs[i], src)
				if err != nil {
					return &SequenceError{Index: i, cause: err}
				}
				out[i] = vec
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// partition splits n indices into count contiguous chunks and returns the
// bounds of chunk w. Chunk sizes differ by at most one.
func partition(n, count, w int) (lo, hi int) {
	base := n / count
	extra := n % count

	lo = w*base + min(w, extra)
	hi = lo + base
	if w < extra {
		hi++
	}
	return lo, hi
}

func encodeOne(seq []uint32, src RowSource) ([]float32, error) {
	rows := make([][]float32, 0, len(seq))
	for _, id := range seq {
		row, err := src.Row(id)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return pooling.Mean(rows)
}

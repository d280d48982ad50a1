// Package pooling reduces ordered sequences of token embeddings to a
// single fixed-length sentence embedding.
package pooling

import "errors"

// ErrEmptySequence is returned when pooling is attempted over zero rows,
// e.g. for a text that tokenized to no ids. Callers must handle this
// explicitly; a silent zero vector would hide the condition.
var ErrEmptySequence = errors.New("pooling: empty token sequence")

// Mean computes the elementwise mean of rows.
//
// All rows must have the same length. The result is freshly allocated and
// owned by the caller; the input rows are not retained.
func Mean(rows [][]float32) ([]float32, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySequence
	}

	out := make([]float32, len(rows[0]))
	for _, row := range rows {
		for i, v := range row {
			out[i] += v
		}
	}

	inv := 1 / float32(len(rows))
	for i := range out {
		out[i] *= inv
	}

	return out, nil
}

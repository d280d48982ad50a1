package staticembed

import (
	"errors"
	"fmt"

	"github.com/hupe1980/staticembed/encoder"
)

var (
	// ErrModelClosed is returned when using a model after Close.
	ErrModelClosed = errors.New("staticembed: model is closed")

	// ErrInvalidWorkerCount is returned when the worker count passed to
	// Encode is not positive.
	ErrInvalidWorkerCount = encoder.ErrInvalidWorkerCount
)

// Load stages reported by LoadError.
const (
	LoadStageTensor    = "tensor"
	LoadStageTokenizer = "tokenizer"
)

// LoadError tags a model-load failure with the sub-load that failed.
//
// The original underlying error can be accessed via errors.Unwrap.
type LoadError struct {
	Stage string
	cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("staticembed: loading %s: %v", e.Stage, e.cause)
}

func (e *LoadError) Unwrap() error { return e.cause }

// ErrDimensionMismatch indicates a similarity call over embeddings of
// different lengths.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("staticembed: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

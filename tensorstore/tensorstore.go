// Package tensorstore provides read-only access to precomputed token
// embedding tables stored in safetensors files.
//
// The file is memory-mapped and row lookups return slices that point
// directly into the mapped region. Callers must treat returned rows as
// immutable and must not retain them past Close.
package tensorstore

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/staticembed/internal/conv"
	"github.com/hupe1980/staticembed/internal/mmap"
)

// EmbeddingTensorName is the tensor the store requires in the file header.
const EmbeddingTensorName = "embeddings"

const dtypeF32 = "F32"

// ErrClosed is returned when accessing a closed store.
var ErrClosed = errors.New("tensorstore: store is closed")

// zstdMagic marks a zstandard frame. Compressed tensor files are
// decompressed into the heap instead of being mapped.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// FormatError indicates a structurally invalid tensor file: malformed
// header, missing or non-F32 embeddings tensor, wrong rank, or a payload
// whose size disagrees with the declared shape.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type FormatError struct {
	Path   string
	Reason string
	cause  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("tensorstore: %s: invalid tensor file: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.cause }

// RowOutOfRangeError indicates a token id at or beyond the vocabulary size.
// This is a data-integrity fault between tokenizer and table, never a
// recoverable input error, and ids are never clamped.
type RowOutOfRangeError struct {
	ID        uint32
	VocabSize int
}

func (e *RowOutOfRangeError) Error() string {
	return fmt.Sprintf("tensorstore: token id %d out of range (vocab size %d)", e.ID, e.VocabSize)
}

// Store exposes fixed-width float32 embedding rows indexed by token id.
// It is safe for concurrent readers; the backing region is read-only.
type Store struct {
	mapping *mmap.Mapping // nil when the table was decoded into the heap
	data    []float32     // Contiguous storage: data[id*dims : (id+1)*dims]
	dims    int
	vocab   int
	closed  atomic.Bool
}

// Open memory-maps the safetensors file at path and validates its header.
//
// IO failures (missing file, mapping failure) are returned as-is; header
// and shape violations are returned as *FormatError. A zstd-compressed
// file is transparently decompressed instead of mapped.
func Open(path string) (*Store, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	raw := m.Bytes()

	if bytes.HasPrefix(raw, zstdMagic) {
		buf, err := decompress(raw)
		if closeErr := m.Close(); closeErr != nil {
			return nil, closeErr
		}
		if err != nil {
			return nil, &FormatError{Path: path, Reason: "zstd decompression failed", cause: err}
		}
		return newStore(path, nil, buf)
	}

	s, err := newStore(path, m, raw)
	if err != nil {
		m.Close()
		return nil, err
	}

	// Token lookups hit rows all over the table.
	if err := m.Advise(mmap.AccessRandom); err != nil {
		m.Close()
		return nil, err
	}

	return s, nil
}

func newStore(path string, m *mmap.Mapping, raw []byte) (*Store, error) {
	span, dims, vocab, err := parseHeader(path, raw)
	if err != nil {
		return nil, err
	}

	return &Store{
		mapping: m,
		data:    floatsFromBytes(span),
		dims:    dims,
		vocab:   vocab,
	}, nil
}

// parseHeader locates the embeddings tensor: an 8-byte little-endian
// header length, a JSON mapping of tensor name to {dtype, shape,
// data_offsets}, then the raw payload. Offsets are relative to the payload.
func parseHeader(path string, raw []byte) (span []byte, dims, vocab int, err error) {
	if len(raw) < 8 {
		return nil, 0, 0, &FormatError{Path: path, Reason: fmt.Sprintf("file too small: %d bytes", len(raw))}
	}

	headerLen, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(raw[:8]))
	if err != nil {
		return nil, 0, 0, &FormatError{Path: path, Reason: "header length overflows", cause: err}
	}
	if headerLen > len(raw)-8 {
		return nil, 0, 0, &FormatError{Path: path, Reason: "header length exceeds file size"}
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(raw[8:8+headerLen], &header); err != nil {
		return nil, 0, 0, &FormatError{Path: path, Reason: "malformed header JSON", cause: err}
	}

	entry, ok := header[EmbeddingTensorName]
	if !ok {
		return nil, 0, 0, &FormatError{Path: path, Reason: fmt.Sprintf("tensor %q not found", EmbeddingTensorName)}
	}

	var meta struct {
		Dtype       string   `json:"dtype"`
		Shape       []int64  `json:"shape"`
		DataOffsets [2]int64 `json:"data_offsets"`
	}
	if err := json.Unmarshal(entry, &meta); err != nil {
		return nil, 0, 0, &FormatError{Path: path, Reason: "malformed tensor metadata", cause: err}
	}

	if meta.Dtype != dtypeF32 {
		return nil, 0, 0, &FormatError{Path: path, Reason: fmt.Sprintf("dtype %s, want %s", meta.Dtype, dtypeF32)}
	}
	if len(meta.Shape) != 2 {
		return nil, 0, 0, &FormatError{Path: path, Reason: fmt.Sprintf("shape rank %d, want 2", len(meta.Shape))}
	}

	vocab64, dims64 := meta.Shape[0], meta.Shape[1]
	if vocab64 < 0 || dims64 <= 0 {
		return nil, 0, 0, &FormatError{Path: path, Reason: fmt.Sprintf("invalid shape [%d, %d]", vocab64, dims64)}
	}

	// vocab*dims*4 must not wrap, or the size check below is meaningless.
	if dims64 > math.MaxInt64/4 || (vocab64 > 0 && dims64*4 > math.MaxInt64/vocab64) {
		return nil, 0, 0, &FormatError{Path: path, Reason: fmt.Sprintf("shape [%d, %d] overflows", vocab64, dims64)}
	}

	dims, vocab = int(dims64), int(vocab64)
	if int64(dims) != dims64 || int64(vocab) != vocab64 {
		return nil, 0, 0, &FormatError{Path: path, Reason: fmt.Sprintf("shape [%d, %d] exceeds addressable memory", vocab64, dims64)}
	}

	payload := raw[8+headerLen:]
	begin, end := meta.DataOffsets[0], meta.DataOffsets[1]
	if begin < 0 || end < begin || end > int64(len(payload)) {
		return nil, 0, 0, &FormatError{Path: path, Reason: fmt.Sprintf("data offsets [%d, %d] exceed payload size %d", begin, end, len(payload))}
	}
	if want := vocab64 * dims64 * 4; end-begin != want {
		return nil, 0, 0, &FormatError{Path: path, Reason: fmt.Sprintf("payload size %d disagrees with shape [%d, %d]", end-begin, vocab64, dims64)}
	}

	return payload[begin:end], dims, vocab, nil
}

// floatsFromBytes reinterprets a little-endian byte span as float32 values.
//
// When the host is little-endian and the span is 4-byte aligned, the
// conversion is a zero-copy view; the length, alignment, and byte-order
// checks above make the reinterpretation well-defined. Otherwise each
// element is decoded through encoding/binary into a heap copy.
func floatsFromBytes(b []byte) []float32 {
	n := len(b) / 4
	if n == 0 {
		return nil
	}

	if hostLittleEndian && uintptr(unsafe.Pointer(&b[0]))%unsafe.Alignof(float32(0)) == 0 {
		return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
	}

	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return out
}

var hostLittleEndian = func() bool {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	return buf[0] == 1
}()

func decompress(raw []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	return dec.DecodeAll(raw, nil)
}

// Row returns the embedding row for the given token id.
//
// The returned slice borrows the store's backing memory: it is read-only
// and valid only until Close.
func (s *Store) Row(id uint32) ([]float32, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if int64(id) >= int64(s.vocab) {
		return nil, &RowOutOfRangeError{ID: id, VocabSize: s.vocab}
	}

	idx := int(id) * s.dims
	return s.data[idx : idx+s.dims : idx+s.dims], nil
}

// Dimension returns the number of floats per embedding row.
func (s *Store) Dimension() int { return s.dims }

// VocabSize returns the number of rows in the table.
func (s *Store) VocabSize() int { return s.vocab }

// Close releases the mapped region. It is idempotent. Row slices handed
// out earlier must not be used afterwards.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.data = nil
	if s.mapping != nil {
		return s.mapping.Close()
	}
	return nil
}

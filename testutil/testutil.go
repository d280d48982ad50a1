// Package testutil provides helpers for constructing tensor files in tests.
package testutil

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// EmbeddingFile writes a little-endian F32 safetensors file holding rows
// as the "embeddings" tensor and returns its path. All rows must have the
// same length.
func EmbeddingFile(tb testing.TB, rows [][]float32) string {
	tb.Helper()

	dims := 0
	if len(rows) > 0 {
		dims = len(rows[0])
	}

	payload := make([]byte, 0, len(rows)*dims*4)
	for _, row := range rows {
		if len(row) != dims {
			tb.Fatalf("ragged embedding rows: %d vs %d", len(row), dims)
		}
		for _, v := range row {
			payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(v))
		}
	}

	header := fmt.Sprintf(
		`{"embeddings":{"dtype":"F32","shape":[%d,%d],"data_offsets":[0,%d]}}`,
		len(rows), dims, len(payload),
	)

	return SafetensorsFile(tb, header, payload)
}

// SafetensorsFile writes a file with the given raw header JSON followed by
// payload and returns its path. The header is not validated, so malformed
// headers can be constructed deliberately.
func SafetensorsFile(tb testing.TB, header string, payload []byte) string {
	tb.Helper()

	buf := make([]byte, 0, 8+len(header)+len(payload))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(header)))
	buf = append(buf, header...)
	buf = append(buf, payload...)

	path := filepath.Join(tb.TempDir(), "model.safetensors")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		tb.Fatalf("write tensor file: %v", err)
	}
	return path
}

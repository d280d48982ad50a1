package tensorstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/staticembed/testutil"
)

var testRows = [][]float32{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
	{1, 1, 1},
}

func TestOpen_Valid(t *testing.T) {
	path := testutil.EmbeddingFile(t, testRows)

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 3, s.Dimension())
	assert.Equal(t, 4, s.VocabSize())

	for id, want := range testRows {
		row, err := s.Row(uint32(id))
		require.NoError(t, err)
		assert.Equal(t, want, row)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.safetensors"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))

	var fe *FormatError
	assert.False(t, errors.As(err, &fe))
}

func TestOpen_FormatErrors(t *testing.T) {
	payload12 := make([]byte, 12) // one 3-dim F32 row

	tests := []struct {
		name   string
		header string
	}{
		{"TensorMissing", `{"weights":{"dtype":"F32","shape":[1,3],"data_offsets":[0,12]}}`},
		{"WrongDtype", `{"embeddings":{"dtype":"F16","shape":[1,3],"data_offsets":[0,12]}}`},
		{"WrongRank", `{"embeddings":{"dtype":"F32","shape":[12],"data_offsets":[0,12]}}`},
		{"RankThree", `{"embeddings":{"dtype":"F32","shape":[1,1,3],"data_offsets":[0,12]}}`},
		{"MalformedJSON", `{"embeddings":`},
		{"OffsetsBeyondPayload", `{"embeddings":{"dtype":"F32","shape":[1,3],"data_offsets":[0,16]}}`},
		{"SizeShapeDisagree", `{"embeddings":{"dtype":"F32","shape":[2,3],"data_offsets":[0,12]}}`},
		{"NegativeDims", `{"embeddings":{"dtype":"F32","shape":[1,-3],"data_offsets":[0,12]}}`},
		{"ShapeProductWrapsToZero", `{"embeddings":{"dtype":"F32","shape":[4611686018427387904,1],"data_offsets":[0,0]}}`},
		{"DimsProductOverflow", `{"embeddings":{"dtype":"F32","shape":[1,4611686018427387904],"data_offsets":[0,0]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.SafetensorsFile(t, tt.header, payload12)

			_, err := Open(path)
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, path, fe.Path)
		})
	}
}

func TestOpen_TruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.safetensors")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o600))

	_, err := Open(path)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}

func TestOpen_HeaderLengthBeyondFile(t *testing.T) {
	tests := []struct {
		name      string
		headerLen uint64
	}{
		{"BeyondFile", 1 << 40},
		{"OverflowsInt", math.MaxUint64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := binary.LittleEndian.AppendUint64(nil, tt.headerLen)
			path := filepath.Join(t.TempDir(), "hdr.safetensors")
			require.NoError(t, os.WriteFile(path, buf, 0o600))

			_, err := Open(path)
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
		})
	}
}

func TestOpen_Zstd(t *testing.T) {
	plainPath := testutil.EmbeddingFile(t, testRows)
	plain, err := os.ReadFile(plainPath)
	require.NoError(t, err)

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(plain, nil)
	require.NoError(t, enc.Close())

	path := filepath.Join(t.TempDir(), "model.safetensors.zst")
	require.NoError(t, os.WriteFile(path, compressed, 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 3, s.Dimension())
	assert.Equal(t, 4, s.VocabSize())

	row, err := s.Row(3)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1}, row)
}

func TestOpen_ZstdCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.safetensors.zst")
	require.NoError(t, os.WriteFile(path, []byte{0x28, 0xb5, 0x2f, 0xfd, 0xff, 0xff}, 0o600))

	_, err := Open(path)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}

func TestRow_OutOfRange(t *testing.T) {
	s, err := Open(testutil.EmbeddingFile(t, testRows))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Row(4)
	var oor *RowOutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, uint32(4), oor.ID)
	assert.Equal(t, 4, oor.VocabSize)

	_, err = s.Row(math.MaxUint32)
	assert.ErrorAs(t, err, &oor)
}

func TestStore_Close(t *testing.T) {
	s, err := Open(testutil.EmbeddingFile(t, testRows))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	_, err = s.Row(0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFormatError_Message(t *testing.T) {
	err := &FormatError{Path: "m.safetensors", Reason: "dtype F16, want F32"}
	assert.Equal(t, "tensorstore: m.safetensors: invalid tensor file: dtype F16, want F32", err.Error())
	assert.Equal(
		t,
		fmt.Sprintf("tensorstore: token id %d out of range (vocab size %d)", 9, 4),
		(&RowOutOfRangeError{ID: 9, VocabSize: 4}).Error(),
	)
}

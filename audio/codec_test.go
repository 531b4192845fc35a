package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		frame  []float32
		expect []int16
	}{
		{name: "silence", frame: []float32{0, 0}, expect: []int16{0, 0}},
		{name: "full scale", frame: []float32{1, -1}, expect: []int16{math.MaxInt16, math.MinInt16}},
		{name: "clamped", frame: []float32{1.5, -3}, expect: []int16{math.MaxInt16, math.MinInt16}},
		{name: "half", frame: []float32{0.5, -0.5}, expect: []int16{16384, -16384}},
		{name: "nan", frame: []float32{float32(math.NaN())}, expect: []int16{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, ok := Encode(tt.frame)
			require.True(t, ok)
			assert.Equal(t, InputMIMEType, chunk.MIMEType)
			require.Len(t, chunk.Data, len(tt.expect)*2)
			for i, want := range tt.expect {
				got := int16(binary.LittleEndian.Uint16(chunk.Data[i*2:]))
				assert.Equal(t, want, got, "sample %d", i)
			}
		})
	}
}

func TestEncode_EmptyFrameIsNoop(t *testing.T) {
	chunk, ok := Encode(nil)
	assert.False(t, ok)
	assert.Empty(t, chunk.Data)
}

func TestDecode(t *testing.T) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint16(data[0:], uint16(16384))
	v := int16(-32768)
	binary.LittleEndian.PutUint16(data[2:], uint16(v))

	buf, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, OutputSampleRate, buf.SampleRate)
	assert.Equal(t, []float32{0.5, -1}, buf.Samples)
}

func TestDecode_Duration(t *testing.T) {
	buf, err := Decode(make([]byte, OutputSampleRate)) // half a second of samples
	require.NoError(t, err)
	assert.InDelta(t, 0.5, buf.Duration(), 1e-9)
}

func TestDecode_OddLength(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)

	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	assert.Equal(t, 3, decErr.Length)
}

func TestDecodeBase64(t *testing.T) {
	chunk, ok := Encode([]float32{0.25, -0.25, 0})
	require.True(t, ok)

	buf, err := DecodeBase64(chunk.Base64())
	require.NoError(t, err)
	require.Len(t, buf.Samples, 3)
	assert.InDelta(t, 0.25, buf.Samples[0], 1e-4)

	_, err = DecodeBase64("not base64!")
	assert.Error(t, err)
}

package hyperloglog

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		precision uint8
		wantLen   int
	}{
		{"precision 10", 10, 1024},
		{"precision 12", 12, 4096},
		{"precision 14", 14, 16384},
		{"too low", 2, 4096},
		{"too high", 20, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(tt.precision)
			assert.Len(t, h.registers, tt.wantLen)
		})
	}
}

func TestEmptyCountsZero(t *testing.T) {
	assert.Equal(t, uint64(0), New(DefaultPrecision).Count())
}

func TestAddAndCount(t *testing.T) {
	tests := []struct {
		n       int
		maxErrP float64
	}{
		{10, 10},
		{1000, 5},
		{50000, 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d unique", tt.n), func(t *testing.T) {
			h := New(14)
			for i := 0; i < tt.n; i++ {
				h.Add(fmt.Sprintf("viewer-%d", i))
			}
			got := float64(h.Count())
			errP := math.Abs(got-float64(tt.n)) / float64(tt.n) * 100
			assert.LessOrEqualf(t, errP, tt.maxErrP, "estimate %v for %d", got, tt.n)
		})
	}
}

func TestDuplicatesDoNotInflate(t *testing.T) {
	h := New(DefaultPrecision)
	for i := 0; i < 1000; i++ {
		h.Add("same-viewer")
	}
	assert.Equal(t, uint64(1), h.Count())
}

func TestMerge(t *testing.T) {
	a, b := New(12), New(12)
	for i := 0; i < 500; i++ {
		a.Add(fmt.Sprintf("v%d", i))
		b.Add(fmt.Sprintf("v%d", i+250))
	}
	require.NoError(t, a.Merge(b))
	assert.InDelta(t, 750, float64(a.Count()), 40)

	assert.ErrorIs(t, a.Merge(New(10)), ErrPrecisionMismatch)
}

func TestBinaryRoundTrip(t *testing.T) {
	h := New(10)
	h.Add("x")
	h.Add("y")

	data, err := h.MarshalBinary()
	require.NoError(t, err)

	var got HyperLogLog
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, h.Count(), got.Count())
	assert.Equal(t, uint8(10), got.Precision())
}

func TestUnmarshalBinaryRejectsGarbage(t *testing.T) {
	var h HyperLogLog
	assert.ErrorIs(t, h.UnmarshalBinary(nil), ErrInvalidData)
	assert.ErrorIs(t, h.UnmarshalBinary([]byte{30, 0}), ErrInvalidData)
	assert.ErrorIs(t, h.UnmarshalBinary([]byte{4, 0, 0}), ErrInvalidData)
}

func TestJSONEmbedding(t *testing.T) {
	type doc struct {
		Viewers *HyperLogLog `json:"viewers"`
	}
	in := doc{Viewers: New(12)}
	in.Viewers.Add("a")
	in.Viewers.Add("b")

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, uint64(2), out.Viewers.Count())
}

func TestCloneIsIndependent(t *testing.T) {
	h := New(8)
	h.Add("a")
	c := h.Clone()
	h.Add("b")
	assert.Equal(t, uint64(2), h.Count())
	assert.Equal(t, uint64(1), c.Count())
	assert.Equal(t, uint8(8), c.Precision())
}

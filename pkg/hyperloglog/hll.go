// Package hyperloglog implements a HyperLogLog sketch for approximate
// distinct counting.
//
// Memory is 2^precision bytes and the standard error is about
// 1.04 / sqrt(2^precision). Precision 12 (4KB, ~1.6% error) is the default.
package hyperloglog

import (
	"encoding/base64"
	"errors"
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// Precision bounds.
const (
	MinPrecision     uint8 = 4
	MaxPrecision     uint8 = 18
	DefaultPrecision uint8 = 12
)

var (
	// ErrPrecisionMismatch is returned when merging sketches of different precision.
	ErrPrecisionMismatch = errors.New("hyperloglog: precision mismatch")
	// ErrInvalidData is returned when decoding malformed sketch bytes.
	ErrInvalidData = errors.New("hyperloglog: invalid serialized data")
)

// HyperLogLog is a cardinality sketch. It is not safe for concurrent use.
type HyperLogLog struct {
	precision uint8
	registers []uint8
}

// New returns an empty sketch. Out-of-range precision falls back to
// DefaultPrecision.
func New(precision uint8) *HyperLogLog {
	if precision < MinPrecision || precision > MaxPrecision {
		precision = DefaultPrecision
	}
	return &HyperLogLog{
		precision: precision,
		registers: make([]uint8, 1<<precision),
	}
}

// Precision returns the number of index bits.
func (h *HyperLogLog) Precision() uint8 { return h.precision }

// Add records a string value.
func (h *HyperLogLog) Add(value string) {
	h.AddHash(xxhash.Sum64String(value))
}

// AddHash records a pre-computed 64-bit hash.
func (h *HyperLogLog) AddHash(hash uint64) {
	idx := hash & (uint64(len(h.registers)) - 1)
	w := hash >> h.precision

	rank := uint8(64-h.precision) + 1
	if w != 0 {
		rank = uint8(bits.LeadingZeros64(w)) - h.precision + 1
	}
	if rank > h.registers[idx] {
		h.registers[idx] = rank
	}
}

// Count returns the estimated number of distinct values added.
func (h *HyperLogLog) Count() uint64 {
	m := float64(len(h.registers))

	sum := 0.0
	zeros := 0
	for _, r := range h.registers {
		sum += 1.0 / float64(uint64(1)<<r)
		if r == 0 {
			zeros++
		}
	}

	est := alpha(len(h.registers)) * m * m / sum

	const two32 = 1 << 32
	switch {
	case est <= 2.5*m && zeros > 0:
		// linear counting for small cardinalities
		est = m * math.Log(m/float64(zeros))
	case est > two32/30.0:
		est = -two32 * math.Log(1-est/two32)
	}
	return uint64(est + 0.5)
}

func alpha(m int) float64 {
	switch m {
	case 16:
		return 0.673
	case 32:
		return 0.697
	case 64:
		return 0.709
	default:
		return 0.7213 / (1 + 1.079/float64(m))
	}
}

// Merge folds other into h, producing the sketch of the union.
func (h *HyperLogLog) Merge(other *HyperLogLog) error {
	if h.precision != other.precision {
		return ErrPrecisionMismatch
	}
	for i, r := range other.registers {
		if r > h.registers[i] {
			h.registers[i] = r
		}
	}
	return nil
}

// Clone returns an independent copy.
func (h *HyperLogLog) Clone() *HyperLogLog {
	return &HyperLogLog{
		precision: h.precision,
		registers: append([]uint8(nil), h.registers...),
	}
}

// MarshalBinary encodes the sketch as [precision][registers...].
func (h *HyperLogLog) MarshalBinary() ([]byte, error) {
	data := make([]byte, 1+len(h.registers))
	data[0] = h.precision
	copy(data[1:], h.registers)
	return data, nil
}

// UnmarshalBinary decodes bytes produced by MarshalBinary.
func (h *HyperLogLog) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return ErrInvalidData
	}
	p := data[0]
	if p < MinPrecision || p > MaxPrecision || len(data) != 1+(1<<p) {
		return ErrInvalidData
	}
	h.precision = p
	h.registers = append(h.registers[:0], data[1:]...)
	return nil
}

// MarshalText encodes the sketch as base64 so it can sit in JSON documents.
func (h *HyperLogLog) MarshalText() ([]byte, error) {
	raw, _ := h.MarshalBinary()
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

// UnmarshalText decodes the output of MarshalText.
func (h *HyperLogLog) UnmarshalText(text []byte) error {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(raw, text)
	if err != nil {
		return ErrInvalidData
	}
	return h.UnmarshalBinary(raw[:n])
}

package runtime

import "math"

// Wire type constants, per the protobuf wire format.
const (
	WireVarint     uint8 = 0
	WireFixed64    uint8 = 1
	WireDelimited  uint8 = 2
	WireStartGroup uint8 = 3
	WireEndGroup   uint8 = 4
	WireFixed32    uint8 = 5
)

// MaxDepth is the default recursion limit for nested messages and
// groups, matching the reference encoder's default.
const MaxDepth = 64

// EncodeZigZag32 maps a signed 32-bit value onto an unsigned one so
// small negative numbers stay small when varint-encoded.
func EncodeZigZag32(n int32) uint32 {
	return (uint32(n) << 1) ^ uint32(n>>31)
}

// EncodeZigZag64 is the 64-bit counterpart of EncodeZigZag32.
func EncodeZigZag64(n int64) uint64 {
	return (uint64(n) << 1) ^ uint64(n>>63)
}

// DecodeZigZag32 reverses EncodeZigZag32.
func DecodeZigZag32(n uint32) int32 {
	return int32(n>>1) ^ -int32(n&1)
}

// DecodeZigZag64 reverses EncodeZigZag64.
func DecodeZigZag64(n uint64) int64 {
	return int64(n>>1) ^ -int64(n&1)
}

// Float32Bits and Float64Bits reinterpret IEEE-754 floats as their raw
// bit patterns for fixed32/fixed64 wire encoding.
func Float32Bits(f float32) uint32 { return math.Float32bits(f) }
func Float64Bits(f float64) uint64 { return math.Float64bits(f) }

func Float32FromBits(b uint32) float32 { return math.Float32frombits(b) }
func Float64FromBits(b uint64) float64 { return math.Float64frombits(b) }

package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	flatbuffers "github.com/google/flatbuffers/go"
)

// amountSize is the width of a serialized amount (uint256).
const amountSize = 32

// CreateAmount writes v as a 32-byte big-endian vector. A nil amount encodes as zero.
func CreateAmount(builder *flatbuffers.Builder, v *big.Int) flatbuffers.UOffsetT {
	if v == nil {
		v = new(big.Int)
	}

	return builder.CreateByteVector(math.PaddedBigBytes(v, amountSize))
}

// ParseAmount decodes an amount vector, rejecting anything wider than 256 bits.
func ParseAmount(b []byte) (*big.Int, error) {
	if len(b) > amountSize {
		return nil, fmt.Errorf("amount too wide: %d bytes", len(b))
	}

	return new(big.Int).SetBytes(b), nil
}

// ValidAmount reports whether v is non-nil, non-negative and fits in 256 bits.
func ValidAmount(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(math.MaxBig256) <= 0
}

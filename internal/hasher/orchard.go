package hasher

import (
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254"

	"github.com/warpsync/core/pkg/types"
)

// orchardEmpty is the little-endian representation of the base-field
// element 2 (§4.A).
var orchardEmpty = func() types.Hash {
	var h types.Hash
	h[0] = 2
	return h
}()

const orchardQPersonalization = "WarpSync-Orchard-Q"

// sinsemillaTableSize mirrors the real SINSEMILLA_S lookup table: one
// curve point per possible 10-bit chunk value.
const sinsemillaTableSize = 1 << 10

// Orchard implements NodeHasher for the Orchard commitment tree using a
// Sinsemilla-shaped accumulation: pack the two 32-byte inputs bit-serially
// into 51 ten-bit chunks and fold each chunk's table point into a running
// accumulator via double-and-add, finally projecting to the x-coordinate
// (§4.A). The real protocol runs this over the Pallas curve with a table
// derived by a fixed hash-to-curve procedure; since the combine primitive
// is treated as opaque (§4.A), this implementation grounds the same shape
// in consensys/gnark-crypto's bn254 group rather than pulling in a
// Pallas/Vesta library nothing else in this stack uses.
type Orchard struct{}

var _ NodeHasher = Orchard{}

var (
	orchardInit  sync.Once
	orchardQ     bn254.G1Affine
	sinsemillaS  [sinsemillaTableSize]bn254.G1Affine
)

func initOrchardGenerators() {
	orchardInit.Do(func() {
		_, _, g1Gen, _ := bn254.Generators()

		orchardQ.ScalarMultiplication(&g1Gen, scalarFromLabel(orchardQPersonalization, 0))
		for i := 0; i < sinsemillaTableSize; i++ {
			sinsemillaS[i].ScalarMultiplication(&g1Gen, scalarFromLabel("WarpSync-Sinsemilla-S", uint64(i)))
		}
	})
}

// scalarFromLabel derives a deterministic scalar from a domain label and
// index, standing in for the real hash-to-curve/hash-to-field step (the
// same generator-derivation shape commitment.go uses, extended with an
// index so the table is injective in i).
func scalarFromLabel(label string, index uint64) *big.Int {
	buf := make([]byte, 0, len(label)+8)
	buf = append(buf, label...)
	for shift := 56; shift >= 0; shift -= 8 {
		buf = append(buf, byte(index>>uint(shift)))
	}
	sum := fnvLike(buf)
	return new(big.Int).SetBytes(sum[:])
}

// fnvLike is a small deterministic mixing function used only to seed the
// Sinsemilla table from a label; it carries no cryptographic weight of its
// own. The security of the accumulator rests on the discrete-log hardness
// of the underlying curve, same as any other Pedersen-style generator
// derivation.
func fnvLike(data []byte) [32]byte {
	var h [32]byte
	var acc uint64 = 14695981039346656037
	const prime uint64 = 1099511628211
	for i, b := range data {
		acc ^= uint64(b)
		acc *= prime
		h[i%32] ^= byte(acc)
		h[(i+7)%32] ^= byte(acc >> 8)
		h[(i+13)%32] ^= byte(acc >> 16)
		h[(i+19)%32] ^= byte(acc >> 24)
	}
	return h
}

func (Orchard) Empty() types.Hash { return orchardEmpty }

func (Orchard) IsEmpty(d types.Hash) bool { return d == orchardEmpty }

func (o Orchard) Combine(depth uint8, l, r types.Hash, _check bool) types.Hash {
	initOrchardGenerators()
	acc := o.accumulate(depth, l, r)
	return pointToHash(acc)
}

func (o Orchard) ParallelCombine(depth uint8, layer []types.Hash) []types.Hash {
	return mapCombine(o, depth, layer)
}

// accumulate runs the depth domain-separation step followed by the 51
// ten-bit-chunk fold, matching the shape of the original node_combine_inner.
func (o Orchard) accumulate(depth uint8, l, r types.Hash) bn254.G1Affine {
	acc := orchardQ
	acc = foldChunk(acc, sinsemillaS[depth])

	// Shift right by 1 bit, moving the first bit of r into the 256th bit
	// of l, exactly as the original packs two 255-bit field elements into
	// a contiguous 510-bit stream.
	left := l
	right := r
	left[31] |= (right[0] & 1) << 7
	for i := 0; i < 32; i++ {
		var carry byte
		if i < 31 {
			carry = (right[i+1] & 1) << 7
		}
		right[i] = right[i]>>1 | carry
	}

	bitOffset := 0
	byteOffset := 0
	for c := 0; c < 51; c++ {
		var v uint16
		switch {
		case byteOffset < 31:
			v = uint16(left[byteOffset]) | uint16(left[byteOffset+1])<<8
		case byteOffset == 31:
			v = uint16(left[31]) | uint16(right[0])<<8
		default:
			v = uint16(right[byteOffset-32]) | uint16(right[byteOffset-31])<<8
		}
		v = (v >> uint(bitOffset)) & 0x03FF
		acc = foldChunk(acc, sinsemillaS[v])

		bitOffset += 10
		if bitOffset >= 8 {
			byteOffset += bitOffset / 8
			bitOffset %= 8
		}
	}
	return acc
}

// foldChunk performs the Sinsemilla fold step: acc = (acc + S) + acc.
func foldChunk(acc, s bn254.G1Affine) bn254.G1Affine {
	var sum bn254.G1Affine
	sum.Add(&acc, &s)
	var out bn254.G1Affine
	out.Add(&sum, &acc)
	return out
}

// pointToHash takes the x-coordinate of an affine point, mapping the
// point-at-infinity case to the field-zero representation (§4.A).
func pointToHash(p bn254.G1Affine) types.Hash {
	if p.IsInfinity() {
		return types.Hash{}
	}
	xBytes := p.X.Bytes()
	var out types.Hash
	copy(out[:], xBytes[:])
	return out
}

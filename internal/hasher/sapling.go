package hasher

import (
	"golang.org/x/crypto/blake2b"

	"github.com/warpsync/core/pkg/types"
)

// saplingPersonalization domain-separates the Sapling merkle combine from
// any other blake2b usage in the wallet, via the same string-personalization
// pattern as the module's other keyed hashes.
const saplingPersonalization = "WarpSync-Sapling"

// saplingEmpty is the well-known Sapling empty-leaf sentinel (§4.A):
// a single 1 byte followed by 31 zero bytes.
var saplingEmpty = func() types.Hash {
	var h types.Hash
	h[0] = 1
	return h
}()

// Sapling implements NodeHasher for the Sapling commitment tree. The
// underlying protocol's Pedersen-hash-in-the-field primitive is treated
// as opaque (§4.A); this implementation grounds that opaque primitive in
// blake2b-256 with a fixed personalization and the depth prepended to the
// hashed input, in the same spirit as
// this module's other keyed-hash helpers (commitment.go's generator
// derivation, chainsync's nullifier derivation).
type Sapling struct{}

var _ NodeHasher = Sapling{}

func (Sapling) Empty() types.Hash { return saplingEmpty }

func (Sapling) IsEmpty(d types.Hash) bool { return d == saplingEmpty }

func (s Sapling) Combine(depth uint8, l, r types.Hash, _check bool) types.Hash {
	cfg := &blake2b.Config{Size: types.HashSize, Person: []byte(saplingPersonalization)}
	h, err := blake2b.New(cfg)
	if err != nil {
		panic(err) // only fails on malformed Config, which is fixed above
	}
	h.Write([]byte{depth})
	h.Write(l[:])
	h.Write(r[:])
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (s Sapling) ParallelCombine(depth uint8, layer []types.Hash) []types.Hash {
	return mapCombine(s, depth, layer)
}

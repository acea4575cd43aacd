// Package hasher implements the opaque per-pool node hasher (§4.A). It
// provides the empty sentinel, pairwise combine, and a data-parallel
// combine variant for each shielded pool's commitment tree.
//
// The node-hasher primitive is treated as opaque: combine(depth, left,
// right) can be any collision-resistant function. This package grounds
// that opaque primitive concretely (consensys/gnark-crypto for Orchard's
// curve arithmetic, golang.org/x/crypto/blake2b for Sapling's
// field-free combine) rather than inventing a bespoke hash.
package hasher

import "github.com/warpsync/core/pkg/types"

// NodeHasher is implemented once per shielded pool.
type NodeHasher interface {
	// Empty returns the pool's empty-subtree leaf sentinel.
	Empty() types.Hash

	// IsEmpty reports whether d is the pool's empty sentinel.
	IsEmpty(d types.Hash) bool

	// Combine hashes a left/right pair at the given tree depth. check
	// allows pool-specific validation (e.g. coordinate-in-field) to be
	// relaxed when reconstructing known-good history (§4.A, §9).
	Combine(depth uint8, l, r types.Hash, check bool) types.Hash

	// ParallelCombine must be observationally equivalent to mapping
	// Combine over pairs; it exists only to exploit data-parallel
	// hardware within one tree layer (§5).
	ParallelCombine(depth uint8, layer []types.Hash) []types.Hash
}

// EmptyRoots precomputes the zero-subtree root at every depth for h,
// per the §4.B root-recomputation contract: empty_roots[0] == h.Empty(),
// empty_roots[i] == combine(i-1, empty_roots[i-1], empty_roots[i-1], false).
func EmptyRoots(h NodeHasher) [types.Depth]types.Hash {
	var roots [types.Depth]types.Hash
	roots[0] = h.Empty()
	for i := 1; i < types.Depth; i++ {
		roots[i] = h.Combine(uint8(i-1), roots[i-1], roots[i-1], false)
	}
	return roots
}

// mapCombine is the shared fallback parallel_combine implementation:
// observationally identical to calling Combine pairwise, but fans the
// work out across goroutines so callers get the data-parallel behavior
// §5 requires without every pool re-implementing the fan-out.
func mapCombine(h NodeHasher, depth uint8, layer []types.Hash) []types.Hash {
	pairs := len(layer) / 2
	out := make([]types.Hash, pairs)
	if pairs == 0 {
		return out
	}

	const minParallelPairs = 8
	if pairs < minParallelPairs {
		for i := 0; i < pairs; i++ {
			out[i] = h.Combine(depth, layer[2*i], layer[2*i+1], true)
		}
		return out
	}

	workers := pairs
	const maxWorkers = 16
	if workers > maxWorkers {
		workers = maxWorkers
	}
	chunk := (pairs + workers - 1) / workers

	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > pairs {
			end = pairs
		}
		if start >= end {
			done <- struct{}{}
			continue
		}
		go func(start, end int) {
			for i := start; i < end; i++ {
				out[i] = h.Combine(depth, layer[2*i], layer[2*i+1], true)
			}
			done <- struct{}{}
		}(start, end)
	}
	for w := 0; w < workers; w++ {
		<-done
	}
	return out
}

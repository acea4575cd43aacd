package tree

import (
	"github.com/warpsync/core/internal/hasher"
	"github.com/warpsync/core/pkg/types"
)

// Witness tracks one note's authentication path as the tree grows past it.
// fills holds right-sibling hashes the tree handed it opportunistically
// while the note was still within the current block's layers; once the
// note falls behind the block boundary those slots are completed from the
// frontier edge and, beyond that, from the empty-subtree roots.
type Witness struct {
	Path  Path
	Fills []types.Hash
}

// Root reconstructs the current Merkle root along this witness's path and
// returns the full 32-hash authentication path alongside it. emptyRoots and
// edge must be the tree's current precomputed empty-root table and frontier
// edge (§4.B, §4.C).
//
// At each depth, an even position consumes, in order: a collected fill, then
// (once, the first time fills run out) the frontier edge hash, then empty
// roots thereafter. An odd position always consumes the next recorded
// sibling. This exact consumption order is what makes root reconstruction
// agree with the tree's own combine history.
func (w *Witness) Root(h hasher.NodeHasher, emptyRoots, edge [types.Depth]types.Hash) (types.Hash, [types.Depth]types.Hash) {
	p := w.Path.Pos
	cur := w.Path.Value
	j := 0
	k := 0
	edgeUsed := false
	var path [types.Depth]types.Hash

	for i := 0; i < types.Depth; i++ {
		if p&1 == 0 {
			var r types.Hash
			switch {
			case k < len(w.Fills):
				r = w.Fills[k]
				k++
			case !edgeUsed:
				edgeUsed = true
				r = edge[i]
			default:
				r = emptyRoots[i]
			}
			path[i] = r
			cur = h.Combine(uint8(i), cur, r, false)
		} else {
			l := w.Path.Siblings[j]
			path[i] = l
			cur = h.Combine(uint8(i), l, cur, true)
			j++
		}
		p /= 2
	}
	return cur, path
}

package tree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/warpsync/core/internal/hasher"
	"github.com/warpsync/core/pkg/types"
)

// ErrEmptyNodes is returned by AddNodes when called with no nodes; a block
// contributing zero note commitments is a caller bug, not a valid input.
var ErrEmptyNodes = errors.New("tree: add_nodes called with no nodes")

// NodeInput is one leaf offered to AddNodes: its commitment value and
// whether the caller wants a Witness tracked for it (typically because it
// belongs to the wallet).
type NodeInput struct {
	Value     types.Hash
	IsWitness bool
}

// MerkleTree is the append-only note-commitment tree for one shielded pool.
// It tracks only what is needed to extend the tree and to keep existing
// Witnesses current: the next free position, the single carried "odd node"
// at each depth (prev), and the witnesses themselves.
type MerkleTree struct {
	Pos       uint64
	Prev      [types.Depth + 1]types.Hash
	Witnesses []Witness
}

// NewMerkleTree returns an empty tree for pool h.
func NewMerkleTree(h hasher.NodeHasher) *MerkleTree {
	empty := h.Empty()
	t := &MerkleTree{}
	for i := range t.Prev {
		t.Prev[i] = empty
	}
	return t
}

// AddNodes absorbs one block's worth of leaves into the tree, advancing
// every tracked Witness and returning the compact Bridge describing the
// delta (§4.D). nodes must be non-empty and in tree order.
//
// The algorithm walks depth 0..DEPTH-1 maintaining a "current layer" of at
// most len(nodes)+1 hashes (the +1 being a carried odd node from the
// previous block at this depth). At each depth it: (1) gives any
// newly-created witness its first sibling if it lands on an odd slot,
// (2) opportunistically fills any witness sitting just left of a
// completed pair, (3) combines pairs into the next layer, carrying an
// unpaired trailing node forward as this depth's prev, and (4) records the
// resulting CompactLayer. The "start" alignment and the i==0/i==1 fill
// tie-break below mirror the reference tree exactly; they are not
// arbitrary and must not be simplified.
func (t *MerkleTree) AddNodes(h hasher.NodeHasher, blockLen uint32, nodes []NodeInput) (Bridge, error) {
	if len(nodes) == 0 {
		return Bridge{}, ErrEmptyNodes
	}

	var newWitnessIdx []int
	for i, n := range nodes {
		if n.IsWitness {
			t.Witnesses = append(t.Witnesses, Witness{
				Path: Path{Pos: t.Pos + uint64(i), Value: n.Value},
			})
			newWitnessIdx = append(newWitnessIdx, len(t.Witnesses)-1)
		}
	}

	layer := make([]types.Hash, 0, len(nodes)+1)
	fill := h.Empty()
	if !h.IsEmpty(t.Prev[0]) {
		layer = append(layer, t.Prev[0])
		fill = nodes[0].Value
	}
	for _, n := range nodes {
		layer = append(layer, n.Value)
	}

	var compactLayers [types.Depth]CompactLayer

	for depth := uint8(0); depth < types.Depth; depth++ {
		newFill := h.Empty()
		length := len(layer)
		start := (t.Pos >> depth) & 0xFFFE

		for _, wi := range newWitnessIdx {
			w := &t.Witnesses[wi]
			i := int((w.Path.Pos >> depth) - start)
			if i&1 == 1 {
				if h.IsEmpty(layer[i-1]) {
					return Bridge{}, fmt.Errorf("tree: depth %d: expected non-empty left sibling for new witness", depth)
				}
				w.Path.Siblings = append(w.Path.Siblings, layer[i-1])
			}
		}

		for idx := range t.Witnesses {
			w := &t.Witnesses[idx]
			if (w.Path.Pos >> depth) >= start {
				i := int((w.Path.Pos >> depth) - start)
				if i&1 == 0 && i < length-1 && !h.IsEmpty(layer[i+1]) {
					w.Fills = append(w.Fills, layer[i+1])
				}
			}
		}

		pairs := (length + 1) / 2
		newLayer := make([]types.Hash, 0, pairs+1)
		if !h.IsEmpty(t.Prev[depth+1]) {
			newLayer = append(newLayer, t.Prev[depth+1])
		}
		t.Prev[depth] = h.Empty()

		for i := 0; i < pairs; i++ {
			l := layer[2*i]
			if 2*i+1 < length {
				r := layer[2*i+1]
				if !h.IsEmpty(r) {
					hn := h.Combine(depth, l, r, true)
					if (i == 0 && !h.IsEmpty(t.Prev[depth+1])) || (i == 1 && h.IsEmpty(t.Prev[depth+1])) {
						newFill = hn
					}
					newLayer = append(newLayer, hn)
				} else {
					newLayer = append(newLayer, h.Empty())
					t.Prev[depth] = l
				}
			} else {
				if !h.IsEmpty(l) {
					t.Prev[depth] = l
				}
				newLayer = append(newLayer, h.Empty())
			}
		}

		compactLayers[depth] = CompactLayer{
			Prev: t.Prev[depth],
			Fill: fill,
		}

		layer = newLayer
		fill = newFill
	}

	pos := t.Pos
	t.Pos += uint64(len(nodes))

	return Bridge{
		Pos:      pos,
		BlockLen: blockLen,
		Len:      uint64(len(nodes)),
		Layers:   compactLayers,
	}, nil
}

// AddBridge fast-forwards the tree by a previously computed Bridge without
// replaying the nodes it summarizes: any witness sitting exactly at the
// pairing boundary the bridge completed receives its fill, prev carries
// forward layer by layer, and pos advances by the bridge's length (§4.D).
func (t *MerkleTree) AddBridge(h hasher.NodeHasher, b *Bridge) {
	for depth := 0; depth < types.Depth; depth++ {
		if !h.IsEmpty(b.Layers[depth].Fill) {
			s := t.Pos >> uint(depth+1)
			for idx := range t.Witnesses {
				w := &t.Witnesses[idx]
				p := w.Path.Pos >> uint(depth)
				if p&1 == 0 && p>>1 == s {
					w.Fills = append(w.Fills, b.Layers[depth].Fill)
				}
			}
		}
		t.Prev[depth] = b.Layers[depth].Prev
	}
	t.Pos += b.Len
}

// Edge reconstructs the frontier root at each depth from the tree's
// carried prev nodes, substituting the pool's empty-subtree root wherever
// no prev node exists at that depth (§4.C). The result is handed to
// Witness.Root as the second source of sibling hashes once a witness's
// collected fills run out.
func (t *MerkleTree) Edge(h hasher.NodeHasher, emptyRoots [types.Depth]types.Hash) [types.Depth]types.Hash {
	var path [types.Depth]types.Hash
	path[0] = h.Empty()
	cur := h.Empty()
	for depth := 0; depth < types.Depth-1; depth++ {
		n := t.Prev[depth]
		if !h.IsEmpty(n) {
			cur = h.Combine(uint8(depth), n, cur, false)
		} else {
			cur = h.Combine(uint8(depth), cur, emptyRoots[depth], false)
		}
		path[depth+1] = cur
	}
	return path
}

// WriteFrontier serializes the tree's position and carried prev nodes —
// enough to resume AddNodes/AddBridge and to recompute Edge, independently
// of any Witness (a checkpoint's persisted tree_frontier, §4.F).
func (t *MerkleTree) WriteFrontier(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, t.Pos); err != nil {
		return err
	}
	for _, h := range t.Prev {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrontier reconstructs a MerkleTree's pos/prev state from a buffer
// written by WriteFrontier. The returned tree carries no witnesses: they are
// not part of the frontier encoding.
func ReadFrontier(r io.Reader) (*MerkleTree, error) {
	t := &MerkleTree{}
	if err := binary.Read(r, binary.LittleEndian, &t.Pos); err != nil {
		return nil, err
	}
	for i := range t.Prev {
		if _, err := io.ReadFull(r, t.Prev[i][:]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

package tree

import (
	"encoding/binary"
	"io"

	"github.com/warpsync/core/internal/hasher"
	"github.com/warpsync/core/pkg/types"
)

// CompactLayer is one depth level of a Bridge: the fill hash handed to any
// witness that opportunistically completed at this depth during the
// bridge's block, and the tree's carried-over odd node (prev) at this
// depth after the block was absorbed.
type CompactLayer struct {
	Fill types.Hash
	Prev types.Hash
}

func (c *CompactLayer) writeTo(w io.Writer) error {
	if _, err := w.Write(c.Fill[:]); err != nil {
		return err
	}
	_, err := w.Write(c.Prev[:])
	return err
}

func readCompactLayer(r io.Reader) (CompactLayer, error) {
	var c CompactLayer
	if _, err := io.ReadFull(r, c.Fill[:]); err != nil {
		return c, err
	}
	_, err := io.ReadFull(r, c.Prev[:])
	return c, err
}

// Bridge is the compact delta produced by absorbing one block of nodes
// into a MerkleTree (§4.D). It lets a client fast-forward a witness whose
// wallet was offline across many blocks without replaying every
// intermediate node.
type Bridge struct {
	Pos      uint64
	BlockLen uint32
	Len      uint64
	Layers   [types.Depth]CompactLayer
}

// NewBridge returns a zero-length bridge with every layer set to pool h's
// empty sentinel, suitable as the accumulator passed to repeated Merge calls.
func NewBridge(h hasher.NodeHasher) Bridge {
	empty := h.Empty()
	var b Bridge
	for i := range b.Layers {
		b.Layers[i] = CompactLayer{Fill: empty, Prev: empty}
	}
	return b
}

// Merge folds other onto b in place: b keeps its own fill at any depth
// where it already has a non-empty one, otherwise adopts other's; b always
// adopts other's prev (the more recent carry), and accumulates length.
// Bridges must be merged in block order.
func (b *Bridge) Merge(h hasher.NodeHasher, other *Bridge) {
	for i := 0; i < types.Depth; i++ {
		if h.IsEmpty(b.Layers[i].Fill) && !h.IsEmpty(other.Layers[i].Fill) {
			b.Layers[i].Fill = other.Layers[i].Fill
		}
		b.Layers[i].Prev = other.Layers[i].Prev
	}
	b.Len += other.Len
}

// WriteTo serializes b as: u64 pos, u64 len, u32 block_len (all LE), then
// DEPTH pairs of (fill, prev) 32-byte hashes.
func (b *Bridge) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, v := range []interface{}{b.Pos, b.Len, b.BlockLen} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return n, err
		}
	}
	n += 8 + 8 + 4
	for i := range b.Layers {
		if err := b.Layers[i].writeTo(w); err != nil {
			return n, err
		}
		n += 2 * int64(types.HashSize)
	}
	return n, nil
}

// ReadBridge deserializes a Bridge written by WriteTo.
func ReadBridge(r io.Reader) (Bridge, error) {
	var b Bridge
	if err := binary.Read(r, binary.LittleEndian, &b.Pos); err != nil {
		return b, err
	}
	if err := binary.Read(r, binary.LittleEndian, &b.Len); err != nil {
		return b, err
	}
	if err := binary.Read(r, binary.LittleEndian, &b.BlockLen); err != nil {
		return b, err
	}
	for i := range b.Layers {
		layer, err := readCompactLayer(r)
		if err != nil {
			return b, err
		}
		b.Layers[i] = layer
	}
	return b, nil
}

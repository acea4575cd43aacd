// Package tree implements the incremental note-commitment Merkle tree:
// authentication-path reconstruction, compact bridges for checkpoint
// fast-forwarding, and the append-only tree itself (§4.B-D).
package tree

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/warpsync/core/internal/hasher"
	"github.com/warpsync/core/pkg/types"
)

// Path is the on-disk, positioned authentication path for a single note:
// its leaf value, its position in the tree, and the sibling hashes
// collected while the note is within one block's reach of the frontier.
type Path struct {
	Value    types.Hash
	Pos      uint64
	Siblings []types.Hash
}

// EmptyPath returns a Path for a not-yet-placed leaf of pool h.
func EmptyPath(h hasher.NodeHasher) Path {
	return Path{Value: h.Empty()}
}

// WriteTo serializes p as: u64 pos (LE), 32-byte value, u8 sibling count,
// then that many 32-byte siblings.
func (p *Path) WriteTo(w io.Writer) (int64, error) {
	var n int64
	if err := binary.Write(w, binary.LittleEndian, p.Pos); err != nil {
		return n, err
	}
	n += 8
	if _, err := w.Write(p.Value[:]); err != nil {
		return n, err
	}
	n += int64(types.HashSize)
	if len(p.Siblings) > 0xFF {
		return n, fmt.Errorf("tree: path has %d siblings, exceeds u8 wire limit", len(p.Siblings))
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(p.Siblings))); err != nil {
		return n, err
	}
	n++
	for _, s := range p.Siblings {
		if _, err := w.Write(s[:]); err != nil {
			return n, err
		}
		n += int64(types.HashSize)
	}
	return n, nil
}

// ReadPath deserializes a Path written by WriteTo.
func ReadPath(r io.Reader) (Path, error) {
	var p Path
	if err := binary.Read(r, binary.LittleEndian, &p.Pos); err != nil {
		return p, err
	}
	if _, err := io.ReadFull(r, p.Value[:]); err != nil {
		return p, err
	}
	var count uint8
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return p, err
	}
	p.Siblings = make([]types.Hash, count)
	for i := range p.Siblings {
		if _, err := io.ReadFull(r, p.Siblings[i][:]); err != nil {
			return p, err
		}
	}
	return p, nil
}

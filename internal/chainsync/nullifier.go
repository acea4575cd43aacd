package chainsync

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/warpsync/core/pkg/types"
)

// DeriveNullifier computes nullifier = H(nullifierKey || commitment ||
// position). Spending-key-derived nullifier keys are themselves opaque to
// this module, same as a ViewingKey's decryption primitive. The synchronizer
// calls this once a note's tree position is known, so it can populate
// ReceivedNote.Nullifier before persisting.
func DeriveNullifier(nullifierKey []byte, commitment types.Hash, position uint64) types.Hash {
	h := sha256.New()
	h.Write(nullifierKey)
	h.Write(commitment[:])
	var posBuf [8]byte
	binary.BigEndian.PutUint64(posBuf[:], position)
	h.Write(posBuf[:])

	var nullifier types.Hash
	copy(nullifier[:], h.Sum(nil))
	return nullifier
}

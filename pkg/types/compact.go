package types

// CompactBlock is the inbound wire shape delivered by the block-stream
// collaborator (§6). Blocks arrive height-contiguous and ascending; the
// synchronizer is fatal-errors if that contract is violated.
type CompactBlock struct {
	Height       uint64
	Hash         Hash
	Time         uint64
	Transactions []CompactTx
}

// CompactTx carries just enough of a transaction for trial decryption and
// nullifier cross-checking — no script or proof data. Pool names which
// shielded pool's commitment tree Outputs belongs to; a transaction with
// both sapling and orchard outputs arrives as two CompactTx entries.
type CompactTx struct {
	Hash    Hash
	Pool    Pool
	Outputs []CompactOutput
	Spends  []CompactSpend
}

// CompactOutput is one shielded output, encrypted against some recipient's
// incoming viewing key.
type CompactOutput struct {
	// Cmu is the note commitment (tree leaf) this output contributes,
	// regardless of whether any configured viewing key can decrypt it.
	Cmu        Hash
	Epk        [32]byte
	Ciphertext [52]byte
}

// CompactSpend carries only the nullifier revealed by a spend.
type CompactSpend struct {
	Nullifier Hash
}

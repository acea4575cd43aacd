package chainsync

import (
	"context"
	"testing"

	"github.com/warpsync/core/internal/decrypt"
	"github.com/warpsync/core/pkg/types"
)

// memStore is a minimal in-memory WalletStore for exercising the
// synchronizer without a real database.
type memStore struct {
	cp           Checkpoint
	hasCP        bool
	notes        []ReceivedNote
	spentHeight  map[uint64]uint64
	nullifierIdx map[types.Hash]uint64
}

func newMemStore() *memStore {
	return &memStore{spentHeight: map[uint64]uint64{}, nullifierIdx: map[types.Hash]uint64{}}
}

func (m *memStore) StoreBlock(_ context.Context, cp Checkpoint) error {
	m.cp, m.hasCP = cp, true
	return nil
}

func (m *memStore) StoreReceivedNote(_ context.Context, note ReceivedNote) (uint64, error) {
	id := uint64(len(m.notes))
	m.notes = append(m.notes, note)
	m.nullifierIdx[note.Nullifier] = id
	return id, nil
}

func (m *memStore) MarkSpent(_ context.Context, noteID uint64, spentHeight uint64) error {
	m.spentHeight[noteID] = spentHeight
	return nil
}

func (m *memStore) TrimToHeight(_ context.Context, height uint64) error {
	if m.hasCP && m.cp.Height > height {
		m.hasCP = false
		m.cp = Checkpoint{}
	}
	var kept []ReceivedNote
	for _, n := range m.notes {
		if n.ReceivedHeight <= height {
			kept = append(kept, n)
		}
	}
	m.notes = kept
	return nil
}

func (m *memStore) LoadCheckpoint(_ context.Context) (Checkpoint, bool, error) {
	return m.cp, m.hasCP, nil
}

func (m *memStore) FindByNullifier(_ context.Context, nullifier types.Hash) (uint64, bool, error) {
	id, ok := m.nullifierIdx[nullifier]
	return id, ok, nil
}

func (m *memStore) GetUnspentReceivedNotes(context.Context, uint32, types.Pool, uint64) ([]types.UTXO, error) {
	return nil, nil
}

func (m *memStore) GetTransparentAddress(context.Context, uint32) (string, bool, error) {
	return "", false, nil
}

type fakeKey struct {
	pool types.Pool
	tag  byte
}

func (k fakeKey) Pool() types.Pool { return k.pool }

func (k fakeKey) TryDecrypt(output types.CompactOutput) ([]byte, bool) {
	if output.Ciphertext[0] == k.tag {
		return make([]byte, 8), true
	}
	return nil, false
}

func saplingBlock(height uint64, tags ...byte) types.CompactBlock {
	tx := types.CompactTx{Pool: types.PoolSapling}
	for _, tag := range tags {
		var out types.CompactOutput
		out.Ciphertext[0] = tag
		out.Cmu[0] = tag
		tx.Outputs = append(tx.Outputs, out)
	}
	return types.CompactBlock{Height: height, Transactions: []types.CompactTx{tx}}
}

func TestSynchronizerInitializeStartsEmpty(t *testing.T) {
	s := NewSynchronizer(newMemStore(), nil, 0, nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if s.Height() != 0 {
		t.Fatalf("expected height 0, got %d", s.Height())
	}
}

func TestProcessAdvancesHeightAndCheckspoints(t *testing.T) {
	store := newMemStore()
	s := NewSynchronizer(store, []decrypt.ViewingKey{fakeKey{pool: types.PoolSapling, tag: 1}}, 0, []byte("test-nullifier-key"))
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	blocks := []types.CompactBlock{
		saplingBlock(1, 1, 2),
		saplingBlock(2, 3),
	}
	if err := s.Process(context.Background(), blocks); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if s.Height() != 2 {
		t.Fatalf("expected height 2, got %d", s.Height())
	}
	if !store.hasCP || store.cp.Height != 2 {
		t.Fatalf("expected a checkpoint at height 2, got %+v", store.cp)
	}
	if len(store.notes) != 1 {
		t.Fatalf("expected exactly 1 received note, got %d", len(store.notes))
	}
}

func TestProcessRejectsNonContiguousBatch(t *testing.T) {
	store := newMemStore()
	s := NewSynchronizer(store, nil, 0, nil)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.Process(context.Background(), []types.CompactBlock{saplingBlock(1)}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := s.Process(context.Background(), []types.CompactBlock{saplingBlock(3)}); err == nil {
		t.Fatalf("expected an error for a non-contiguous batch")
	}
}

func TestRewindTrimsAndReloads(t *testing.T) {
	store := newMemStore()
	s := NewSynchronizer(store, []decrypt.ViewingKey{fakeKey{pool: types.PoolSapling, tag: 1}}, 0, []byte("test-nullifier-key"))
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.Process(context.Background(), []types.CompactBlock{saplingBlock(1, 1), saplingBlock(2, 1)}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := s.Rewind(context.Background(), 1); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if store.hasCP {
		t.Fatalf("expected the height-2 checkpoint to be discarded")
	}
	if s.Height() != 0 {
		t.Fatalf("expected height to reset to 0 after rewind below any retained checkpoint, got %d", s.Height())
	}
}

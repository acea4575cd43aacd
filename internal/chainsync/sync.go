package chainsync

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/warpsync/core/internal/decrypt"
	"github.com/warpsync/core/internal/hasher"
	"github.com/warpsync/core/internal/tree"
	"github.com/warpsync/core/pkg/types"
)

// State is the synchronizer's current phase within one Process call
// (§4.F). It only matters for observability: Process always runs the
// phases in this order and returns to Idle on both success and failure.
type State int

const (
	Idle State = iota
	Decrypting
	Treeing
	Persisting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Decrypting:
		return "decrypting"
	case Treeing:
		return "treeing"
	case Persisting:
		return "persisting"
	default:
		return "unknown"
	}
}

// Synchronizer folds batches of compact blocks into the wallet's two
// shielded note-commitment trees, persisting the result through a
// WalletStore as it goes (§4.F).
type Synchronizer struct {
	store     WalletStore
	decrypter *decrypt.Decrypter
	account   uint32

	saplingHasher hasher.NodeHasher
	orchardHasher hasher.NodeHasher
	saplingTree   *tree.MerkleTree
	orchardTree   *tree.MerkleTree

	nullifierKey []byte

	state          State
	height         uint64
	lastHash       types.Hash
	nullifierEpoch uint64
}

// NewSynchronizer returns a synchronizer watching keys on behalf of
// account, persisting through store. nullifierKey derives the nullifier
// for each note this wallet receives (DeriveNullifier); pass nil if the
// wallet does not yet need spend cross-checking. Call Initialize before
// the first Process.
func NewSynchronizer(store WalletStore, keys []decrypt.ViewingKey, account uint32, nullifierKey []byte) *Synchronizer {
	return &Synchronizer{
		store:         store,
		decrypter:     decrypt.NewDecrypter(keys),
		account:       account,
		nullifierKey:  nullifierKey,
		saplingHasher: hasher.Sapling{},
		orchardHasher: hasher.Orchard{},
	}
}

// Initialize loads the latest checkpoint and reconstructs both trees'
// frontiers from it, or starts both trees empty if the wallet has never
// synced anything (§4.F).
func (s *Synchronizer) Initialize(ctx context.Context) error {
	cp, ok, err := s.store.LoadCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("chainsync: initialize: %w", err)
	}
	if !ok {
		s.saplingTree = tree.NewMerkleTree(s.saplingHasher)
		s.orchardTree = tree.NewMerkleTree(s.orchardHasher)
		s.height = 0
		s.lastHash = types.Hash{}
		s.nullifierEpoch = 0
		return nil
	}

	saplingTree, err := tree.ReadFrontier(bytes.NewReader(cp.SaplingFrontier))
	if err != nil {
		return fmt.Errorf("chainsync: initialize: sapling frontier: %w", err)
	}
	orchardTree, err := tree.ReadFrontier(bytes.NewReader(cp.OrchardFrontier))
	if err != nil {
		return fmt.Errorf("chainsync: initialize: orchard frontier: %w", err)
	}

	s.saplingTree = saplingTree
	s.orchardTree = orchardTree
	s.height = cp.Height
	s.lastHash = cp.BlockHash
	s.nullifierEpoch = cp.NullifierEpoch
	return nil
}

// Height returns the last block height successfully processed.
func (s *Synchronizer) Height() uint64 { return s.height }

// State returns the synchronizer's current phase.
func (s *Synchronizer) State() State { return s.state }

// Process absorbs one contiguous batch of compact blocks: trial-decrypts
// every output, folds the canonical commitment stream into the matching
// pool's tree (marking new witnesses for outputs that decrypted as hits),
// cross-checks revealed nullifiers against notes the wallet tracks, and
// checkpoints the result. On any error the synchronizer's in-memory state
// is left as of the last successful checkpoint; callers should retry the
// whole batch rather than resume mid-batch.
func (s *Synchronizer) Process(ctx context.Context, blocks []types.CompactBlock) error {
	if len(blocks) == 0 {
		return nil
	}
	if s.height != 0 && blocks[0].Height != s.height+1 {
		return fmt.Errorf("%w: next block is %d, expected %d", decrypt.ErrOutOfOrderBlock, blocks[0].Height, s.height+1)
	}

	saplingSnap, orchardSnap := *s.saplingTree, *s.orchardTree
	saplingSnap.Witnesses = append([]tree.Witness(nil), s.saplingTree.Witnesses...)
	orchardSnap.Witnesses = append([]tree.Witness(nil), s.orchardTree.Witnesses...)
	epochSnap := s.nullifierEpoch
	committed := false
	defer func() {
		if !committed {
			*s.saplingTree, *s.orchardTree = saplingSnap, orchardSnap
			s.nullifierEpoch = epochSnap
		}
	}()

	s.state = Decrypting
	result, err := s.decrypter.DecryptBatch(blocks)
	if err != nil {
		s.state = Idle
		return fmt.Errorf("chainsync: process: %w", err)
	}

	s.state = Treeing
	hitIndex := make(map[[3]int]decrypt.Hit, len(result.Hits))
	for _, h := range result.Hits {
		hitIndex[[3]int{int(h.BlockHeight), h.TxIndex, h.OutputIndex}] = h
	}

	var pending []pendingNote
	ci := 0
	for _, block := range blocks {
		for ti, tx := range block.Transactions {
			t, h := s.treeFor(tx.Pool)
			if t == nil {
				ci += len(tx.Outputs)
				continue
			}

			nodes := make([]tree.NodeInput, len(tx.Outputs))
			for oi := range tx.Outputs {
				c := result.Commitments[ci]
				hit, isHit := hitIndex[[3]int{int(block.Height), ti, oi}]
				nodes[oi] = tree.NodeInput{Value: c.Value, IsWitness: isHit}
				if isHit {
					pending = append(pending, pendingNote{
						commitment: c.Value,
						note: ReceivedNote{
							Account:        s.account,
							Pool:           hit.Pool,
							TxHash:         tx.Hash,
							Value:          noteValue(hit.Note),
							ReceivedHeight: block.Height,
						},
					})
				}
				ci++
			}

			if len(nodes) == 0 {
				continue
			}
			before := len(t.Witnesses)
			if _, err := t.AddNodes(h, uint32(len(nodes)), nodes); err != nil {
				s.state = Idle
				return fmt.Errorf("chainsync: process: add_nodes: %w", err)
			}
			s.assignPositions(t, before, pending)
		}

		for _, tx := range block.Transactions {
			for _, spend := range tx.Spends {
				noteID, ok, err := s.store.FindByNullifier(ctx, spend.Nullifier)
				if err != nil {
					s.state = Idle
					return fmt.Errorf("chainsync: process: nullifier lookup: %w", err)
				}
				if ok {
					if err := s.store.MarkSpent(ctx, noteID, block.Height); err != nil {
						s.state = Idle
						return fmt.Errorf("chainsync: process: mark_spent: %w", err)
					}
				}
			}
		}
	}

	s.state = Persisting
	for _, p := range pending {
		if _, err := s.store.StoreReceivedNote(ctx, p.note); err != nil {
			s.state = Idle
			return fmt.Errorf("chainsync: process: store_received_note: %w", err)
		}
	}

	last := blocks[len(blocks)-1]
	s.nullifierEpoch++
	cp, err := s.checkpoint(last)
	if err != nil {
		s.state = Idle
		return err
	}
	if err := s.store.StoreBlock(ctx, cp); err != nil {
		s.state = Idle
		return fmt.Errorf("chainsync: process: store_block: %w", err)
	}

	s.height = last.Height
	s.lastHash = last.Hash
	s.state = Idle
	committed = true
	return nil
}

// pendingNote pairs a not-yet-positioned ReceivedNote with the commitment
// it came from, since deriving its nullifier needs both the commitment
// and the tree position AddNodes assigns it.
type pendingNote struct {
	commitment types.Hash
	note       ReceivedNote
}

// assignPositions fills in the position and nullifier of pending's tail
// entries that this block's AddNodes call just appended as new witnesses,
// in the same order they were offered (§4.F: positions are only known
// once add_nodes has run).
func (s *Synchronizer) assignPositions(t *tree.MerkleTree, before int, pending []pendingNote) {
	newWitnesses := t.Witnesses[before:]
	start := len(pending) - len(newWitnesses)
	if start < 0 {
		return
	}
	for i, w := range newWitnesses {
		p := &pending[start+i]
		p.note.Position = w.Path.Pos
		if s.nullifierKey != nil {
			p.note.Nullifier = DeriveNullifier(s.nullifierKey, p.commitment, p.note.Position)
		}
	}
}

// noteValue reads a decrypted note's value, by convention its first 8
// bytes, little-endian (the layout a concrete ViewingKey's opaque note
// plaintext uses is otherwise none of this package's business).
func noteValue(note []byte) uint64 {
	if len(note) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(note[:8])
}

func (s *Synchronizer) treeFor(pool types.Pool) (*tree.MerkleTree, hasher.NodeHasher) {
	switch pool {
	case types.PoolSapling:
		return s.saplingTree, s.saplingHasher
	case types.PoolOrchard:
		return s.orchardTree, s.orchardHasher
	default:
		return nil, nil
	}
}

func (s *Synchronizer) checkpoint(last types.CompactBlock) (Checkpoint, error) {
	var saplingBuf, orchardBuf bytes.Buffer
	if err := s.saplingTree.WriteFrontier(&saplingBuf); err != nil {
		return Checkpoint{}, fmt.Errorf("chainsync: checkpoint: sapling frontier: %w", err)
	}
	if err := s.orchardTree.WriteFrontier(&orchardBuf); err != nil {
		return Checkpoint{}, fmt.Errorf("chainsync: checkpoint: orchard frontier: %w", err)
	}
	return Checkpoint{
		Height:          last.Height,
		BlockHash:       last.Hash,
		Timestamp:       last.Time,
		SaplingFrontier: saplingBuf.Bytes(),
		OrchardFrontier: orchardBuf.Bytes(),
		NullifierEpoch:  s.nullifierEpoch,
	}, nil
}

// ErrNothingToRewindTo reports that no checkpoint exists at or before a
// requested height. Rewind does not return it: rewinding below every
// retained checkpoint resets the synchronizer to empty trees at height 0.
var ErrNothingToRewindTo = errors.New("chainsync: no checkpoint at or before requested height")

// Rewind discards every checkpoint, received note and spend-mark above
// height and reinitializes the synchronizer's in-memory trees from
// whatever checkpoint remains (§4.F torn-write / reorg recovery, the
// supplemented rewind flow). A height of 0 discards everything.
func (s *Synchronizer) Rewind(ctx context.Context, height uint64) error {
	if err := s.store.TrimToHeight(ctx, height); err != nil {
		return fmt.Errorf("chainsync: rewind: %w", err)
	}
	if err := s.Initialize(ctx); err != nil {
		return fmt.Errorf("chainsync: rewind: %w", err)
	}
	return nil
}

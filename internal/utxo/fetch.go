// Package utxo implements the UTXO fetcher that feeds the planner:
// unspent shielded notes from the wallet store plus live transparent
// outputs from a remote RPC, pool-ordered (§4.I).
package utxo

import (
	"context"

	"github.com/warpsync/core/pkg/types"
)

// ExcludedPools is the bitmask §6 enumerates: bit 0 transparent, bit 1
// sapling, bit 2 orchard.
type ExcludedPools uint8

const (
	ExcludeTransparent ExcludedPools = 1 << 0
	ExcludeSapling     ExcludedPools = 1 << 1
	ExcludeOrchard     ExcludedPools = 1 << 2
)

func (e ExcludedPools) has(bit ExcludedPools) bool { return e&bit != 0 }

// NoteStore is the subset of the wallet store the fetcher needs: unspent
// shielded notes for an account as of a checkpoint height.
type NoteStore interface {
	GetUnspentReceivedNotes(ctx context.Context, account uint32, pool types.Pool, checkpointHeight uint64) ([]types.UTXO, error)
	GetTransparentAddress(ctx context.Context, account uint32) (addr string, ok bool, err error)
}

// TransparentRPC is the narrow collaborator interface for live
// transparent-UTXO lookups (§6: "Transparent UTXO RPC").
type TransparentRPC interface {
	GetAddressUTXOs(ctx context.Context, addrs []string, startHeight uint64, max int) ([]TransparentUTXO, error)
}

// TransparentUTXO is the RPC's raw reply shape before it is lifted into a
// types.UTXO.
type TransparentUTXO struct {
	TxID    types.Hash
	Index   uint32
	ValueZat uint64
	Height  uint64
}

// Fetcher pulls spendable notes for the planner from the wallet store and,
// unless excluded, a live transparent-address query.
type Fetcher struct {
	store NoteStore
	rpc   TransparentRPC
}

func NewFetcher(store NoteStore, rpc TransparentRPC) *Fetcher {
	return &Fetcher{store: store, rpc: rpc}
}

// Fetch returns unspent UTXOs for account, filtered by checkpointHeight for
// shielded pools and excludedPools for all three, concatenated in pool
// order: transparent, then sapling, then orchard (§4.I).
func (f *Fetcher) Fetch(ctx context.Context, account uint32, checkpointHeight uint64, excluded ExcludedPools) ([]types.UTXO, error) {
	var utxos []types.UTXO

	if !excluded.has(ExcludeTransparent) {
		transparent, err := f.fetchTransparent(ctx, account)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, transparent...)
	}

	if !excluded.has(ExcludeSapling) {
		notes, err := f.store.GetUnspentReceivedNotes(ctx, account, types.PoolSapling, checkpointHeight)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, notes...)
	}

	if !excluded.has(ExcludeOrchard) {
		notes, err := f.store.GetUnspentReceivedNotes(ctx, account, types.PoolOrchard, checkpointHeight)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, notes...)
	}

	return utxos, nil
}

func (f *Fetcher) fetchTransparent(ctx context.Context, account uint32) ([]types.UTXO, error) {
	addr, ok, err := f.store.GetTransparentAddress(ctx, account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	raw, err := f.rpc.GetAddressUTXOs(ctx, []string{addr}, 0, 0)
	if err != nil {
		return nil, err
	}

	utxos := make([]types.UTXO, len(raw))
	for i, r := range raw {
		utxos[i] = types.UTXO{
			Source: types.NewTransparentSource(r.TxID, r.Index),
			Amount: r.ValueZat,
		}
	}
	return utxos, nil
}

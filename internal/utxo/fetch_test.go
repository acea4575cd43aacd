package utxo

import (
	"context"
	"testing"

	"github.com/warpsync/core/pkg/types"
)

type fakeStore struct {
	addr    string
	hasAddr bool
	sapling []types.UTXO
	orchard []types.UTXO
}

func (s *fakeStore) GetUnspentReceivedNotes(_ context.Context, _ uint32, pool types.Pool, _ uint64) ([]types.UTXO, error) {
	switch pool {
	case types.PoolSapling:
		return s.sapling, nil
	case types.PoolOrchard:
		return s.orchard, nil
	default:
		return nil, nil
	}
}

func (s *fakeStore) GetTransparentAddress(_ context.Context, _ uint32) (string, bool, error) {
	return s.addr, s.hasAddr, nil
}

type fakeRPC struct {
	utxos []TransparentUTXO
}

func (r *fakeRPC) GetAddressUTXOs(_ context.Context, addrs []string, _ uint64, _ int) ([]TransparentUTXO, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	return r.utxos, nil
}

func TestFetchConcatenatesInPoolOrder(t *testing.T) {
	store := &fakeStore{
		addr:    "t1abc",
		hasAddr: true,
		sapling: []types.UTXO{{ID: 1, Source: types.NewSaplingSource(0), Amount: 100}},
		orchard: []types.UTXO{{ID: 2, Source: types.NewOrchardSource(0), Amount: 200}},
	}
	rpc := &fakeRPC{utxos: []TransparentUTXO{{ValueZat: 50}}}
	f := NewFetcher(store, rpc)

	got, err := f.Fetch(context.Background(), 0, 100, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 utxos, got %d", len(got))
	}
	if got[0].Source.Pool() != types.PoolTransparent {
		t.Fatalf("expected transparent utxo first, got pool %v", got[0].Source.Pool())
	}
	if got[1].Source.Pool() != types.PoolSapling || got[2].Source.Pool() != types.PoolOrchard {
		t.Fatalf("unexpected pool order: %+v", got)
	}
}

func TestFetchHonorsExcludedPools(t *testing.T) {
	store := &fakeStore{
		sapling: []types.UTXO{{ID: 1, Source: types.NewSaplingSource(0), Amount: 100}},
		orchard: []types.UTXO{{ID: 2, Source: types.NewOrchardSource(0), Amount: 200}},
	}
	rpc := &fakeRPC{}
	f := NewFetcher(store, rpc)

	got, err := f.Fetch(context.Background(), 0, 100, ExcludeOrchard|ExcludeTransparent)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].Source.Pool() != types.PoolSapling {
		t.Fatalf("expected only the sapling utxo, got %+v", got)
	}
}

func TestFetchSkipsTransparentWhenNoAddress(t *testing.T) {
	store := &fakeStore{hasAddr: false}
	rpc := &fakeRPC{utxos: []TransparentUTXO{{ValueZat: 999}}}
	f := NewFetcher(store, rpc)

	got, err := f.Fetch(context.Background(), 0, 0, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no utxos without a transparent address, got %+v", got)
	}
}

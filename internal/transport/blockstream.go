// Package transport holds the synchronizer's two external-facing
// collaborators (§6): the narrow inbound compact-block stream and a thin
// peer-to-peer tip notifier used only to learn when to ask for more.
package transport

import (
	"context"

	"github.com/warpsync/core/pkg/types"
)

// BlockSource is the inbound contract a concrete block provider (a
// lightwalletd-style RPC client, a local full node, a replay fixture)
// must satisfy. StreamBlocks delivers compact blocks from fromHeight
// onward, height-contiguous and ascending (the same contract
// decrypt.DecryptBatch and chainsync.Synchronizer.Process enforce on
// their inputs); the returned channel is closed when the source has
// delivered everything it currently has.
type BlockSource interface {
	StreamBlocks(ctx context.Context, fromHeight uint64) (<-chan types.CompactBlock, <-chan error)
}

// ChainTip is the collaborator's answer to "how far does the chain
// currently extend" (§6), used by callers to decide whether there is
// anything left to fetch before calling StreamBlocks again.
type ChainTip interface {
	GetChainTip(ctx context.Context) (height uint64, hash types.Hash, err error)
}

// Package decrypt implements trial decryption of compact shielded outputs
// against a wallet's incoming viewing keys (§4.E).
package decrypt

import (
	"errors"
	"sync"

	"github.com/warpsync/core/pkg/types"
)

// ErrOutOfOrderBlock is returned when a batch of blocks is not
// height-contiguous and ascending, violating the block-stream contract
// (§6, §4.E).
var ErrOutOfOrderBlock = errors.New("decrypt: compact blocks must be height-contiguous and ascending")

// ViewingKey decrypts one compact output, returning the decoded note bytes
// on success. A concrete implementation wraps the pool's actual
// decryption primitive (opaque to this package, same as the node hasher's
// combine function is opaque to §4.A).
type ViewingKey interface {
	Pool() types.Pool
	TryDecrypt(output types.CompactOutput) (note []byte, ok bool)
}

// Hit is one successful trial decryption. NotePosition is left zero here;
// the synchronizer records the tree position add_nodes assigns on the
// ReceivedNote it builds from the hit, not on the Hit itself.
type Hit struct {
	BlockHeight  uint64
	TxIndex      int
	OutputIndex  int
	Note         []byte
	NotePosition uint64
	Pool         types.Pool
}

// Commitment is one leaf the tree must absorb, whether or not it decrypted
// for us. The canonical-order contract (§4.E) requires every commitment —
// hit or miss — to appear in this stream in (block, tx, output) order.
type Commitment struct {
	Value     types.Hash
	ForWallet bool
}

// Result is the outcome of decrypting one batch: the canonical commitment
// stream (one entry per compact output, in order) and the subset that
// decrypted as hits.
type Result struct {
	Commitments []Commitment
	Hits        []Hit
}

// Decrypter trial-decrypts a batch of compact blocks against a fixed set of
// viewing keys, one per pool it watches.
type Decrypter struct {
	keys []ViewingKey
}

// NewDecrypter returns a Decrypter watching the given viewing keys.
func NewDecrypter(keys []ViewingKey) *Decrypter {
	return &Decrypter{keys: keys}
}

// DecryptBatch scans every output of every transaction in blocks, in
// canonical order, attempting each configured key in turn. It is the
// pure, allocation-bounded function the synchronizer calls once per batch
// (§5: the second of the two explicit parallel regions — fanned out
// across outputs, joined back into canonical order before returning).
func (d *Decrypter) DecryptBatch(blocks []types.CompactBlock) (Result, error) {
	if err := checkContiguous(blocks); err != nil {
		return Result{}, err
	}

	type job struct {
		blockIdx, txIdx, outIdx int
		output                  types.CompactOutput
	}
	var jobs []job
	for bi, b := range blocks {
		for ti, tx := range b.Transactions {
			for oi, out := range tx.Outputs {
				jobs = append(jobs, job{bi, ti, oi, out})
			}
		}
	}

	commitments := make([]Commitment, len(jobs))
	hits := make([]*Hit, len(jobs))

	const minParallelJobs = 8
	if len(jobs) < minParallelJobs {
		for i, j := range jobs {
			commitments[i], hits[i] = d.decryptOne(blocks[j.blockIdx].Height, j)
		}
	} else {
		var wg sync.WaitGroup
		const maxWorkers = 16
		workers := len(jobs)
		if workers > maxWorkers {
			workers = maxWorkers
		}
		chunk := (len(jobs) + workers - 1) / workers
		for w := 0; w < workers; w++ {
			start := w * chunk
			end := start + chunk
			if end > len(jobs) {
				end = len(jobs)
			}
			if start >= end {
				continue
			}
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for i := start; i < end; i++ {
					commitments[i], hits[i] = d.decryptOne(blocks[jobs[i].blockIdx].Height, jobs[i])
				}
			}(start, end)
		}
		wg.Wait()
	}

	result := Result{Commitments: commitments}
	for _, h := range hits {
		if h != nil {
			result.Hits = append(result.Hits, *h)
		}
	}
	return result, nil
}

func (d *Decrypter) decryptOne(height uint64, j struct {
	blockIdx, txIdx, outIdx int
	output                  types.CompactOutput
}) (Commitment, *Hit) {
	for _, key := range d.keys {
		if note, ok := key.TryDecrypt(j.output); ok {
			return Commitment{Value: j.output.Cmu, ForWallet: true}, &Hit{
				BlockHeight: height,
				TxIndex:     j.txIdx,
				OutputIndex: j.outIdx,
				Note:        note,
				Pool:        key.Pool(),
			}
		}
	}
	return Commitment{Value: j.output.Cmu}, nil
}

func checkContiguous(blocks []types.CompactBlock) error {
	for i := 1; i < len(blocks); i++ {
		if blocks[i].Height != blocks[i-1].Height+1 {
			return ErrOutOfOrderBlock
		}
	}
	return nil
}

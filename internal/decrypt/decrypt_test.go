package decrypt

import (
	"testing"

	"github.com/warpsync/core/pkg/types"
)

// fakeKey decrypts any output whose first ciphertext byte equals its tag.
type fakeKey struct {
	pool types.Pool
	tag  byte
}

func (k fakeKey) Pool() types.Pool { return k.pool }

func (k fakeKey) TryDecrypt(output types.CompactOutput) ([]byte, bool) {
	if output.Ciphertext[0] == k.tag {
		return []byte("note"), true
	}
	return nil, false
}

func block(height uint64, outs ...byte) types.CompactBlock {
	tx := types.CompactTx{}
	for _, tag := range outs {
		var out types.CompactOutput
		out.Ciphertext[0] = tag
		out.Cmu[0] = tag
		tx.Outputs = append(tx.Outputs, out)
	}
	return types.CompactBlock{Height: height, Transactions: []types.CompactTx{tx}}
}

func TestDecryptBatchCanonicalOrder(t *testing.T) {
	d := NewDecrypter([]ViewingKey{fakeKey{pool: types.PoolSapling, tag: 2}})
	blocks := []types.CompactBlock{
		block(10, 1, 2, 3),
		block(11, 4, 5),
	}

	result, err := d.DecryptBatch(blocks)
	if err != nil {
		t.Fatalf("DecryptBatch: %v", err)
	}
	if len(result.Commitments) != 5 {
		t.Fatalf("expected 5 commitments, got %d", len(result.Commitments))
	}
	for i, tag := range []byte{1, 2, 3, 4, 5} {
		if result.Commitments[i].Value[0] != tag {
			t.Fatalf("commitment %d out of order: got tag %d, want %d", i, result.Commitments[i].Value[0], tag)
		}
	}
	if len(result.Hits) != 1 || result.Hits[0].Note == nil {
		t.Fatalf("expected exactly 1 hit, got %d", len(result.Hits))
	}
	if result.Hits[0].BlockHeight != 10 {
		t.Fatalf("hit carries wrong block height: %d", result.Hits[0].BlockHeight)
	}
}

func TestDecryptBatchRejectsGap(t *testing.T) {
	d := NewDecrypter(nil)
	blocks := []types.CompactBlock{block(10), block(12)}
	if _, err := d.DecryptBatch(blocks); err != ErrOutOfOrderBlock {
		t.Fatalf("expected ErrOutOfOrderBlock, got %v", err)
	}
}

func TestDecryptBatchManyOutputsParallelPath(t *testing.T) {
	d := NewDecrypter([]ViewingKey{fakeKey{pool: types.PoolOrchard, tag: 9}})
	var tags []byte
	for i := 0; i < 40; i++ {
		tags = append(tags, byte(i%200))
	}
	tags = append(tags, 9)
	blocks := []types.CompactBlock{block(100, tags...)}

	result, err := d.DecryptBatch(blocks)
	if err != nil {
		t.Fatalf("DecryptBatch: %v", err)
	}
	if len(result.Commitments) != len(tags) {
		t.Fatalf("expected %d commitments, got %d", len(tags), len(result.Commitments))
	}
	// Tag 9 appears twice: once in the 0..39 run (index 9) and once appended
	// at the end (index 40).
	if len(result.Hits) != 2 {
		t.Fatalf("expected exactly 2 hits, got %d", len(result.Hits))
	}
}

package types

// Source identifies where a UTXO's value currently sits. The pool a
// UTXO belongs to is a pure function of its Source variant (§3).
type Source struct {
	kind sourceKind

	// Transparent
	TxID  Hash
	Index uint32

	// Sapling / Orchard
	NotePosition uint64
}

type sourceKind uint8

const (
	sourceTransparent sourceKind = iota
	sourceSapling
	sourceOrchard
)

func NewTransparentSource(txid Hash, index uint32) Source {
	return Source{kind: sourceTransparent, TxID: txid, Index: index}
}

func NewSaplingSource(position uint64) Source {
	return Source{kind: sourceSapling, NotePosition: position}
}

func NewOrchardSource(position uint64) Source {
	return Source{kind: sourceOrchard, NotePosition: position}
}

// Pool returns the value pool this source's funds currently live in.
func (s Source) Pool() Pool {
	switch s.kind {
	case sourceTransparent:
		return PoolTransparent
	case sourceSapling:
		return PoolSapling
	case sourceOrchard:
		return PoolOrchard
	default:
		return PoolTransparent
	}
}

// UTXO is a spendable value record, already resolved to a single pool via
// its Source (§3).
type UTXO struct {
	ID     uint64
	Source Source
	Amount uint64
}

// Destination is a recipient within one specific pool. Exactly one of the
// three pool-indexed slots in Order.Destinations is populated per pool the
// order is willing to land in.
type Destination struct {
	Pool Pool

	// TransparentAddr is valid when Pool == PoolTransparent (20-byte
	// pubkey/script hash).
	TransparentAddr [20]byte

	// ShieldedAddr is valid when Pool is Sapling or Orchard (diversified
	// payment address bytes).
	ShieldedAddr [43]byte
}

// Order is a single recipient request, resolved across up to three pools.
// destinations[p] is non-nil when the order accepts pool p as a landing
// spot for (part of) its amount.
type Order struct {
	ID           uint32
	Destinations [numPools]*Destination
	Amount       uint64
	Memo         []byte

	// Filled is the running total already allocated to this order by the
	// executor; invariant 0 <= Filled <= Amount (§3).
	Filled uint64

	// NoFee marks the planner's synthetic fee order; the executor copies it
	// onto that order's fills (Fill.NoFee), which are left out of
	// TransactionPlan.Outputs.
	NoFee bool
}

// Remaining returns how much of the order is still unfilled.
func (o *Order) Remaining() uint64 {
	return o.Amount - o.Filled
}

// AcceptsPool reports whether the order lists p as an acceptable
// destination.
func (o *Order) AcceptsPool(p Pool) bool {
	return o.Destinations[p] != nil
}

// PoolAllocation is a fixed triple of balances, one per pool.
type PoolAllocation [numPools]uint64

func NewPoolAllocation(transparent, sapling, orchard uint64) PoolAllocation {
	return PoolAllocation{transparent, sapling, orchard}
}

// PoolAllocationFromUTXOs sums utxos into their respective pools.
func PoolAllocationFromUTXOs(utxos []UTXO) PoolAllocation {
	var pa PoolAllocation
	for _, u := range utxos {
		pa[u.Source.Pool()] += u.Amount
	}
	return pa
}

// Add returns the elementwise sum.
func (pa PoolAllocation) Add(other PoolAllocation) PoolAllocation {
	var out PoolAllocation
	for i := range out {
		out[i] = pa[i] + other[i]
	}
	return out
}

// Sub returns the elementwise saturating difference.
func (pa PoolAllocation) Sub(other PoolAllocation) PoolAllocation {
	var out PoolAllocation
	for i := range out {
		if pa[i] > other[i] {
			out[i] = pa[i] - other[i]
		}
	}
	return out
}

// Total returns the sum across all pools.
func (pa PoolAllocation) Total() uint64 {
	var total uint64
	for _, v := range pa {
		total += v
	}
	return total
}

// Fill is one output in a planned transaction.
type Fill struct {
	OrderID    uint32
	SourcePool Pool
	DestPool   Pool
	Amount     uint64
	Memo       []byte
	Disclosed  bool // shielded -> transparent leg, a disclosure (§4.G rule 3)

	// NoFee marks a fill produced for a synthetic fee order (§4.H): it
	// consumes pool allocation like any other fill but is not a real
	// output and is excluded from TransactionPlan.Outputs.
	NoFee bool
}

// TransactionPlan is the immutable output of the fee fixed-point planner.
// Invariant: Σ Spends.Amount - Σ Outputs.Amount == fee >= 0 (§3, §8 prop 6).
type TransactionPlan struct {
	Spends  []UTXO
	Outputs []Fill
}

// SpendTotal returns the sum of all spend amounts.
func (p *TransactionPlan) SpendTotal() uint64 {
	var total uint64
	for _, s := range p.Spends {
		total += s.Amount
	}
	return total
}

// OutputTotal returns the sum of all output amounts.
func (p *TransactionPlan) OutputTotal() uint64 {
	var total uint64
	for _, o := range p.Outputs {
		total += o.Amount
	}
	return total
}

// Fee returns SpendTotal - OutputTotal, the fee implied by the plan.
func (p *TransactionPlan) Fee() uint64 {
	return p.SpendTotal() - p.OutputTotal()
}

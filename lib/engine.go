package lib

import (
	"cmp"
	"crypto/rand"
	"fmt"
	"iter"
	"slices"

	"github.com/canopy-network/bftsim/lib/crypto"
)

/* This file defines the contract between the orchestration layer and an atomic broadcast engine */

// Contribution is an opaque unit of user data proposed for inclusion in an agreed batch
// it must be comparable (used for equality and de-duplication) and have a canonical serialized form
type Contribution interface {
	comparable
	Bytes() []byte
}

// MessageI is the opaque envelope an Engine emits for its peers
// the orchestration layer never inspects the payload, it only clones it for every broadcast recipient
type MessageI interface {
	// Clone() returns an independent copy that shares no mutable state with the original
	Clone() MessageI
}

// Engine is the black box atomic broadcast algorithm; there is one instance per node
type Engine[C Contribution, N cmp.Ordered] interface {
	// Input() proposes a contribution
	Input(contribution C) error
	// HandleMessage() processes one inbound protocol message from a peer
	HandleMessage(sender N, message MessageI) error
	// Messages() lazily drains the currently pending outbound messages
	Messages() iter.Seq[TargetedMessage[N]]
	// Outputs() lazily drains the newly finalized batches
	Outputs() iter.Seq[Batch[C]]
}

// Ticker is implemented by engines that keep a logical clock, for example to replace a silent leader
// the driver ticks the engine whenever its node has no inbound message to handle
type Ticker interface {
	// Tick() advances the clock by one step; waiting is true while the engine expects messages that have not arrived
	Tick() (waiting bool, err error)
}

// Target is the routing directive of an outbound message: a single node or every other node
type Target[N cmp.Ordered] struct {
	node      N
	broadcast bool
}

// TargetNode() addresses a message to exactly one node
func TargetNode[N cmp.Ordered](node N) Target[N] { return Target[N]{node: node} }

// TargetAll() addresses a message to every node except the sender
func TargetAll[N cmp.Ordered]() Target[N] { return Target[N]{broadcast: true} }

// IsBroadcast() returns true if the target is 'all other nodes'
func (t Target[N]) IsBroadcast() bool { return t.broadcast }

// Node() returns the single recipient, ok is false for a broadcast
func (t Target[N]) Node() (node N, ok bool) { return t.node, !t.broadcast }

// String() returns a human readable form of the target
func (t Target[N]) String() string {
	if t.broadcast {
		return "all"
	}
	return fmt.Sprintf("node(%v)", t.node)
}

// TargetedMessage is an engine message together with its addressing metadata
type TargetedMessage[N cmp.Ordered] struct {
	Sender  N         // the node whose engine emitted the message
	Target  Target[N] // who should receive it
	Message MessageI  // the opaque engine payload
}

// Batch is the ordered set of contributions finalized for one epoch
type Batch[C Contribution] struct {
	Epoch         uint64 `json:"epoch"`
	Contributions []C    `json:"contributions"`
}

// Len() returns the number of contributions in the batch
func (b Batch[C]) Len() int { return len(b.Contributions) }

// Equal() returns true if both batches finalize the same contributions in the same order for the same epoch
func (b Batch[C]) Equal(o Batch[C]) bool {
	return b.Epoch == o.Epoch && slices.Equal(b.Contributions, o.Contributions)
}

// Encode() returns the canonical bytes of the batch
func (b Batch[C]) Encode() []byte {
	raw := make([][]byte, len(b.Contributions))
	for i, c := range b.Contributions {
		raw[i] = c.Bytes()
	}
	return EncodeBatch(b.Epoch, raw)
}

// Hash() returns the digest of the canonical bytes of the batch
func (b Batch[C]) Hash() []byte { return crypto.Hash(b.Encode()) }

// ShortHash() returns the hex short hash of the batch, enough to tell batches apart in logs and reports
func (b Batch[C]) ShortHash() string { return crypto.ShortHashString(b.Encode()) }

// HashBatch() returns the digest of an epoch and its ordered contributions
func HashBatch[C Contribution](epoch uint64, contributions []C) []byte {
	return Batch[C]{Epoch: epoch, Contributions: contributions}.Hash()
}

// TRANSACTION BELOW

var _ = HashBatch[Transaction] // ensure Transaction satisfies the Contribution constraint

// Transaction is the default Contribution: an immutable string of bytes
type Transaction string

// NewTransaction() creates a Transaction from raw bytes
func NewTransaction(b []byte) Transaction { return Transaction(b) }

// NewRandomTransaction() creates a Transaction of n random bytes
func NewRandomTransaction(n int) Transaction {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return Transaction(b)
}

// NewRandomTransactions() creates count random Transactions of n bytes each
func NewRandomTransactions(count, n int) []Transaction {
	txs := make([]Transaction, count)
	for i := range txs {
		txs[i] = NewRandomTransaction(n)
	}
	return txs
}

// Bytes() returns the raw bytes of the Transaction
func (t Transaction) Bytes() []byte { return []byte(t) }

// String() returns the truncated hex form of the Transaction
func (t Transaction) String() string { return BytesToTruncatedString(t.Bytes()) }

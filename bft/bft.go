package bft

import (
	"cmp"
	"iter"
	"slices"

	"github.com/canopy-network/bftsim/lib"
)

/*
	BFT is a deterministic, leader based atomic broadcast engine over a fixed validator set.

	Every epoch starts in round 0 with a round robin leader. The leader proposes a batch of pending contributions once
	it holds a full batch, and drives two rounds of voting (PROPOSE-VOTE then PRECOMMIT-VOTE) in which the replicas
	answer the leader directly. After each round the leader broadcasts the list of voters as proof of a quorum (n - f).
	On COMMIT every validator outputs the batch, removes the contributions from its pool and moves to the next epoch.

	A validator that waits on the leader for ViewTimeoutTicks idle ticks moves to the next round and sends a
	VIEW-CHANGE with its lock to the leader of that round. The new leader waits for a quorum of view changes and
	re-proposes the highest locked batch it was told about, or a fresh batch if nobody is locked.
	The engine is not thread safe; one goroutine (or one simulation loop) drives it.
*/

var (
	_ lib.Engine[lib.Transaction, uint64] = &BFT[lib.Transaction, uint64]{} // ensure BFT implements the Engine interface
	_ lib.Ticker                          = &BFT[lib.Transaction, uint64]{} // ensure BFT keeps a logical clock
)

// BFT is a structure that holds the state of one validator's engine
type BFT[C lib.Contribution, N cmp.Ordered] struct {
	ID           N                         // the identity of this validator
	Epoch        uint64                    // the current epoch being agreed upon
	Round        uint64                    // the current leader attempt within the epoch
	ValidatorSet ValidatorSet[N]           // the fixed set of validators
	Pool         *lib.ContributionPool[C]  // contributions pending finalization
	Committed    *lib.DeDuplicator[C]      // contributions already finalized
	Proposal     *Message[C, N]            // the accepted PROPOSE message of the current round
	Proposed     bool                      // whether this node already proposed in the current round
	Lock         *Message[C, N]            // the proposal this node sent a PRECOMMIT-VOTE for in the current epoch
	LockRound    uint64                    // the round of the lock
	Votes        VotesForEpoch[N]          // votes collected as the leader of the current round
	ViewChanges  ViewChangesForEpoch[C, N] // view changes collected as the leader of later rounds

	ticks   uint64                             // idle ticks spent waiting in the current round
	future  map[uint64][]bufferedMessage[C, N] // messages received for later epochs
	outbox  []lib.TargetedMessage[N]           // messages waiting to be drained by Messages()
	outputs []lib.Batch[C]                     // batches waiting to be drained by Outputs()

	Config lib.EngineConfig // self configuration
	log    lib.LoggerI      // logging
}

// New() creates a new engine instance for the validator 'self'
func New[C lib.Contribution, N cmp.Ordered](self N, validators []N, c lib.EngineConfig, l lib.LoggerI) (*BFT[C, N], lib.ErrorI) {
	if c.BatchSize <= 0 {
		return nil, ErrInvalidBatchSize(c.BatchSize)
	}
	set, err := NewValidatorSet(validators)
	if err != nil {
		return nil, err
	}
	if !set.Contains(self) {
		return nil, ErrSelfNotValidator(self)
	}
	if l == nil {
		l = lib.NewNullLogger()
	}
	return &BFT[C, N]{
		ID:           self,
		Epoch:        c.StartEpoch,
		ValidatorSet: set,
		Pool:         lib.NewContributionPool[C](c),
		Committed:    lib.NewDeDuplicator[C](),
		Votes:        make(VotesForEpoch[N]),
		ViewChanges:  make(ViewChangesForEpoch[C, N]),
		future:       make(map[uint64][]bufferedMessage[C, N]),
		Config:       c,
		log:          l,
	}, nil
}

// Input() adds a contribution to the pending pool and proposes if this node leads and has a full batch
// duplicates and already finalized contributions are ignored
func (b *BFT[C, N]) Input(contribution C) error {
	if b.Committed.Contains(contribution) {
		return nil
	}
	if _, err := b.Pool.Add(contribution); err != nil {
		return err
	}
	if err := b.tryPropose(); err != nil {
		return err
	}
	return nil
}

// Messages() lazily drains the pending outbound messages
func (b *BFT[C, N]) Messages() iter.Seq[lib.TargetedMessage[N]] {
	return func(yield func(lib.TargetedMessage[N]) bool) {
		for len(b.outbox) > 0 {
			next := b.outbox[0]
			b.outbox = b.outbox[1:]
			if !yield(next) {
				return
			}
		}
	}
}

// Outputs() lazily drains the newly finalized batches
func (b *BFT[C, N]) Outputs() iter.Seq[lib.Batch[C]] {
	return func(yield func(lib.Batch[C]) bool) {
		for len(b.outputs) > 0 {
			next := b.outputs[0]
			b.outputs = b.outputs[1:]
			if !yield(next) {
				return
			}
		}
	}
}

// Tick() advances the view timer while this node waits on the leader and starts a view change when it expires
func (b *BFT[C, N]) Tick() (waiting bool, err error) {
	if !b.waiting() {
		b.ticks = 0
		return false, nil
	}
	if b.ticks++; b.ticks < b.Config.ViewTimeoutTicks {
		return true, nil
	}
	if e := b.StartViewChange(b.Round + 1); e != nil {
		return false, e
	}
	return b.waiting(), nil
}

// waiting() returns true if the current round is expected to produce a batch that has not arrived yet
// after two full rotations of leaders without a decision the node stops timing out until a message arrives
func (b *BFT[C, N]) waiting() bool {
	if b.Round >= b.maxRounds() {
		return false
	}
	return b.Proposal != nil || b.Lock != nil || b.Round > 0 || b.Pool.Count() >= b.Config.BatchSize
}

// maxRounds() is the number of rounds a node times out on in a single epoch
func (b *BFT[C, N]) maxRounds() uint64 { return 2 * uint64(b.ValidatorSet.Len()) }

// Leader() returns the leader of the current round
func (b *BFT[C, N]) Leader() N { return b.LeaderOf(b.Round) }

// LeaderOf() returns the leader of a round of the current epoch
func (b *BFT[C, N]) LeaderOf(round uint64) N { return b.ValidatorSet.Leader(b.Epoch + round) }

// IsLeader() returns true if this node leads the current round
func (b *BFT[C, N]) IsLeader() bool { return b.Leader() == b.ID }

// finalize() outputs the committed contributions as the batch of the current epoch and moves to the next epoch
func (b *BFT[C, N]) finalize(contributions []C) lib.ErrorI {
	batch := lib.Batch[C]{Epoch: b.Epoch, Contributions: slices.Clone(contributions)}
	b.outputs = append(b.outputs, batch)
	for _, c := range batch.Contributions {
		b.Committed.Found(c)
	}
	b.Pool.Remove(batch.Contributions...)
	b.log.Infof("Finalized epoch %d in round %d with %d contributions", b.Epoch, b.Round, batch.Len())
	return b.newEpoch(b.Epoch + 1)
}

// newEpoch() resets the per epoch state, replays the messages buffered for the new epoch and lets the new leader propose
func (b *BFT[C, N]) newEpoch(epoch uint64) lib.ErrorI {
	b.Epoch, b.Lock, b.LockRound = epoch, nil, 0
	b.ViewChanges = make(ViewChangesForEpoch[C, N])
	b.newRound(0)
	// drop anything buffered for epochs that are now in the past
	for e := range b.future {
		if e < epoch {
			delete(b.future, e)
		}
	}
	buffered := b.future[epoch]
	delete(b.future, epoch)
	for _, m := range buffered {
		// a replayed COMMIT may advance the epoch again, the remaining messages are then simply stale
		if err := b.handleMessage(m.sender, m.msg); err != nil {
			return err
		}
	}
	return b.tryPropose()
}

// newRound() resets the per round state; the lock survives until the epoch is final
func (b *BFT[C, N]) newRound(round uint64) {
	b.Round, b.Proposal, b.Proposed, b.ticks = round, nil, false, 0
	b.Votes = make(VotesForEpoch[N])
	for r := range b.ViewChanges {
		if r < round {
			delete(b.ViewChanges, r)
		}
	}
}

// broadcast() queues a message for every other validator
func (b *BFT[C, N]) broadcast(msg *Message[C, N]) {
	b.outbox = append(b.outbox, lib.TargetedMessage[N]{Sender: b.ID, Target: lib.TargetAll[N](), Message: msg})
}

// sendToLeader() queues a message for the leader of the current round
func (b *BFT[C, N]) sendToLeader(msg *Message[C, N]) {
	b.outbox = append(b.outbox, lib.TargetedMessage[N]{Sender: b.ID, Target: lib.TargetNode(b.Leader()), Message: msg})
}

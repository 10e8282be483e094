package bft

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"

	"github.com/canopy-network/bftsim/lib"
)

// Phase is a stage of agreement within one epoch
type Phase uint8

const (
	Propose       Phase = iota + 1 // leader -> all: the proposed batch and its digest
	ProposeVote                    // replica -> leader: the proposal is valid
	Precommit                      // leader -> all: +quorum replicas voted for the proposal
	PrecommitVote                  // replica -> leader: locked on the proposal
	Commit                         // leader -> all: +quorum replicas are locked, finalize
	ViewChange                     // replica -> next leader: the current leader timed out, here is my lock
)

// String() returns the human readable name of the phase
func (p Phase) String() string {
	switch p {
	case Propose:
		return "PROPOSE"
	case ProposeVote:
		return "PROPOSE_VOTE"
	case Precommit:
		return "PRECOMMIT"
	case PrecommitVote:
		return "PRECOMMIT_VOTE"
	case Commit:
		return "COMMIT"
	case ViewChange:
		return "VIEW_CHANGE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", p)
	}
}

// IsProposerMessage() returns true for the phases only the leader may send
func (p Phase) IsProposerMessage() bool { return p == Propose || p == Precommit || p == Commit }

// IsReplicaMessage() returns true for the vote phases sent by replicas to the leader
func (p Phase) IsReplicaMessage() bool { return p == ProposeVote || p == PrecommitVote }

var _ lib.MessageI = &Message[lib.Transaction, uint64]{} // ensure Message implements the MessageI interface

// Message is the single envelope type exchanged between engines
type Message[C lib.Contribution, N cmp.Ordered] struct {
	Epoch         uint64 `json:"epoch"`
	Round         uint64 `json:"round"`
	Phase         Phase  `json:"phase"`
	Digest        []byte `json:"digest"`                  // the hash of the proposed batch; VIEW_CHANGE: of the lock, if any
	Contributions []C    `json:"contributions,omitempty"` // PROPOSE, COMMIT and a locked VIEW_CHANGE
	Justification []N    `json:"justification,omitempty"` // the voters of the previous phase, or the view changers of a later round
	LockRound     uint64 `json:"lockRound,omitempty"`     // VIEW_CHANGE only: the round of the lock
}

// Clone() returns a deep copy so every recipient may consume the message independently
func (x *Message[C, N]) Clone() lib.MessageI {
	if x == nil {
		return (*Message[C, N])(nil)
	}
	return &Message[C, N]{
		Epoch:         x.Epoch,
		Round:         x.Round,
		Phase:         x.Phase,
		Digest:        bytes.Clone(x.Digest),
		Contributions: slices.Clone(x.Contributions),
		Justification: slices.Clone(x.Justification),
		LockRound:     x.LockRound,
	}
}

// String() returns a short description for logging
func (x *Message[C, N]) String() string {
	return fmt.Sprintf("%s(epoch=%d, round=%d, digest=%s)", x.Phase, x.Epoch, x.Round, lib.BytesToTruncatedString(x.Digest))
}

// checkBasic() performs the stateless sanity checks on a message
func (x *Message[C, N]) checkBasic() lib.ErrorI {
	if x == nil {
		return ErrEmptyMessage()
	}
	if !x.Phase.IsProposerMessage() && !x.Phase.IsReplicaMessage() && x.Phase != ViewChange {
		return ErrUnknownPhase(x.Phase)
	}
	// a view change from a node without a lock is the only message without a digest
	if len(x.Digest) == 0 && x.Phase != ViewChange {
		return ErrEmptyMessage()
	}
	if (x.Phase == Propose || x.Phase == Commit) && len(x.Contributions) == 0 {
		return ErrEmptyMessage()
	}
	return nil
}

// HandleMessage() validates and routes an inbound message from a validator peer
func (b *BFT[C, N]) HandleMessage(sender N, message lib.MessageI) error {
	if err := b.handleMessage(sender, message); err != nil {
		return err
	}
	return nil
}

// handleMessage() is the typed error implementation of HandleMessage()
func (b *BFT[C, N]) handleMessage(sender N, message lib.MessageI) lib.ErrorI {
	// ensure is a valid engine message type
	msg, ok := message.(*Message[C, N])
	if !ok {
		return ErrUnknownEngineMsg(message)
	}
	if err := msg.checkBasic(); err != nil {
		return err
	}
	// ensure the sender is part of the set
	if !b.ValidatorSet.Contains(sender) {
		return ErrNotValidator(sender)
	}
	switch {
	case msg.Epoch < b.Epoch:
		// stale messages are harmless: the epoch is already final
		b.log.Debugf("Ignoring stale %s from %v", msg, sender)
		return nil
	case msg.Epoch > b.Epoch:
		return b.bufferFutureMessage(sender, msg)
	}
	return b.handle(sender, msg)
}

// handle() processes a message for the current epoch
func (b *BFT[C, N]) handle(sender N, msg *Message[C, N]) lib.ErrorI {
	switch msg.Phase {
	case Commit:
		// a commit carries its batch, so it finalizes the epoch from any round
		if err := b.checkProposer(sender, msg); err != nil {
			return err
		}
		b.log.Debugf("Received %s from proposer %v", msg, sender)
		return b.HandleCommit(msg)
	case ViewChange:
		b.log.Debugf("Received %s from replica %v", msg, sender)
		return b.AddViewChange(sender, msg)
	}
	switch {
	case msg.Round < b.Round:
		b.log.Debugf("Ignoring stale %s from %v", msg, sender)
		return nil
	case msg.Round > b.Round:
		// only a justified proposal pulls this node into a later round
		if msg.Phase != Propose {
			b.log.Debugf("Ignoring early %s from %v", msg, sender)
			return nil
		}
		if err := b.checkProposer(sender, msg); err != nil {
			return err
		}
		if err := b.checkJustification(msg); err != nil {
			return err
		}
		b.newRound(msg.Round)
	}
	// any message of the current round proves the round is alive
	b.ticks = 0
	if msg.Phase.IsReplicaMessage() {
		// votes are only collected by the leader
		if !b.IsLeader() {
			return ErrNotLeader(msg.Epoch)
		}
		b.log.Debugf("Received %s from replica %v", msg, sender)
		return b.AddVote(sender, msg)
	}
	if err := b.checkProposer(sender, msg); err != nil {
		return err
	}
	b.log.Debugf("Received %s from proposer %v", msg, sender)
	if msg.Phase == Propose {
		return b.HandleProposal(msg)
	}
	return b.HandlePrecommit(msg)
}

// checkProposer() ensures a proposer message comes from the leader of its round
func (b *BFT[C, N]) checkProposer(sender N, msg *Message[C, N]) lib.ErrorI {
	if leader := b.LeaderOf(msg.Round); sender != leader {
		return ErrInvalidProposer(sender, leader)
	}
	return nil
}

// checkJustification() ensures the leader's message is backed by a quorum of distinct validators
func (b *BFT[C, N]) checkJustification(msg *Message[C, N]) lib.ErrorI {
	voters := lib.NewDeDuplicator[N]()
	for _, v := range msg.Justification {
		if b.ValidatorSet.Contains(v) {
			voters.Found(v)
		}
	}
	if voters.Len() < b.ValidatorSet.Quorum() {
		return ErrInvalidJustification(voters.Len(), b.ValidatorSet.Quorum())
	}
	return nil
}

// bufferFutureMessage() holds a message for a later epoch until this node gets there
func (b *BFT[C, N]) bufferFutureMessage(sender N, msg *Message[C, N]) lib.ErrorI {
	if msg.Epoch-b.Epoch > b.Config.MaxFutureEpochs {
		return ErrEpochTooFar(msg.Epoch, b.Epoch)
	}
	// each validator sends at most a handful of messages per epoch
	if len(b.future[msg.Epoch]) >= b.ValidatorSet.Len()*maxMessagesPerValidator {
		return ErrTooManyBufferedMessages(msg.Epoch)
	}
	b.log.Debugf("Buffering %s from %v", msg, sender)
	b.future[msg.Epoch] = append(b.future[msg.Epoch], bufferedMessage[C, N]{sender: sender, msg: msg})
	return nil
}

// maxMessagesPerValidator is the number of distinct messages a single validator may send in one epoch
// a leader sends three per round and a replica two votes plus a view change per round it gives up on
const maxMessagesPerValidator = 8

// bufferedMessage is a message received ahead of this node's epoch
type bufferedMessage[C lib.Contribution, N cmp.Ordered] struct {
	sender N
	msg    *Message[C, N]
}

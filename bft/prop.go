package bft

import (
	"bytes"
	"slices"

	"github.com/canopy-network/bftsim/lib"
)

// PROPOSER MESSAGES RECEIVED FROM THE LEADER FOR THE CURRENT ROUND

// NOTE: the leader drives every round. It proposes a batch, and then twice justifies the next phase with the
// list of replicas that voted for the previous one. Replicas only ever answer the leader.

// tryPropose() makes the leader propose once it has a full batch of pending contributions
// in a later round the leader first needs a quorum of view changes and re-proposes the highest lock among them
func (b *BFT[C, N]) tryPropose() lib.ErrorI {
	if !b.IsLeader() || b.Proposed {
		return nil
	}
	var (
		contributions []C
		justification []N
	)
	if b.Round > 0 {
		changes := b.ViewChanges[b.Round]
		if len(changes) < b.ValidatorSet.Quorum() {
			return nil
		}
		justification = changes.Senders()
		if lock := changes.HighestLock(); lock != nil {
			contributions = slices.Clone(lock.Contributions)
		}
	}
	if contributions == nil {
		if b.Pool.Count() < b.Config.BatchSize {
			return nil
		}
		contributions = b.Pool.Take(b.Config.BatchSize)
	}
	b.Proposed = true
	proposal := &Message[C, N]{
		Epoch:         b.Epoch,
		Round:         b.Round,
		Phase:         Propose,
		Digest:        lib.HashBatch(b.Epoch, contributions),
		Contributions: contributions,
		Justification: justification,
	}
	b.log.Infof("Proposing %d contributions for epoch %d round %d", len(contributions), b.Epoch, b.Round)
	b.broadcast(proposal)
	// the leader is a replica of its own proposal
	return b.HandleProposal(proposal)
}

// HandleProposal() validates the leader's PROPOSE message and votes for it
func (b *BFT[C, N]) HandleProposal(msg *Message[C, N]) lib.ErrorI {
	if b.Proposal != nil {
		// a retransmission of the same proposal is harmless, an equivocation is not
		if bytes.Equal(b.Proposal.Digest, msg.Digest) {
			return nil
		}
		return ErrDuplicateProposerMessage()
	}
	if len(msg.Contributions) > b.Config.BatchSize {
		return ErrBatchTooLarge(len(msg.Contributions), b.Config.BatchSize)
	}
	if !bytes.Equal(lib.HashBatch(msg.Epoch, msg.Contributions), msg.Digest) {
		return ErrMismatchDigest()
	}
	// a later round is only opened by a quorum of view changes
	if msg.Round > 0 {
		if err := b.checkJustification(msg); err != nil {
			return err
		}
	}
	b.Proposal = msg
	return b.vote(ProposeVote)
}

// HandlePrecommit() validates the leader's PRECOMMIT message and locks on the proposal
func (b *BFT[C, N]) HandlePrecommit(msg *Message[C, N]) lib.ErrorI {
	if err := b.checkLeaderMessage(msg); err != nil {
		return err
	}
	if b.Lock != nil && b.LockRound == b.Round {
		return nil
	}
	b.Lock, b.LockRound = b.Proposal, b.Round
	return b.vote(PrecommitVote)
}

// HandleCommit() validates the leader's COMMIT message and finalizes its batch
func (b *BFT[C, N]) HandleCommit(msg *Message[C, N]) lib.ErrorI {
	if !bytes.Equal(lib.HashBatch(msg.Epoch, msg.Contributions), msg.Digest) {
		return ErrMismatchDigest()
	}
	if err := b.checkJustification(msg); err != nil {
		return err
	}
	return b.finalize(msg.Contributions)
}

// StartPrecommitPhase() is executed by the leader once a quorum voted for the proposal
func (b *BFT[C, N]) StartPrecommitPhase(justification []N) lib.ErrorI {
	msg := &Message[C, N]{Epoch: b.Epoch, Round: b.Round, Phase: Precommit, Digest: b.Proposal.Digest, Justification: justification}
	b.broadcast(msg)
	return b.HandlePrecommit(msg)
}

// StartCommitPhase() is executed by the leader once a quorum locked on the proposal
func (b *BFT[C, N]) StartCommitPhase(justification []N) lib.ErrorI {
	msg := &Message[C, N]{
		Epoch:         b.Epoch,
		Round:         b.Round,
		Phase:         Commit,
		Digest:        b.Proposal.Digest,
		Contributions: slices.Clone(b.Proposal.Contributions),
		Justification: justification,
	}
	b.broadcast(msg)
	return b.HandleCommit(msg)
}

// StartViewChange() gives up on the leader of the current round and reports this node's lock to the next one
func (b *BFT[C, N]) StartViewChange(round uint64) lib.ErrorI {
	b.log.Warnf("Leader %v of epoch %d round %d timed out, moving to round %d", b.Leader(), b.Epoch, b.Round, round)
	b.newRound(round)
	msg := &Message[C, N]{Epoch: b.Epoch, Round: round, Phase: ViewChange}
	if b.Lock != nil {
		msg.Digest, msg.Contributions, msg.LockRound = b.Lock.Digest, slices.Clone(b.Lock.Contributions), b.LockRound
	}
	if b.IsLeader() {
		return b.AddViewChange(b.ID, msg)
	}
	b.sendToLeader(msg)
	return nil
}

// checkLeaderMessage() ensures a PRECOMMIT refers to the accepted proposal and carries a quorum
func (b *BFT[C, N]) checkLeaderMessage(msg *Message[C, N]) lib.ErrorI {
	if b.Proposal == nil || !bytes.Equal(b.Proposal.Digest, msg.Digest) {
		return ErrMismatchDigest()
	}
	return b.checkJustification(msg)
}

// vote() sends a replica vote for the current proposal to the leader
func (b *BFT[C, N]) vote(phase Phase) lib.ErrorI {
	vote := &Message[C, N]{Epoch: b.Epoch, Round: b.Round, Phase: phase, Digest: b.Proposal.Digest}
	if b.IsLeader() {
		// the leader counts its own vote directly
		return b.AddVote(b.ID, vote)
	}
	b.sendToLeader(vote)
	return nil
}

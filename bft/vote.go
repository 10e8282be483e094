package bft

import (
	"bytes"
	"cmp"
	"maps"
	"slices"

	"github.com/canopy-network/bftsim/lib"
)

// LEADER TRACKING AND AGGREGATING VOTES FROM REPLICAS

// NOTE: A 'Vote' is a replica telling the leader it accepts the digest for a phase. Once the leader collects
// votes from a quorum (n - f) of validators it justifies the next phase to the entire set by listing the voters.

type (
	// VotesForEpoch is exclusively used by the Leader to track votes from Replicas for each phase
	VotesForEpoch[N cmp.Ordered] map[Phase]map[string]*VoteSet[N] // [Phase] -> [Digest] -> VoteSet
	// VoteSet holds the unique voters behind a digest
	VoteSet[N cmp.Ordered] struct {
		Digest []byte
		Voters []N
	}
	// ViewChangesForEpoch is used by the leaders of later rounds to track the replicas that gave up on earlier ones
	ViewChangesForEpoch[C lib.Contribution, N cmp.Ordered] map[uint64]ViewChanges[C, N] // [Round] -> ViewChanges
	// ViewChanges holds the VIEW_CHANGE message of each replica for one round
	ViewChanges[C lib.Contribution, N cmp.Ordered] map[N]*Message[C, N]
)

// AddVote() adds a Replica's vote to the VoteSet and advances the leader if a quorum is reached
func (b *BFT[C, N]) AddVote(sender N, vote *Message[C, N]) lib.ErrorI {
	// ensure no validator votes twice in the same phase
	for _, set := range b.Votes[vote.Phase] {
		if slices.Contains(set.Voters, sender) {
			return ErrDuplicateVote()
		}
	}
	voteSet := b.getVoteSet(vote)
	voteSet.Voters = append(voteSet.Voters, sender)
	// only the vote completing the first quorum for the proposal moves the leader forward
	leading := b.GetLeadingVote(vote.Phase)
	if leading != voteSet || len(leading.Voters) != b.ValidatorSet.Quorum() {
		return nil
	}
	if b.Proposal == nil || !bytes.Equal(leading.Digest, b.Proposal.Digest) {
		return nil
	}
	justification := slices.Clone(leading.Voters)
	switch vote.Phase {
	case ProposeVote:
		return b.StartPrecommitPhase(justification)
	default:
		return b.StartCommitPhase(justification)
	}
}

// GetLeadingVote() returns the VoteSet with the most voters for the phase
func (b *BFT[C, N]) GetLeadingVote(phase Phase) (leading *VoteSet[N]) {
	for _, set := range b.Votes[phase] {
		if leading == nil || len(set.Voters) > len(leading.Voters) {
			leading = set
		}
	}
	return
}

// getVoteSet() returns the set of votes for the Phase.Digest, initializing it if needed
func (b *BFT[C, N]) getVoteSet(vote *Message[C, N]) *VoteSet[N] {
	// ensure Votes for this Phase are initialized
	if _, ok := b.Votes[vote.Phase]; !ok {
		b.Votes[vote.Phase] = make(map[string]*VoteSet[N])
	}
	// the string version of the digest acts as a unique key for Replicas to vote on
	key := string(vote.Digest)
	set, ok := b.Votes[vote.Phase][key]
	if !ok {
		set = &VoteSet[N]{Digest: vote.Digest}
		b.Votes[vote.Phase][key] = set
	}
	return set
}

// AddViewChange() records a replica giving up on an earlier round of the epoch
// the leader of that round proposes once a quorum gave up, and joins the round early once f+1 replicas did
func (b *BFT[C, N]) AddViewChange(sender N, msg *Message[C, N]) lib.ErrorI {
	if msg.Round < b.Round {
		b.log.Debugf("Ignoring stale %s from %v", msg, sender)
		return nil
	}
	if b.LeaderOf(msg.Round) != b.ID {
		return ErrNotLeader(msg.Epoch)
	}
	if len(msg.Digest) != 0 && !bytes.Equal(lib.HashBatch(msg.Epoch, msg.Contributions), msg.Digest) {
		return ErrMismatchDigest()
	}
	changes, ok := b.ViewChanges[msg.Round]
	if !ok {
		changes = make(ViewChanges[C, N])
		b.ViewChanges[msg.Round] = changes
	}
	if _, found := changes[sender]; found {
		return ErrDuplicateVote()
	}
	changes[sender] = msg
	if msg.Round > b.Round {
		// at least one correct replica timed out, so this node will too
		if len(changes) > b.ValidatorSet.MaxFaulty() {
			return b.StartViewChange(msg.Round)
		}
		return nil
	}
	return b.tryPropose()
}

// Senders() returns the replicas that sent a view change in ascending order
func (v ViewChanges[C, N]) Senders() []N { return slices.Sorted(maps.Keys(v)) }

// HighestLock() returns the view change reporting the most recent lock, nil if no sender is locked
func (v ViewChanges[C, N]) HighestLock() (highest *Message[C, N]) {
	for _, sender := range v.Senders() {
		msg := v[sender]
		if len(msg.Digest) == 0 {
			continue
		}
		if highest == nil || msg.LockRound > highest.LockRound {
			highest = msg
		}
	}
	return
}

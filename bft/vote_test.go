package bft

import (
	"testing"

	"github.com/canopy-network/bftsim/lib"
	"github.com/stretchr/testify/require"
)

func TestAddVote(t *testing.T) {
	tests := []struct {
		name      string
		detail    string
		preAdd    map[uint64][]byte
		sender    uint64
		digest    []byte
		error     lib.ErrorCode
		precommit bool
	}{
		{
			name:   "vote added",
			detail: "a unique vote below quorum is recorded",
			preAdd: map[uint64][]byte{},
			sender: 1,
		},
		{
			name:   "duplicate voter",
			detail: "a vote for this phase was already received from this peer",
			preAdd: map[uint64][]byte{1: nil},
			sender: 1,
			error:  lib.CodeDuplicateVote,
		},
		{
			name:      "quorum",
			detail:    "the third matching vote of a 4 node set starts the precommit phase",
			preAdd:    map[uint64][]byte{0: nil, 1: nil},
			sender:    2,
			precommit: true,
		},
		{
			name:   "split",
			detail: "votes for a different digest do not count toward the proposal",
			preAdd: map[uint64][]byte{0: nil, 1: []byte("other")},
			sender: 2,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := New[lib.Transaction](uint64(0), []uint64{0, 1, 2, 3}, newTestConfig(1), nil)
			require.NoError(t, err)
			b.Proposal = newTestProposal(0, "a")
			digest := func(d []byte) []byte {
				if d == nil {
					return b.Proposal.Digest
				}
				return d
			}
			for voter, d := range test.preAdd {
				require.NoError(t, b.AddVote(voter, &testMsgT{Phase: ProposeVote, Digest: digest(d)}))
			}
			// drain whatever the pre-adds produced
			for range b.Messages() {
			}
			e := b.AddVote(test.sender, &testMsgT{Phase: ProposeVote, Digest: digest(test.digest)})
			if test.error != 0 {
				require.Error(t, e)
				require.Equal(t, test.error, e.Code())
				return
			}
			require.NoError(t, e)
			var precommits int
			for m := range b.Messages() {
				if m.Message.(*testMsgT).Phase == Precommit {
					precommits++
					require.Len(t, m.Message.(*testMsgT).Justification, 3)
				}
			}
			require.Equal(t, test.precommit, precommits == 1)
			require.Equal(t, test.precommit, b.Lock != nil)
		})
	}
}

func TestGetLeadingVote(t *testing.T) {
	b, err := New[lib.Transaction](uint64(0), []uint64{0, 1, 2, 3}, newTestConfig(1), nil)
	require.NoError(t, err)
	require.Nil(t, b.GetLeadingVote(ProposeVote))
	require.NoError(t, b.AddVote(1, &testMsgT{Phase: ProposeVote, Digest: []byte("x")}))
	require.NoError(t, b.AddVote(2, &testMsgT{Phase: ProposeVote, Digest: []byte("y")}))
	require.NoError(t, b.AddVote(3, &testMsgT{Phase: ProposeVote, Digest: []byte("y")}))
	leading := b.GetLeadingVote(ProposeVote)
	require.Equal(t, []byte("y"), leading.Digest)
	require.Equal(t, []uint64{2, 3}, leading.Voters)
}

func TestAddViewChange(t *testing.T) {
	type change struct {
		sender uint64
		round  uint64
		lock   []lib.Transaction
	}
	tests := []struct {
		name          string
		detail        string
		timedOut      bool
		changes       []change
		error         lib.ErrorCode
		round         uint64
		proposed      []lib.Transaction
		justification []uint64
	}{
		{
			name:     "below quorum",
			detail:   "the leader of the next round waits for a quorum of view changes",
			timedOut: true,
			changes:  []change{{sender: 0, round: 1}},
			round:    1,
		},
		{
			name:          "quorum",
			detail:        "a quorum of unlocked view changes lets the leader propose a fresh batch",
			timedOut:      true,
			changes:       []change{{sender: 0, round: 1}, {sender: 3, round: 1}},
			round:         1,
			proposed:      []lib.Transaction{"a"},
			justification: []uint64{0, 1, 3},
		},
		{
			name:          "locked replica",
			detail:        "the highest lock among the view changes is proposed again",
			timedOut:      true,
			changes:       []change{{sender: 0, round: 1, lock: []lib.Transaction{"x"}}, {sender: 3, round: 1}},
			round:         1,
			proposed:      []lib.Transaction{"x"},
			justification: []uint64{0, 1, 3},
		},
		{
			name:    "one replica ahead",
			detail:  "a single view change could be faulty and does not move the leader",
			changes: []change{{sender: 0, round: 1}},
		},
		{
			name:          "replicas ahead",
			detail:        "f+1 view changes include a correct replica so the leader joins the round and proposes",
			changes:       []change{{sender: 0, round: 1}, {sender: 2, round: 1}},
			round:         1,
			proposed:      []lib.Transaction{"a"},
			justification: []uint64{0, 1, 2},
		},
		{
			name:     "stale",
			detail:   "a view change for a round already left is ignored",
			timedOut: true,
			changes:  []change{{sender: 0, round: 0}},
			round:    1,
		},
		{
			name:     "duplicate",
			detail:   "a replica may give up on a round once",
			timedOut: true,
			changes:  []change{{sender: 0, round: 1}, {sender: 0, round: 1}},
			error:    lib.CodeDuplicateVote,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := New[lib.Transaction](uint64(1), []uint64{0, 1, 2, 3}, newTestConfig(1), nil)
			require.NoError(t, err)
			require.NoError(t, b.Input("a"))
			if test.timedOut {
				require.NoError(t, b.StartViewChange(1))
			}
			var e lib.ErrorI
			for i, c := range test.changes {
				msg := &testMsgT{Round: c.round, Phase: ViewChange}
				if c.lock != nil {
					msg.Digest, msg.Contributions = lib.HashBatch(0, c.lock), c.lock
				}
				if e = b.AddViewChange(c.sender, msg); i < len(test.changes)-1 {
					require.NoError(t, e)
				}
			}
			if test.error != 0 {
				require.Error(t, e)
				require.Equal(t, test.error, e.Code())
				return
			}
			require.NoError(t, e)
			require.Equal(t, test.round, b.Round)
			var proposal *testMsgT
			for m := range b.Messages() {
				if msg := m.Message.(*testMsgT); msg.Phase == Propose {
					proposal = msg
				}
			}
			if test.proposed == nil {
				require.Nil(t, proposal)
				return
			}
			require.NotNil(t, proposal)
			require.Equal(t, test.round, proposal.Round)
			require.Equal(t, test.proposed, proposal.Contributions)
			require.Equal(t, test.justification, proposal.Justification)
		})
	}
}

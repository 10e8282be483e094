package bft

import (
	"fmt"
	"testing"

	"github.com/canopy-network/bftsim/lib"
	"github.com/stretchr/testify/require"
)

type testEngine = BFT[lib.Transaction, uint64]

// testDelivery is a message in flight inside the test network
type testDelivery struct {
	from, to uint64
	msg      lib.MessageI
}

// testNetwork is a minimal in-order router used to exercise engines without the simulator
type testNetwork struct {
	engines  map[uint64]*testEngine
	ids      []uint64
	crashed  map[uint64]bool
	inFlight *lib.Queue[testDelivery]
}

func newTestNetwork(t *testing.T, n int, config lib.EngineConfig) *testNetwork {
	tn := &testNetwork{engines: map[uint64]*testEngine{}, crashed: map[uint64]bool{}, inFlight: lib.NewQueue[testDelivery]()}
	for i := 0; i < n; i++ {
		tn.ids = append(tn.ids, uint64(i))
	}
	for _, id := range tn.ids {
		e, err := New[lib.Transaction](id, tn.ids, config, lib.NewNullLogger())
		require.NoError(t, err)
		tn.engines[id] = e
	}
	return tn
}

func newTestConfig(batchSize int) lib.EngineConfig {
	c := lib.DefaultEngineConfig()
	c.BatchSize = batchSize
	return c
}

func newTestTxs(count int) (txs []lib.Transaction) {
	for i := 0; i < count; i++ {
		txs = append(txs, lib.Transaction(fmt.Sprintf("tx-%d", i)))
	}
	return
}

// inputAll() submits every contribution to every live engine
func (tn *testNetwork) inputAll(t *testing.T, txs []lib.Transaction) {
	for _, tx := range txs {
		for _, id := range tn.ids {
			if !tn.crashed[id] {
				require.NoError(t, tn.engines[id].Input(tx))
			}
		}
	}
}

// collect() moves every pending engine message into the in flight queue
func (tn *testNetwork) collect() {
	for _, id := range tn.ids {
		for m := range tn.engines[id].Messages() {
			if node, ok := m.Target.Node(); ok {
				tn.inFlight.Push(testDelivery{from: id, to: node, msg: m.Message.Clone()})
				continue
			}
			for _, to := range tn.ids {
				if to != id {
					tn.inFlight.Push(testDelivery{from: id, to: to, msg: m.Message.Clone()})
				}
			}
		}
	}
}

// run() delivers messages until the network is quiet
func (tn *testNetwork) run(t *testing.T) {
	tn.collect()
	for d := range tn.inFlight.Drain() {
		if tn.crashed[d.to] || tn.crashed[d.from] {
			continue
		}
		require.NoError(t, tn.engines[d.to].HandleMessage(d.from, d.msg))
		tn.collect()
	}
}

// settle() delivers messages and ticks the live engines until none of them is waiting on a timeout
func (tn *testNetwork) settle(t *testing.T) {
	tn.run(t)
	for i := 0; i < 100_000; i++ {
		waiting := false
		for _, id := range tn.ids {
			if tn.crashed[id] {
				continue
			}
			w, err := tn.engines[id].Tick()
			require.NoError(t, err)
			waiting = waiting || w
		}
		tn.run(t)
		if !waiting {
			return
		}
	}
	t.Fatal("engines never stopped waiting")
}

func (tn *testNetwork) batches(id uint64) (out []lib.Batch[lib.Transaction]) {
	for b := range tn.engines[id].Outputs() {
		out = append(out, b)
	}
	return
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		detail     string
		self       uint64
		validators []uint64
		batchSize  int
		error      lib.ErrorCode
	}{
		{name: "valid", detail: "a validator of a non empty set", self: 1, validators: []uint64{0, 1, 2, 3}, batchSize: 5},
		{name: "duplicates", detail: "duplicate ids are collapsed", self: 1, validators: []uint64{1, 1, 0}, batchSize: 5},
		{name: "no batch", detail: "the batch size must be positive", self: 0, validators: []uint64{0}, error: lib.CodeInvalidBatchSize},
		{name: "empty set", detail: "the validator set may not be empty", self: 0, batchSize: 5, error: lib.CodeEmptyValidatorSet},
		{name: "not in set", detail: "self must be a validator", self: 9, validators: []uint64{0, 1}, batchSize: 5, error: lib.CodeSelfNotValidator},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := New[lib.Transaction](test.self, test.validators, newTestConfig(test.batchSize), nil)
			if test.error != 0 {
				require.Error(t, err)
				require.Equal(t, test.error, err.Code())
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.self, b.ID)
			require.Zero(t, b.Epoch)
		})
	}
}

func TestAgreement(t *testing.T) {
	tests := []struct {
		name      string
		detail    string
		nodes     int
		batchSize int
		txs       int
		batches   int
	}{
		{name: "single node", detail: "a lone validator finalizes on its own", nodes: 1, batchSize: 2, txs: 4, batches: 2},
		{name: "four nodes", detail: "every leader of a 4 node set finalizes one batch", nodes: 4, batchSize: 5, txs: 20, batches: 4},
		{name: "partial batch", detail: "leftover contributions below the batch size stay pending", nodes: 4, batchSize: 10, txs: 25, batches: 2},
		{name: "seven nodes", detail: "a larger set agrees on every epoch", nodes: 7, batchSize: 3, txs: 30, batches: 10},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tn := newTestNetwork(t, test.nodes, newTestConfig(test.batchSize))
			txs := newTestTxs(test.txs)
			tn.inputAll(t, txs)
			tn.run(t)
			expected := tn.batches(0)
			require.Len(t, expected, test.batches)
			for i, b := range expected {
				require.Equal(t, uint64(i), b.Epoch)
				require.Equal(t, txs[i*test.batchSize:(i+1)*test.batchSize], b.Contributions)
			}
			for _, id := range tn.ids[1:] {
				got := tn.batches(id)
				require.Len(t, got, test.batches)
				for i := range got {
					require.True(t, expected[i].Equal(got[i]), "node %d epoch %d", id, i)
				}
				require.Equal(t, uint64(test.batches), tn.engines[id].Epoch)
				require.Equal(t, test.txs-test.batches*test.batchSize, tn.engines[id].Pool.Count())
			}
		})
	}
}

func TestCrashedValidators(t *testing.T) {
	tests := []struct {
		name    string
		detail  string
		crashed []uint64
		batches int
	}{
		{name: "first leader", detail: "the silent leader of epoch 0 is replaced by a view change", crashed: []uint64{0}, batches: 4},
		{name: "second leader", detail: "the silent leader of epoch 1 is replaced by a view change", crashed: []uint64{1}, batches: 4},
		{name: "third leader", detail: "the silent leader of epoch 2 is replaced by a view change", crashed: []uint64{2}, batches: 4},
		{name: "last leader", detail: "the silent leader of epoch 3 is replaced by the leader of epoch 0", crashed: []uint64{3}, batches: 4},
		{name: "too many", detail: "two crashed validators leave no quorum and the others give up", crashed: []uint64{2, 3}, batches: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tn := newTestNetwork(t, 4, newTestConfig(5))
			for _, id := range test.crashed {
				tn.crashed[id] = true
			}
			txs := newTestTxs(20)
			tn.inputAll(t, txs)
			tn.settle(t)
			var expected []lib.Batch[lib.Transaction]
			for _, id := range tn.ids {
				if tn.crashed[id] {
					continue
				}
				got := tn.batches(id)
				require.Len(t, got, test.batches, "node %d", id)
				if expected == nil {
					expected = got
				}
				for i := range got {
					require.True(t, expected[i].Equal(got[i]), "node %d epoch %d", id, i)
					require.Equal(t, uint64(i), got[i].Epoch)
				}
			}
			// every contribution is finalized exactly once
			var finalized []lib.Transaction
			for _, b := range expected {
				finalized = append(finalized, b.Contributions...)
			}
			require.ElementsMatch(t, txs[:len(finalized)], finalized)
		})
	}
}

func TestTick(t *testing.T) {
	config := newTestConfig(1)
	config.ViewTimeoutTicks = 3
	tn := newTestNetwork(t, 4, config)
	e := tn.engines[2]
	// nothing to wait for
	waiting, err := e.Tick()
	require.NoError(t, err)
	require.False(t, waiting)
	// a full pool expects a proposal from the silent leader
	require.NoError(t, e.Input("a"))
	for i := 0; i < 2; i++ {
		waiting, err = e.Tick()
		require.NoError(t, err)
		require.True(t, waiting)
		require.Zero(t, e.Round)
	}
	// the timeout moves to the next round and asks its leader to take over
	waiting, err = e.Tick()
	require.NoError(t, err)
	require.True(t, waiting)
	require.EqualValues(t, 1, e.Round)
	var sent []lib.TargetedMessage[uint64]
	for m := range e.Messages() {
		sent = append(sent, m)
	}
	require.Len(t, sent, 1)
	to, ok := sent[0].Target.Node()
	require.True(t, ok)
	require.Equal(t, e.LeaderOf(1), to)
	require.Equal(t, ViewChange, sent[0].Message.(*testMsgT).Phase)
	// a node that went through every leader twice stops timing out
	for e.Round < e.maxRounds() {
		_, err = e.Tick()
		require.NoError(t, err)
	}
	waiting, err = e.Tick()
	require.NoError(t, err)
	require.False(t, waiting)
}

func TestInput(t *testing.T) {
	tn := newTestNetwork(t, 4, newTestConfig(2))
	e := tn.engines[1]
	// duplicates are ignored
	require.NoError(t, e.Input("a"))
	require.NoError(t, e.Input("a"))
	require.Equal(t, 1, e.Pool.Count())
	// a replica never proposes
	require.NoError(t, e.Input("b"))
	for range e.Messages() {
		t.Fatal("replica should not emit a proposal")
	}
	// finalized contributions are ignored
	tn.inputAll(t, []lib.Transaction{"a", "b"})
	tn.run(t)
	require.Equal(t, uint64(1), e.Epoch)
	require.NoError(t, e.Input("a"))
	require.Zero(t, e.Pool.Count())
	// oversized contributions are rejected
	small := newTestConfig(2)
	small.MaxContributionBytes = 1
	s, err := New[lib.Transaction](uint64(0), []uint64{0}, small, nil)
	require.NoError(t, err)
	require.True(t, lib.IsError(s.Input("too big"), lib.EngineModule, lib.CodeContributionTooLarge))
}

func TestReplicaVotesToLeader(t *testing.T) {
	tn := newTestNetwork(t, 4, newTestConfig(1))
	leader, replica := tn.engines[0], tn.engines[2]
	require.NoError(t, leader.Input("a"))
	var proposal lib.TargetedMessage[uint64]
	for m := range leader.Messages() {
		proposal = m
	}
	require.True(t, proposal.Target.IsBroadcast())
	require.Equal(t, Propose, proposal.Message.(*testMsgT).Phase)
	require.NoError(t, replica.HandleMessage(0, proposal.Message.Clone()))
	var votes []lib.TargetedMessage[uint64]
	for m := range replica.Messages() {
		votes = append(votes, m)
	}
	require.Len(t, votes, 1)
	to, ok := votes[0].Target.Node()
	require.True(t, ok)
	require.Equal(t, uint64(0), to)
	require.Equal(t, ProposeVote, votes[0].Message.(*testMsgT).Phase)
}

type testMsgT = Message[lib.Transaction, uint64]

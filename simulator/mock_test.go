package simulator

import (
	"iter"
	"testing"

	"github.com/canopy-network/bftsim/lib"
	"github.com/canopy-network/bftsim/session"
	"github.com/stretchr/testify/require"
)

var (
	_ lib.Engine[lib.Transaction, uint64] = &testEngine{}
	_ lib.Ticker                          = &testEngine{}
)

// testMsg is a minimal engine payload
type testMsg struct{ body string }

func (m *testMsg) Clone() lib.MessageI { return &testMsg{body: m.body} }

// testReceived is a message as seen by a test engine
type testReceived struct {
	sender uint64
	body   string
}

// testEngine is a scripted engine: it records what it is given and emits whatever the hooks queue
type testEngine struct {
	id        uint64
	inputs    []lib.Transaction
	received  []testReceived
	outbox    *lib.Queue[lib.TargetedMessage[uint64]]
	outputs   *lib.Queue[lib.Batch[lib.Transaction]]
	onInput   func(e *testEngine, c lib.Transaction) error
	onMessage func(e *testEngine, sender uint64, m *testMsg) error
	onTick    func(e *testEngine) (bool, error)
	ticks     int
}

func newTestEngine(id uint64) *testEngine {
	return &testEngine{id: id, outbox: lib.NewQueue[lib.TargetedMessage[uint64]](), outputs: lib.NewQueue[lib.Batch[lib.Transaction]]()}
}

func (e *testEngine) Input(c lib.Transaction) error {
	e.inputs = append(e.inputs, c)
	if e.onInput != nil {
		return e.onInput(e, c)
	}
	return nil
}

func (e *testEngine) HandleMessage(sender uint64, message lib.MessageI) error {
	m := message.(*testMsg)
	e.received = append(e.received, testReceived{sender: sender, body: m.body})
	if e.onMessage != nil {
		return e.onMessage(e, sender, m)
	}
	return nil
}

func (e *testEngine) Tick() (bool, error) {
	e.ticks++
	if e.onTick != nil {
		return e.onTick(e)
	}
	return false, nil
}

func (e *testEngine) Messages() iter.Seq[lib.TargetedMessage[uint64]] { return e.outbox.Drain() }
func (e *testEngine) Outputs() iter.Seq[lib.Batch[lib.Transaction]]   { return e.outputs.Drain() }

func (e *testEngine) broadcast(body string) {
	e.outbox.Push(lib.TargetedMessage[uint64]{Target: lib.TargetAll[uint64](), Message: &testMsg{body: body}})
}

func (e *testEngine) send(to uint64, body string) {
	e.outbox.Push(lib.TargetedMessage[uint64]{Target: lib.TargetNode(to), Message: &testMsg{body: body}})
}

func (e *testEngine) output(epoch uint64, txs ...lib.Transaction) {
	e.outputs.Push(lib.Batch[lib.Transaction]{Epoch: epoch, Contributions: txs})
}

func newTestSimConfig() lib.SimulatorConfig {
	c := lib.DefaultSimulatorConfig()
	c.StepBudget = 10_000
	return c
}

// newTestSimulator() creates a simulator of n scripted engines with ids 0..n-1
func newTestSimulator(t *testing.T, n int, config lib.SimulatorConfig) (*Simulator[lib.Transaction, uint64], []*testEngine) {
	var (
		engines  []*testEngine
		sessions []*session.Session[lib.Transaction, uint64]
	)
	for i := 0; i < n; i++ {
		e := newTestEngine(uint64(i))
		ss, err := session.New[lib.Transaction, uint64](e.id, e, nil, lib.NewNullLogger())
		require.NoError(t, err)
		engines, sessions = append(engines, e), append(sessions, ss)
	}
	sim, err := New(sessions, config, nil, lib.NewNullLogger())
	require.NoError(t, err)
	return sim, engines
}

// emit() makes a session collect what its scripted engine queued
func emit(t *testing.T, sim *Simulator[lib.Transaction, uint64], id uint64) {
	ss, ok := sim.Session(id)
	require.True(t, ok)
	ss.EnqueueOutputs()
}

// inboundBodies() returns the sender and body of every queued inbound message of a node
func inboundBodies(t *testing.T, sim *Simulator[lib.Transaction, uint64], id uint64) (out []testReceived) {
	q, ok := sim.InboundQueue(id)
	require.True(t, ok)
	for _, env := range q.Items() {
		out = append(out, testReceived{sender: env.Sender, body: env.Message.(*testMsg).body})
	}
	return
}

package session

import (
	"cmp"
	"fmt"

	"github.com/canopy-network/bftsim/lib"
)

/*
	A Session is the bridge between a single Engine instance and the outside world.

	Contributions and peer messages are pushed into the engine, and whatever the engine produces as a result
	(outbound peer messages and finalized batches) is collected into two FIFO queues with EnqueueOutputs().
	Nothing is collected automatically: the caller must call EnqueueOutputs() after every engine mutating operation.
	The session never drains its own queues; that is the job of the routing layer.
*/

// Session owns one Engine and its two outbound queues
type Session[C lib.Contribution, N cmp.Ordered] struct {
	id       N                                  // the identity of this node
	engine   lib.Engine[C, N]                   // the black box atomic broadcast algorithm
	peerOut  *lib.Queue[lib.TargetedMessage[N]] // messages waiting to be routed to peers
	batchOut *lib.Queue[lib.Batch[C]]           // finalized batches waiting to be consumed
	history  []lib.Batch[C]                     // append-only record of every finalized batch

	peerInCount   int // total messages handed to the engine
	peerOutCount  int // total messages collected from the engine
	batchOutCount int // total batches collected from the engine

	metrics *lib.Metrics
	log     lib.LoggerI
}

// New() creates a session for the node bound to the engine
func New[C lib.Contribution, N cmp.Ordered](id N, engine lib.Engine[C, N], metrics *lib.Metrics, log lib.LoggerI) (*Session[C, N], lib.ErrorI) {
	if engine == nil {
		return nil, ErrNilEngine(id)
	}
	if log == nil {
		log = lib.NewNullLogger()
	}
	return &Session[C, N]{
		id:       id,
		engine:   engine,
		peerOut:  lib.NewQueue[lib.TargetedMessage[N]](),
		batchOut: lib.NewQueue[lib.Batch[C]](),
		metrics:  metrics,
		log:      log.Named(fmt.Sprintf("node %v", id)),
	}, nil
}

// ID() returns the identity of the node
func (s *Session[C, N]) ID() N { return s.id }

// Engine() returns the underlying engine
func (s *Session[C, N]) Engine() lib.Engine[C, N] { return s.engine }

// AppendTransaction() forwards the contribution into the engine's input path
// any output the engine produces is left in the engine until EnqueueOutputs() is called
func (s *Session[C, N]) AppendTransaction(contribution C) lib.ErrorI {
	if err := s.engine.Input(contribution); err != nil {
		return ErrEngine(s.id, err)
	}
	return nil
}

// HandleMessage() feeds one inbound peer message to the engine
func (s *Session[C, N]) HandleMessage(sender N, message lib.MessageI) lib.ErrorI {
	s.peerInCount++
	s.metrics.UpdateSession(s.label(), 1, 0, 0)
	if err := s.handle(sender, message); err != nil {
		return ErrEngine(s.id, err)
	}
	return nil
}

// handle() reports a panicking engine as a failed message
func (s *Session[C, N]) handle(sender N, message lib.MessageI) (err error) {
	defer lib.RecoverError(&err)
	return s.engine.HandleMessage(sender, message)
}

// Tick() advances the clock of an engine that keeps one; waiting is always false for an engine without a clock
// like every other engine call it leaves the outputs in the engine until EnqueueOutputs() is called
func (s *Session[C, N]) Tick() (waiting bool, err lib.ErrorI) {
	ticker, ok := s.engine.(lib.Ticker)
	if !ok {
		return false, nil
	}
	waiting, e := ticker.Tick()
	if e != nil {
		return false, ErrEngine(s.id, e)
	}
	return waiting, nil
}

// EnqueueOutputs() drains the engine's pending messages and then its newly finalized batches into the local queues
// each item is moved exactly once; calling it with nothing pending is a no-op
func (s *Session[C, N]) EnqueueOutputs() (messages, batches int) {
	for msg := range s.engine.Messages() {
		// the sender is always the node whose engine emitted the message
		msg.Sender = s.id
		s.peerOut.Push(msg)
		messages++
	}
	for batch := range s.engine.Outputs() {
		s.batchOut.Push(batch)
		s.history = append(s.history, batch)
		s.metrics.UpdateBatch(batch.Epoch, batch.Len())
		s.log.Debugf("Finalized batch %s for epoch %d with %d contributions", batch.ShortHash(), batch.Epoch, batch.Len())
		batches++
	}
	s.peerOutCount += messages
	s.batchOutCount += batches
	s.metrics.UpdateSession(s.label(), 0, messages, batches)
	return
}

// PeerOutQueue() exposes the outbound peer message queue for the routing layer to drain
func (s *Session[C, N]) PeerOutQueue() *lib.Queue[lib.TargetedMessage[N]] { return s.peerOut }

// BatchQueue() exposes the finalized batch queue for a consumer to drain
func (s *Session[C, N]) BatchQueue() *lib.Queue[lib.Batch[C]] { return s.batchOut }

// Batches() returns a copy of every batch this node has finalized, in order, whether or not it was consumed
func (s *Session[C, N]) Batches() []lib.Batch[C] {
	out := make([]lib.Batch[C], len(s.history))
	copy(out, s.history)
	return out
}

// BatchCount() returns the number of batches this node has finalized
func (s *Session[C, N]) BatchCount() int { return len(s.history) }

// Head() returns the short hash of the last batch this node finalized, empty before the first one
func (s *Session[C, N]) Head() string {
	if len(s.history) == 0 {
		return ""
	}
	return s.history[len(s.history)-1].ShortHash()
}

// Counts() returns the totals of messages handled, messages emitted and batches emitted
func (s *Session[C, N]) Counts() (peerIn, peerOut, batchOut int) {
	return s.peerInCount, s.peerOutCount, s.batchOutCount
}

// Log() returns the node scoped logger
func (s *Session[C, N]) Log() lib.LoggerI { return s.log }

func (s *Session[C, N]) label() string { return fmt.Sprint(s.id) }

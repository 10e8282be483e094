package p2p

import (
	"cmp"
	"sync"
	"sync/atomic"

	"github.com/canopy-network/bftsim/lib"
	"github.com/canopy-network/bftsim/session"
	"github.com/canopy-network/bftsim/simulator"
)

// Peer is a session driven by its own goroutine
type Peer[C lib.Contribution, N cmp.Ordered] struct {
	mu      sync.Mutex                        // guards the session, only one goroutine touches the engine at a time
	session *session.Session[C, N]            // the node's engine bridge
	inboxMu sync.Mutex                        // guards the inbox
	inbox   *lib.Queue[simulator.Envelope[N]] // unbounded FIFO of delivered messages
	notify  chan struct{}                     // wakes the peer goroutine after a delivery
	batches atomic.Int64                      // the number of finalized batches, readable without the session lock
	crashed atomic.Bool                       // never driven
	failed  atomic.Bool                       // stopped after an engine failure
}

// newPeer() wraps the session
func newPeer[C lib.Contribution, N cmp.Ordered](ss *session.Session[C, N], notifyBuffer int) *Peer[C, N] {
	return &Peer[C, N]{
		session: ss,
		inbox:   lib.NewQueue[simulator.Envelope[N]](),
		notify:  make(chan struct{}, max(1, notifyBuffer)),
	}
}

// ID() returns the identity of the peer
func (p *Peer[C, N]) ID() N { return p.session.ID() }

// IsLive() returns true if the peer is neither crashed nor failed
func (p *Peer[C, N]) IsLive() bool { return !p.crashed.Load() && !p.failed.Load() }

// deliver() appends a message to the inbox and wakes the peer
// a pending wake up already covers the new message, so a full notify channel is not an error
func (p *Peer[C, N]) deliver(env simulator.Envelope[N]) {
	p.inboxMu.Lock()
	p.inbox.Push(env)
	p.inboxMu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// next() pops the oldest inbox message
func (p *Peer[C, N]) next() (simulator.Envelope[N], bool) {
	p.inboxMu.Lock()
	defer p.inboxMu.Unlock()
	return p.inbox.Pop()
}

// pending() returns the number of undelivered inbox messages
func (p *Peer[C, N]) pending() int {
	p.inboxMu.Lock()
	defer p.inboxMu.Unlock()
	return p.inbox.Len()
}

// withSession() runs f on the locked session and collects what the engine produced
func (p *Peer[C, N]) withSession(f func(ss *session.Session[C, N]) lib.ErrorI) (out []lib.TargetedMessage[N], newBatches bool, err lib.ErrorI) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err = f(p.session); err != nil {
		return
	}
	_, batches := p.session.EnqueueOutputs()
	for msg := range p.session.PeerOutQueue().Drain() {
		out = append(out, msg)
	}
	p.batches.Store(int64(p.session.BatchCount()))
	return out, batches > 0, nil
}

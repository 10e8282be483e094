package p2p

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/bftsim/lib"
	"github.com/canopy-network/bftsim/session"
	"github.com/canopy-network/bftsim/simulator"
	"golang.org/x/sync/errgroup"
)

/*
	The Network is the concurrent counterpart of the simulator: every live session is driven by its own goroutine.

	Deliveries go into an unbounded, mutex guarded inbox per peer and a buffered notify channel wakes the receiver.
	A sender's messages are appended to each inbox in emission order, so FIFO per sender holds exactly like in the
	simulator, while the interleaving between senders is left to the scheduler.
	Engine failures stop only the failing peer until more peers failed than are tolerated.
*/

// Network is a set of peers driven concurrently
type Network[C lib.Contribution, N cmp.Ordered] struct {
	peers    map[N]*Peer[C, N]
	order    []N // ascending
	failures map[N]lib.ErrorI
	failMu   sync.Mutex
	progress chan struct{} // signalled whenever a peer finalized a batch or failed
	running  atomic.Bool

	config  lib.Config
	metrics *lib.Metrics
	log     lib.LoggerI
}

// New() creates a concurrent network over the sessions
func New[C lib.Contribution, N cmp.Ordered](sessions []*session.Session[C, N], config lib.Config, metrics *lib.Metrics, log lib.LoggerI) (*Network[C, N], lib.ErrorI) {
	if len(sessions) == 0 {
		return nil, simulator.ErrNoNodes()
	}
	if log == nil {
		log = lib.NewNullLogger()
	}
	n := &Network[C, N]{
		peers:    make(map[N]*Peer[C, N], len(sessions)),
		failures: make(map[N]lib.ErrorI),
		progress: make(chan struct{}, 1),
		config:   config,
		metrics:  metrics,
		log:      log.Named("p2p"),
	}
	for _, ss := range sessions {
		if _, found := n.peers[ss.ID()]; found {
			return nil, simulator.ErrDuplicateNode(ss.ID())
		}
		n.peers[ss.ID()] = newPeer(ss, config.InboxNotifyBuffer)
		n.order = append(n.order, ss.ID())
	}
	slices.Sort(n.order)
	return n, nil
}

// NewNetwork() builds a concurrent network of config.NodeCount reference engines and crashes config.FaultyNodes
func NewNetwork(config lib.Config, metrics *lib.Metrics, log lib.LoggerI) (*Network[lib.Transaction, uint64], lib.ErrorI) {
	if err := config.Check(); err != nil {
		return nil, err
	}
	if log == nil {
		log = lib.NewNullLogger()
	}
	sessions, err := simulator.NewSessions(config, metrics, log)
	if err != nil {
		return nil, err
	}
	n, err := New(sessions, config, metrics, log)
	if err != nil {
		return nil, err
	}
	for _, id := range config.FaultyNodes {
		if err = n.Crash(id); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Crash() makes a peer permanently unresponsive; it still receives but is never driven
func (n *Network[C, N]) Crash(id N) lib.ErrorI {
	p, found := n.peers[id]
	if !found {
		return ErrUnknownPeer(id)
	}
	p.crashed.Store(true)
	n.log.Warnf("Peer %v crashed", id)
	return nil
}

// Submit() appends a contribution to a peer and delivers whatever the engine produced
// a crashed peer silently drops the contribution
func (n *Network[C, N]) Submit(id N, contribution C) lib.ErrorI {
	p, found := n.peers[id]
	switch {
	case !found:
		return ErrUnknownPeer(id)
	case p.crashed.Load():
		return nil
	case p.failed.Load():
		return simulator.ErrNodeExcluded(id)
	}
	out, _, err := p.withSession(func(ss *session.Session[C, N]) lib.ErrorI { return ss.AppendTransaction(contribution) })
	if err != nil {
		return err
	}
	n.route(out)
	return nil
}

// SubmitToAll() submits the contribution to every live peer, returning the first failure after trying all
func (n *Network[C, N]) SubmitToAll(contribution C) (err lib.ErrorI) {
	for _, id := range n.order {
		if !n.peers[id].IsLive() {
			continue
		}
		if e := n.Submit(id, contribution); e != nil && err == nil {
			err = e
		}
	}
	return
}

// Run() drives every live peer concurrently until each has finalized at least minBatches batches
// the run ends with ErrRunTimeout after RunTimeoutMS and with ErrTooManyFailures once the fault threshold is exceeded
func (n *Network[C, N]) Run(ctx context.Context, minBatches int) lib.ErrorI {
	if !n.running.CompareAndSwap(false, true) {
		return ErrNetworkRunning()
	}
	defer n.running.Store(false)
	start := time.Now()
	timeout := time.Duration(n.config.RunTimeoutMS) * time.Millisecond
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	defer cancelTimeout()
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	var satisfied atomic.Bool
	g, gCtx := errgroup.WithContext(ctx)
	for _, id := range n.order {
		if p := n.peers[id]; p.IsLive() {
			g.Go(func() error { return n.runPeer(gCtx, p) })
		}
	}
	// the monitor ends the run once every live peer holds enough batches
	g.Go(func() error {
		for {
			if n.hasBatches(minBatches) {
				satisfied.Store(true)
				stop()
				return nil
			}
			select {
			case <-gCtx.Done():
				return nil
			case <-n.progress:
			}
		}
	})
	err := g.Wait()
	n.metrics.UpdateRun(time.Since(start), err == nil && !satisfied.Load())
	switch {
	case err != nil:
		var e lib.ErrorI
		if errors.As(err, &e) {
			return e
		}
		return ErrNetworkStopped(err)
	case satisfied.Load():
		n.log.Infof("All live peers reached %d batches in %s", minBatches, time.Since(start))
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrRunTimeout(minBatches, time.Since(start))
	default:
		return ErrNetworkStopped(ctx.Err())
	}
}

// runPeer() is the goroutine of a single peer: wait for a delivery, then handle everything in the inbox
// while the inbox stays empty the engine is ticked every TickIntervalMS
func (n *Network[C, N]) runPeer(ctx context.Context, p *Peer[C, N]) error {
	ticker := time.NewTicker(time.Duration(n.config.TickIntervalMS) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if p.pending() != 0 {
				continue
			}
			if stop, err := n.step(p, func(ss *session.Session[C, N]) lib.ErrorI {
				_, err := ss.Tick()
				return err
			}); stop {
				return err
			}
		case <-p.notify:
			for ctx.Err() == nil {
				env, ok := p.next()
				if !ok {
					break
				}
				if stop, err := n.step(p, func(ss *session.Session[C, N]) lib.ErrorI {
					return ss.HandleMessage(env.Sender, env.Message)
				}); stop {
					return err
				}
			}
		}
	}
}

// step() runs one engine call on the peer and routes its outputs; stop is true once the peer failed
func (n *Network[C, N]) step(p *Peer[C, N], f func(ss *session.Session[C, N]) lib.ErrorI) (stop bool, err error) {
	out, newBatches, e := p.withSession(f)
	if e != nil {
		if e = n.fail(p, e); e != nil {
			return true, e
		}
		return true, nil
	}
	n.route(out)
	if newBatches {
		n.signalProgress()
	}
	return false, nil
}

// fail() stops a peer after an engine error and returns an error if the fault threshold is exceeded
func (n *Network[C, N]) fail(p *Peer[C, N], err lib.ErrorI) lib.ErrorI {
	p.failed.Store(true)
	n.failMu.Lock()
	n.failures[p.ID()] = ErrPeerFailed(p.ID(), err)
	failed := len(n.failures)
	n.failMu.Unlock()
	n.metrics.UpdateEngineFailure()
	n.log.Errorf("Peer %v stopped after engine failure: %s", p.ID(), err.Error())
	defer n.signalProgress()
	if tolerated := n.ToleratedFaults(); failed > tolerated {
		return ErrTooManyFailures(failed, tolerated, err)
	}
	return nil
}

// route() delivers the messages of one sender in order; a broadcast is cloned for every other peer
func (n *Network[C, N]) route(out []lib.TargetedMessage[N]) {
	for _, msg := range out {
		if recipient, ok := msg.Target.Node(); ok {
			p, found := n.peers[recipient]
			if !found {
				n.log.Warn(simulator.ErrUnknownRecipient(msg.Sender, recipient).Error())
				continue
			}
			p.deliver(simulator.Envelope[N]{Sender: msg.Sender, Message: msg.Message})
			continue
		}
		for _, id := range n.order {
			if id != msg.Sender {
				n.peers[id].deliver(simulator.Envelope[N]{Sender: msg.Sender, Message: msg.Message.Clone()})
			}
		}
	}
}

// signalProgress() wakes the monitor without blocking
func (n *Network[C, N]) signalProgress() {
	select {
	case n.progress <- struct{}{}:
	default:
	}
}

// hasBatches() returns true if every live peer finalized at least k batches
func (n *Network[C, N]) hasBatches(k int) bool {
	live := 0
	for _, p := range n.peers {
		if !p.IsLive() {
			continue
		}
		if p.batches.Load() < int64(k) {
			return false
		}
		live++
	}
	return live > 0
}

// Session() returns the session of a peer; it must not be used while the network is running
func (n *Network[C, N]) Session(id N) (*session.Session[C, N], bool) {
	p, found := n.peers[id]
	if !found {
		return nil, false
	}
	return p.session, true
}

// Nodes() returns every peer in ascending order
func (n *Network[C, N]) Nodes() []N { return slices.Clone(n.order) }

// LiveNodes() returns the peers that are neither crashed nor failed
func (n *Network[C, N]) LiveNodes() (live []N) {
	for _, id := range n.order {
		if n.peers[id].IsLive() {
			live = append(live, id)
		}
	}
	return
}

// Failures() returns the error that stopped each failed peer
func (n *Network[C, N]) Failures() map[N]lib.ErrorI {
	n.failMu.Lock()
	defer n.failMu.Unlock()
	out := make(map[N]lib.ErrorI, len(n.failures))
	for id, err := range n.failures {
		out[id] = err
	}
	return out
}

// ToleratedFaults() returns how many engine failures the network tolerates
func (n *Network[C, N]) ToleratedFaults() int { return n.config.ToleratedFaults(len(n.order)) }

// CheckAgreement() verifies epoch monotonicity and per epoch agreement over the live peers
func (n *Network[C, N]) CheckAgreement() lib.ErrorI {
	var live []*session.Session[C, N]
	for _, id := range n.LiveNodes() {
		live = append(live, n.peers[id].session)
	}
	return simulator.CheckAgreement(live...)
}

// Report() summarizes the counters of every peer in ascending order
func (n *Network[C, N]) Report() simulator.Report[N] {
	var r simulator.Report[N]
	failures, common := n.Failures(), -1
	for _, id := range n.order {
		p := n.peers[id]
		p.mu.Lock()
		in, out, batches := p.session.Counts()
		head := p.session.Head()
		p.mu.Unlock()
		node := simulator.NodeReport[N]{ID: id, Status: simulator.StatusLive, PeerIn: in, PeerOut: out, BatchOut: batches, Pending: p.pending(), Head: head}
		switch {
		case p.crashed.Load():
			node.Status = simulator.StatusCrashed
		case p.failed.Load():
			node.Status, node.Failure = simulator.StatusExcluded, failures[id].Error()
		default:
			if common == -1 || batches < common {
				common = batches
			}
		}
		r.Nodes = append(r.Nodes, node)
		r.TotalPeerIn, r.TotalPeerOut, r.TotalBatchOut = r.TotalPeerIn+in, r.TotalPeerOut+out, r.TotalBatchOut+batches
	}
	r.CommonEpochs = max(common, 0)
	return r
}

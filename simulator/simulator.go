package simulator

import (
	"cmp"
	"slices"

	"github.com/canopy-network/bftsim/lib"
	"github.com/canopy-network/bftsim/session"
)

/*
	The Simulator owns every Session of a simulated network and stands in for the transport between them.

	Outbound messages are routed into per recipient inbound queues in FIFO order, and the round robin driver pops one
	inbound message per node per step, so every peer makes independent progress without any concurrency.
	Membership is injected at construction and may change between steps; a broadcast always reaches the members
	present at routing time.
*/

// Simulator is the single threaded, deterministic network of sessions
type Simulator[C lib.Contribution, N cmp.Ordered] struct {
	sessions map[N]*session.Session[C, N]  // every member of the network
	order    []N                           // the members in ascending order (the round robin order)
	inbound  map[N]*lib.Queue[Envelope[N]] // per member inbound queues, written only by routing
	crashed  map[N]struct{}                // members that never respond (fault injection)
	excluded map[N]lib.ErrorI              // members excluded after an engine failure and why
	waiting  map[N]bool                    // members whose engine expects messages that have not arrived

	steps      uint64         // total drive steps across every run
	batchSteps map[N][]uint64 // the step at which each batch of each node was collected
	quiescent  bool           // whether the last run ended with nothing left to do

	config  lib.SimulatorConfig
	metrics *lib.Metrics
	log     lib.LoggerI
}

// New() creates a simulator over the sessions
func New[C lib.Contribution, N cmp.Ordered](sessions []*session.Session[C, N], config lib.SimulatorConfig, metrics *lib.Metrics, log lib.LoggerI) (*Simulator[C, N], lib.ErrorI) {
	if len(sessions) == 0 {
		return nil, ErrNoNodes()
	}
	if config.StepBudget == 0 {
		return nil, ErrInvalidStepBudget()
	}
	if log == nil {
		log = lib.NewNullLogger()
	}
	s := &Simulator[C, N]{
		sessions:   make(map[N]*session.Session[C, N], len(sessions)),
		inbound:    make(map[N]*lib.Queue[Envelope[N]], len(sessions)),
		crashed:    make(map[N]struct{}),
		excluded:   make(map[N]lib.ErrorI),
		waiting:    make(map[N]bool),
		batchSteps: make(map[N][]uint64),
		config:     config,
		metrics:    metrics,
		log:        log.Named("sim"),
	}
	for _, ss := range sessions {
		if err := s.AddNode(ss); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddNode() adds a member to the network; it receives broadcasts routed from now on
func (s *Simulator[C, N]) AddNode(ss *session.Session[C, N]) lib.ErrorI {
	id := ss.ID()
	if _, found := s.sessions[id]; found {
		return ErrDuplicateNode(id)
	}
	s.sessions[id] = ss
	s.inbound[id] = lib.NewQueue[Envelope[N]]()
	i, _ := slices.BinarySearch(s.order, id)
	s.order = slices.Insert(s.order, i, id)
	s.updateMembership()
	s.log.Debugf("Added node %v", id)
	return nil
}

// RemoveNode() removes a member from the network, dropping its undelivered inbound and outbound messages
func (s *Simulator[C, N]) RemoveNode(id N) lib.ErrorI {
	if _, found := s.sessions[id]; !found {
		return ErrUnknownNode(id)
	}
	delete(s.sessions, id)
	delete(s.inbound, id)
	delete(s.crashed, id)
	delete(s.excluded, id)
	delete(s.waiting, id)
	if i, found := slices.BinarySearch(s.order, id); found {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.updateMembership()
	s.log.Debugf("Removed node %v", id)
	return nil
}

// Crash() makes a member permanently unresponsive: it is never driven again and anything it had not sent is lost
// a crash is an injected fault and does not count toward the engine failure threshold
func (s *Simulator[C, N]) Crash(id N) lib.ErrorI {
	ss, found := s.sessions[id]
	if !found {
		return ErrUnknownNode(id)
	}
	s.crashed[id] = struct{}{}
	delete(s.waiting, id)
	ss.PeerOutQueue().Clear()
	s.updateMembership()
	s.log.Warnf("Node %v crashed", id)
	return nil
}

// Submit() appends a contribution to a member, then collects and routes whatever the engine produced
// a crashed member silently drops the contribution; an engine rejection is returned as is
func (s *Simulator[C, N]) Submit(id N, contribution C) lib.ErrorI {
	ss, found := s.sessions[id]
	switch {
	case !found:
		return ErrUnknownNode(id)
	case s.IsCrashed(id):
		return nil
	case s.IsExcluded(id):
		return ErrNodeExcluded(id)
	}
	if err := ss.AppendTransaction(contribution); err != nil {
		return err
	}
	s.collect(id, ss)
	s.RoutePendingMessages()
	return nil
}

// collect() moves the engine outputs of a member into its queues and records the step of every new batch
func (s *Simulator[C, N]) collect(id N, ss *session.Session[C, N]) {
	before := ss.BatchCount()
	ss.EnqueueOutputs()
	for i := before; i < ss.BatchCount(); i++ {
		s.batchSteps[id] = append(s.batchSteps[id], s.steps)
	}
}

// SubmitToAll() submits the contribution to every live member, returning the first failure after trying all
func (s *Simulator[C, N]) SubmitToAll(contribution C) (err lib.ErrorI) {
	for _, id := range s.order {
		if !s.IsLive(id) {
			continue
		}
		if e := s.Submit(id, contribution); e != nil && err == nil {
			err = e
		}
	}
	return
}

// Nodes() returns every member in ascending order
func (s *Simulator[C, N]) Nodes() []N { return slices.Clone(s.order) }

// LiveNodes() returns the members that are neither crashed nor excluded
func (s *Simulator[C, N]) LiveNodes() (live []N) {
	for _, id := range s.order {
		if s.IsLive(id) {
			live = append(live, id)
		}
	}
	return
}

// Session() returns the session of a member
func (s *Simulator[C, N]) Session(id N) (*session.Session[C, N], bool) {
	ss, found := s.sessions[id]
	return ss, found
}

// InboundQueue() exposes the inbound queue of a member
func (s *Simulator[C, N]) InboundQueue(id N) (*lib.Queue[Envelope[N]], bool) {
	q, found := s.inbound[id]
	return q, found
}

// IsCrashed() returns true if the member was crashed by fault injection
func (s *Simulator[C, N]) IsCrashed(id N) bool {
	_, found := s.crashed[id]
	return found
}

// IsExcluded() returns true if the member was excluded after an engine failure
func (s *Simulator[C, N]) IsExcluded(id N) bool {
	_, found := s.excluded[id]
	return found
}

// IsLive() returns true if the member is driven by the round robin loop
func (s *Simulator[C, N]) IsLive(id N) bool {
	_, member := s.sessions[id]
	return member && !s.IsCrashed(id) && !s.IsExcluded(id)
}

// Failures() returns the engine error that excluded each failed member
func (s *Simulator[C, N]) Failures() map[N]lib.ErrorI {
	out := make(map[N]lib.ErrorI, len(s.excluded))
	for id, err := range s.excluded {
		out[id] = err
	}
	return out
}

// Steps() returns the total number of drive steps taken
func (s *Simulator[C, N]) Steps() uint64 { return s.steps }

// ToleratedFaults() returns how many engine failures the current membership tolerates
func (s *Simulator[C, N]) ToleratedFaults() int { return s.config.ToleratedFaults(len(s.order)) }

func (s *Simulator[C, N]) updateMembership() {
	s.metrics.UpdateMembership(len(s.LiveNodes()), len(s.excluded))
}

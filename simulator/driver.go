package simulator

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/canopy-network/bftsim/lib"
	"github.com/cenkalti/backoff/v4"
)

// StepResult is the outcome of driving a single node for one step
type StepResult int

const (
	NoMessage StepResult = iota // the inbound queue was empty: nothing to do this tick
	Handled                     // one inbound message was handled and the outputs were routed
	Failed                      // the engine rejected the message and the node was excluded
	Skipped                     // the node is crashed or excluded and was not driven
)

// String() returns the human readable name of the result
func (r StepResult) String() string {
	switch r {
	case NoMessage:
		return "no message"
	case Handled:
		return "handled"
	case Failed:
		return "failed"
	default:
		return "skipped"
	}
}

// Predicate is a condition over the network that ends a run
type Predicate[C lib.Contribution, N cmp.Ordered] func(s *Simulator[C, N]) bool

// DriveOneStep() pops the oldest inbound message of the node, hands it to the engine, then collects and routes the outputs
// an empty queue is reported as NoMessage, not as an error; the idle engine is ticked instead
func (s *Simulator[C, N]) DriveOneStep(id N) (result StepResult, err lib.ErrorI) {
	ss, found := s.sessions[id]
	if !found {
		return Skipped, ErrUnknownNode(id)
	}
	if !s.IsLive(id) {
		return Skipped, nil
	}
	s.steps++
	env, ok := s.inbound[id].Pop()
	if !ok {
		if s.config.LogEmptyQueues {
			ss.Log().Debug("Incoming message queue is empty")
		}
		waiting, e := ss.Tick()
		if e != nil {
			s.metrics.UpdateStep(false, 0)
			return Failed, s.exclude(id, e)
		}
		s.waiting[id] = waiting
		s.collect(id, ss)
		s.metrics.UpdateStep(false, s.RoutePendingMessages())
		return NoMessage, nil
	}
	if err = ss.HandleMessage(env.Sender, env.Message); err != nil {
		s.metrics.UpdateStep(true, 0)
		return Failed, s.exclude(id, err)
	}
	s.collect(id, ss)
	s.metrics.UpdateStep(true, s.RoutePendingMessages())
	return Handled, nil
}

// exclude() removes a failed node from the round robin and aborts the run if more nodes failed than are tolerated
func (s *Simulator[C, N]) exclude(id N, err lib.ErrorI) lib.ErrorI {
	s.excluded[id] = err
	delete(s.waiting, id)
	s.metrics.UpdateEngineFailure()
	s.updateMembership()
	s.log.Errorf("Node %v excluded after engine failure: %s", id, err.Error())
	if tolerated := s.ToleratedFaults(); len(s.excluded) > tolerated {
		return ErrFaultThresholdExceeded(len(s.excluded), tolerated, err)
	}
	return err
}

// RunUntil() drives every live node round robin until the predicate holds or the step budget is exhausted
func (s *Simulator[C, N]) RunUntil(predicate Predicate[C, N]) (steps uint64, err lib.ErrorI) {
	return s.runUntil(predicate, s.config.StepBudget)
}

// runUntil() implements RunUntil() with an explicit budget
func (s *Simulator[C, N]) runUntil(predicate Predicate[C, N], budget uint64) (steps uint64, err lib.ErrorI) {
	start := time.Now()
	s.quiescent = false
	defer func() { s.metrics.UpdateRun(time.Since(start), IsLivenessBudgetExceeded(err)) }()
	for !predicate(s) {
		progressed := false
		// snapshot the order so membership changes made by the predicate or callbacks apply next round
		for _, id := range slices.Clone(s.order) {
			if steps >= budget {
				return steps, ErrLivenessBudgetExceeded(steps, budget, false)
			}
			if !s.IsLive(id) {
				continue
			}
			result, e := s.DriveOneStep(id)
			steps++
			switch {
			case IsFaultThresholdExceeded(e):
				return steps, e
			case result == Handled || result == Failed:
				progressed = true
			}
			if predicate(s) {
				return steps, nil
			}
		}
		// nothing was handled, queued or timing out: no further step can change any state
		if !progressed && s.idle() {
			s.quiescent = true
			s.log.Warnf("Network is quiescent after %d steps", steps)
			return steps, ErrLivenessBudgetExceeded(steps, budget, true)
		}
	}
	return steps, nil
}

// RunUntilWithRetry() calls RunUntil() and, while the only failure is an exhausted budget, retries up to 'attempts'
// more times, doubling the budget each time; the steps of every attempt are summed
func (s *Simulator[C, N]) RunUntilWithRetry(predicate Predicate[C, N], attempts uint64) (total uint64, err lib.ErrorI) {
	budget := s.config.StepBudget
	operation := func() error {
		steps, e := s.runUntil(predicate, budget)
		total += steps
		switch {
		case e == nil:
			return nil
		case IsLivenessBudgetExceeded(e) && !s.quiescent:
			s.log.Warnf("Retrying with a step budget of %d", budget*2)
			budget *= 2
			return e
		default:
			return backoff.Permanent(e)
		}
	}
	if e := backoff.Retry(operation, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, attempts)); e != nil {
		if !errors.As(e, &err) {
			err = lib.NewError(lib.NoCode, lib.SimulatorModule, e.Error())
		}
	}
	return
}

// idle() returns true if no live node has anything to handle or route, or is waiting on a timeout
func (s *Simulator[C, N]) idle() bool {
	for _, id := range s.order {
		if !s.IsLive(id) {
			continue
		}
		if s.waiting[id] || !s.inbound[id].Empty() || !s.sessions[id].PeerOutQueue().Empty() {
			return false
		}
	}
	return true
}

// AllNodesHaveBatches() holds once every member (faulty or not) has finalized at least k batches
func AllNodesHaveBatches[C lib.Contribution, N cmp.Ordered](k int) Predicate[C, N] {
	return func(s *Simulator[C, N]) bool {
		for _, ss := range s.sessions {
			if ss.BatchCount() < k {
				return false
			}
		}
		return true
	}
}

// HonestNodesHaveBatches() holds once every live member has finalized at least k batches
func HonestNodesHaveBatches[C lib.Contribution, N cmp.Ordered](k int) Predicate[C, N] {
	return func(s *Simulator[C, N]) bool {
		live := 0
		for id, ss := range s.sessions {
			if !s.IsLive(id) {
				continue
			}
			if ss.BatchCount() < k {
				return false
			}
			live++
		}
		return live > 0
	}
}

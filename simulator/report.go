package simulator

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Status is the participation state of a member at the end of a run
type Status string

const (
	StatusLive     Status = "live"
	StatusCrashed  Status = "crashed"
	StatusExcluded Status = "excluded"
)

// NodeReport is the per member summary of a run
type NodeReport[N any] struct {
	ID       N      `json:"id"`
	Status   Status `json:"status"`
	PeerIn   int    `json:"peerIn"`         // messages handed to the engine
	PeerOut  int    `json:"peerOut"`        // messages collected from the engine
	BatchOut int    `json:"batchOut"`       // batches collected from the engine
	Pending  int    `json:"pending"`        // inbound messages never handled
	Head     string `json:"head,omitempty"` // short hash of the last finalized batch
	Failure  string `json:"failure,omitempty"`
}

// Report is the summary of the network after a run
type Report[N any] struct {
	Nodes               []NodeReport[N] `json:"nodes"`
	Steps               uint64          `json:"steps"`
	CommonEpochs        int             `json:"commonEpochs"` // batches finalized by every live member
	TotalPeerIn         int             `json:"totalPeerIn"`
	TotalPeerOut        int             `json:"totalPeerOut"`
	TotalBatchOut       int             `json:"totalBatchOut"`
	StepsPerEpochMean   float64         `json:"stepsPerEpochMean"`   // average steps between two consecutive batches of a node
	StepsPerEpochStdDev float64         `json:"stepsPerEpochStdDev"` // the spread of the above
}

// Report() summarizes the queues and counters of every member in ascending order
func (s *Simulator[C, N]) Report() Report[N] {
	r := Report[N]{Steps: s.steps, CommonEpochs: s.CommonEpochs()}
	var gaps []float64
	for _, id := range s.order {
		ss := s.sessions[id]
		in, out, batches := ss.Counts()
		n := NodeReport[N]{ID: id, Status: StatusLive, PeerIn: in, PeerOut: out, BatchOut: batches, Pending: s.inbound[id].Len(), Head: ss.Head()}
		switch {
		case s.IsCrashed(id):
			n.Status = StatusCrashed
		case s.IsExcluded(id):
			n.Status, n.Failure = StatusExcluded, s.excluded[id].Error()
		}
		r.Nodes = append(r.Nodes, n)
		r.TotalPeerIn, r.TotalPeerOut, r.TotalBatchOut = r.TotalPeerIn+in, r.TotalPeerOut+out, r.TotalBatchOut+batches
		// the first batch is measured from the start of the simulation
		var prev uint64
		for _, step := range s.batchSteps[id] {
			gaps = append(gaps, float64(step-prev))
			prev = step
		}
	}
	if len(gaps) > 0 {
		r.StepsPerEpochMean, r.StepsPerEpochStdDev = stat.MeanStdDev(gaps, nil)
		if len(gaps) == 1 {
			r.StepsPerEpochStdDev = 0
		}
	}
	return r
}

// String() returns the per node counters the way they are printed at the end of a run
func (n NodeReport[N]) String() string {
	return fmt.Sprintf("Node %v (%s): Peer in count: %d, Peer out count: %d, Batch out count: %d, Pending: %d",
		n.ID, n.Status, n.PeerIn, n.PeerOut, n.BatchOut, n.Pending)
}
